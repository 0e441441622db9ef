package vaultcrypt

import (
	"context"
	"fmt"
	"path"
	"slices"
	"sync"
)

// maxNameAttempts bounds the retries when a generated name is taken
const maxNameAttempts = 5

// Transaction is a prepared encryption or decryption of one document.
// Everything up to Commit happens in a private staging area; the vault is
// only modified by Commit.
type Transaction struct {
	ID           string
	Op           Operation
	DocumentPath string

	engine   *Engine
	log      Logger
	progress *progressTracker

	mu              sync.Mutex
	phase           Phase
	prepared        bool
	closed          bool
	staging         *stagingArea
	entries         []StagingEntry
	committed       int
	documentWritten bool
	document        string
	skipped         []SkippedLink
}

// plannedAttachment groups the link tokens that resolved to one file.
// tokens holds each distinct target, occurrences every target in document
// order.
type plannedAttachment struct {
	path        string
	mapping     *FileMapping
	tokens      []string
	occurrences []string
}

// Phase returns the current phase
func (t *Transaction) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// Entries returns the staged attachments in document order
func (t *Transaction) Entries() []StagingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.entries)
}

// Skipped returns the link targets that will be left untouched
func (t *Transaction) Skipped() []SkippedLink {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.skipped)
}

// StagingDir returns the directory holding the staged bytes
func (t *Transaction) StagingDir() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.staging == nil {
		return ""
	}
	return t.staging.dir
}

func (t *Transaction) setPhase(ctx context.Context, p Phase) {
	t.phase = p
	t.log.Debug(ctx, "phase", "phase", p.String())
}

func (t *Transaction) skip(ctx context.Context, target string, reason error) {
	t.skipped = append(t.skipped, SkippedLink{Target: target, Reason: reason})
	t.log.Warn(ctx, "link skipped", "target", target, "reason", reason)
}

func (t *Transaction) vault() Vault {
	return t.engine.vault
}

func (t *Transaction) config() *Config {
	return t.engine.config
}

func (t *Transaction) prepareEncrypt(ctx context.Context, password string) error {
	t.setPhase(ctx, PhaseScanningLinks)
	t.progress.report(progressStart, "scanning links")

	text, err := t.vault().ReadText(ctx, t.DocumentPath)
	if err != nil {
		return err
	}
	if IsEncrypted(text) {
		return fmt.Errorf("%w: %s", ErrAlreadyEncrypted, t.DocumentPath)
	}

	plan, err := t.scan(ctx, text, nil)
	if err != nil {
		return err
	}

	t.setPhase(ctx, PhaseStagingAttachments)
	if err := t.openStaging(); err != nil {
		return err
	}

	table := NewMappingTable()
	seed := documentSeed(t.DocumentPath)
	entries := make([]StagingEntry, len(plan))
	for i, p := range plan {
		m, err := t.allocateName(ctx, table, seed, p.path)
		if err != nil {
			return err
		}
		m.ParentPath = vaultDir(t.DocumentPath)
		m.OriginalLink = p.tokens[0]
		if len(p.tokens) > 1 {
			m.Links = p.occurrences
		}
		m.Iterations = BinaryIterations
		if err := table.Insert(m); err != nil {
			return err
		}
		entries[i] = StagingEntry{SourcePath: p.path, TargetPath: m.EncryptedPath, Mapping: m}
	}

	err = t.stage(ctx, entries, func(data []byte, e StagingEntry) ([]byte, error) {
		return EncryptBinaryWithParams(data, password, BinaryParams(e.Mapping.Iterations))
	})
	if err != nil {
		return err
	}

	t.setPhase(ctx, PhaseRewritingDocument)
	t.progress.report(progressRewriting, "rewriting links")
	replacements := make(map[string]string)
	for i, p := range plan {
		for _, tok := range p.tokens {
			replacements[tok] = entries[i].Mapping.EncryptedName
		}
	}
	body := RewriteLinks(text, replacements)
	if err := ctx.Err(); err != nil {
		return err
	}

	t.setPhase(ctx, PhaseSealingDocument)
	t.progress.report(progressSealing, "sealing document")
	sealed, err := SealEnvelope(t.config().textCodec(), body, table, !t.config().OmitAttachmentFooter, password)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t.entries = entries
	t.document = sealed
	return nil
}

func (t *Transaction) prepareDecrypt(ctx context.Context, password string) error {
	t.setPhase(ctx, PhaseSealingDocument)
	t.progress.report(progressStart, "opening document")

	text, err := t.vault().ReadText(ctx, t.DocumentPath)
	if err != nil {
		return err
	}
	if !IsEncrypted(text) {
		return fmt.Errorf("%w: %s", ErrNotEncrypted, t.DocumentPath)
	}
	sealed, _ := SplitAttachmentFooter(text)
	plaintext, err := t.config().textCodec().Decrypt(sealed, password)
	if err != nil {
		return withPath(err, t.DocumentPath)
	}

	t.setPhase(ctx, PhaseRewritingDocument)
	t.progress.report(progressStagingFrom-2, "reading mapping")
	table, body, err := ExtractMapping(plaintext)
	if err != nil {
		return withPath(err, t.DocumentPath)
	}

	t.setPhase(ctx, PhaseScanningLinks)
	plan, err := t.scan(ctx, body, table)
	if err != nil {
		return err
	}
	t.warnUnreferenced(ctx, table, plan)

	t.setPhase(ctx, PhaseStagingAttachments)
	if err := t.openStaging(); err != nil {
		return err
	}
	entries := make([]StagingEntry, len(plan))
	for i, p := range plan {
		entries[i] = StagingEntry{SourcePath: p.mapping.EncryptedPath, TargetPath: p.mapping.OriginalPath, Mapping: *p.mapping}
	}

	err = t.stage(ctx, entries, func(data []byte, e StagingEntry) ([]byte, error) {
		pt, err := decryptAttachment(data, password, e.Mapping)
		return pt, withPath(err, e.SourcePath)
	})
	if err != nil {
		return err
	}

	byToken := make(map[string]*plannedAttachment)
	for _, p := range plan {
		for _, tok := range p.tokens {
			byToken[tok] = p
		}
	}
	seen := make(map[*plannedAttachment]int, len(plan))
	t.entries = entries
	t.document = RewriteLinksFunc(body, func(l Link) (string, bool) {
		p, ok := byToken[l.Target]
		if !ok {
			return "", false
		}
		k := seen[p]
		seen[p]++
		return p.mapping.linkFor(k), true
	})
	return ctx.Err()
}

// scan resolves the embeds of text into attachments, deduplicated by file.
// Without a table every resolvable file is planned; with one only files
// recorded in it are.
func (t *Transaction) scan(ctx context.Context, text string, table *MappingTable) ([]*plannedAttachment, error) {
	contextDir := vaultDir(t.DocumentPath)

	var plan []*plannedAttachment
	byPath := make(map[string]*plannedAttachment)
	for l := range FindLinks(text) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if isExternalTarget(l.Target) {
			continue
		}

		a, err := ResolveTarget(ctx, t.vault(), l.Target, contextDir, table)
		if err != nil {
			if IsResolutionError(err) {
				t.skip(ctx, l.Target, err)
				continue
			}
			return nil, err
		}

		switch {
		case a.Path == t.DocumentPath:
			continue
		case table == nil && IsEncryptedName(a.Path):
			t.skip(ctx, l.Target, &ResolutionError{Target: l.Target, ContextDir: contextDir, Err: ErrAlreadyEncrypted})
			continue
		case table != nil && a.Mapping == nil:
			if IsEncryptedName(a.Path) {
				t.skip(ctx, l.Target, &ResolutionError{Target: l.Target, ContextDir: contextDir, Err: ErrUnmappedAttachment})
			}
			continue
		}

		p, ok := byPath[a.Path]
		if !ok {
			p = &plannedAttachment{path: a.Path, mapping: a.Mapping}
			byPath[a.Path] = p
			plan = append(plan, p)
		}
		if !slices.Contains(p.tokens, l.Target) {
			p.tokens = append(p.tokens, l.Target)
		}
		p.occurrences = append(p.occurrences, l.Target)
	}

	t.log.Debug(ctx, "links scanned", "attachments", len(plan), "skipped", len(t.skipped))
	return plan, nil
}

func (t *Transaction) warnUnreferenced(ctx context.Context, table *MappingTable, plan []*plannedAttachment) {
	seen := make(map[string]bool, len(plan))
	for _, p := range plan {
		seen[p.mapping.EncryptedName] = true
	}
	for _, m := range table.Entries() {
		if !seen[m.EncryptedName] {
			t.log.Warn(ctx, "mapped attachment is not linked from the document", "encrypted", m.EncryptedPath, "original", m.OriginalPath)
		}
	}
}

// allocateName picks an encrypted name that is neither in the table nor
// present in the vault
func (t *Transaction) allocateName(ctx context.Context, table *MappingTable, seed, source string) (FileMapping, error) {
	for range maxNameAttempts {
		name, err := GenerateRandomName(seed)
		if err != nil {
			return FileMapping{}, err
		}
		m := NewFileMapping(source, path.Join(vaultDir(source), name))
		if _, taken := table.Get(m.EncryptedName); taken {
			continue
		}
		exists, err := t.vault().Exists(ctx, m.EncryptedPath)
		if err != nil {
			return FileMapping{}, err
		}
		if !exists {
			return m, nil
		}
	}
	return FileMapping{}, fmt.Errorf("%w: no free name for %s", ErrNameCollision, source)
}

func (t *Transaction) openStaging() error {
	staging, err := newStagingArea(t.config(), t.ID)
	if err != nil {
		return err
	}
	t.staging = staging
	return nil
}

// stage reads each source, transforms it and writes the result to the
// staging area. Any failure fails the whole stage.
func (t *Transaction) stage(ctx context.Context, entries []StagingEntry, transform func([]byte, StagingEntry) ([]byte, error)) error {
	done := 0
	t.progress.span(progressStagingFrom, progressStagingTo, 0, len(entries), "staging attachments")

	return runJobs(ctx, t.config().Parallel, len(entries), func(ctx context.Context, i int) error {
		e := entries[i]
		data, err := t.vault().ReadBinary(ctx, e.SourcePath)
		if err != nil {
			return err
		}
		out, err := transform(data, e)
		if err != nil {
			return err
		}
		sp, err := t.staging.put(i, e.TargetPath, out)
		if err != nil {
			return err
		}
		entries[i].StagingPath = sp
		t.log.Debug(ctx, "attachment staged", "source", e.SourcePath, "target", e.TargetPath)
		return nil
	}, func() {
		done++
		t.progress.span(progressStagingFrom, progressStagingTo, done, len(entries), "staging attachments")
	})
}

// Commit writes the staged attachments and then the document. Each
// attachment's prior form is removed before its new form is written. If a
// step fails a *PartialCommitError is returned and the transaction stays
// open: calling Commit again resumes with the first pending entry.
// Cancellation of ctx does not interrupt a commit.
func (t *Transaction) Commit(ctx context.Context) (*Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || !t.prepared {
		return nil, ErrTransactionClosed
	}
	if t.phase != PhaseCommitting {
		if err := ctx.Err(); err != nil {
			if abortErr := t.abortLocked(ctx); abortErr != nil {
				t.log.Warn(ctx, "abort cleanup failed", "error", abortErr)
			}
			return nil, fmt.Errorf("transaction aborted: %w", err)
		}
	}
	ctx = context.WithoutCancel(ctx)

	if t.phase != PhaseCommitting {
		t.setPhase(ctx, PhaseCommitting)
	}
	t.progress.report(progressCommitting, "committing")

	for t.committed < len(t.entries) {
		e := t.entries[t.committed]
		data, err := t.staging.get(e.StagingPath)
		if err != nil {
			return nil, t.partial(ctx, err)
		}
		if err := t.removePrior(ctx, e.SourcePath); err != nil {
			return nil, t.partial(ctx, err)
		}
		if err := t.vault().WriteBinary(ctx, e.TargetPath, data); err != nil {
			return nil, t.partial(ctx, err)
		}
		t.committed++
		t.progress.span(progressCommitting, progressCommittingTo, t.committed, len(t.entries), "committing")
	}

	if !t.documentWritten {
		if err := t.vault().WriteText(ctx, t.DocumentPath, t.document); err != nil {
			return nil, t.partial(ctx, err)
		}
		t.documentWritten = true
	}

	if err := t.staging.purge(); err != nil {
		t.log.Warn(ctx, "staging area not purged", "dir", t.staging.dir, "error", err)
	}
	t.setPhase(ctx, PhaseDone)
	t.progress.report(progressDone, "done")
	t.closeLocked()

	t.log.Info(ctx, "transaction committed", "attachments", len(t.entries), "skipped", len(t.skipped))
	return &Result{
		TransactionID: t.ID,
		Operation:     t.Op,
		DocumentPath:  t.DocumentPath,
		Attachments:   slices.Clone(t.entries),
		Skipped:       slices.Clone(t.skipped),
	}, nil
}

// removePrior removes p if it is still present, so a resumed commit does
// not fail on an entry whose removal already happened
func (t *Transaction) removePrior(ctx context.Context, p string) error {
	ok, err := t.vault().Exists(ctx, p)
	if err != nil || !ok {
		return err
	}
	return t.vault().Remove(ctx, p)
}

func (t *Transaction) partial(ctx context.Context, err error) error {
	pe := &PartialCommitError{
		TransactionID:   t.ID,
		Committed:       slices.Clone(t.entries[:t.committed]),
		Pending:         slices.Clone(t.entries[t.committed:]),
		DocumentWritten: t.documentWritten,
		StagingDir:      t.staging.dir,
		Err:             err,
	}
	t.log.Error(ctx, "commit failed", "committed", len(pe.Committed), "pending", len(pe.Pending), "error", err)
	return pe
}

// Abort discards the staged data and releases the document. It fails with
// ErrCommitStarted once Commit has been called.
func (t *Transaction) Abort() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.phase == PhaseAborted:
		return nil
	case t.closed:
		return ErrTransactionClosed
	case t.phase == PhaseCommitting:
		return ErrCommitStarted
	}
	return t.abortLocked(context.Background())
}

// Close releases the document. A transaction that has not started
// committing is aborted; after a partial commit the staged data is kept
// for manual recovery.
func (t *Transaction) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	if t.phase != PhaseCommitting {
		return t.abortLocked(context.Background())
	}
	t.log.Warn(context.Background(), "transaction closed with pending entries", "staging", t.staging.dir)
	t.closeLocked()
	return nil
}

// discard is used when preparation fails
func (t *Transaction) discard(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.abortLocked(ctx); err != nil {
		t.log.Warn(ctx, "abort cleanup failed", "error", err)
	}
}

func (t *Transaction) abortLocked(ctx context.Context) error {
	var err error
	if t.staging != nil {
		err = t.staging.purge()
	}
	t.entries = nil
	t.document = ""
	t.setPhase(ctx, PhaseAborted)
	t.closeLocked()
	return err
}

func (t *Transaction) closeLocked() {
	t.closed = true
	t.engine.release(t.DocumentPath, t.ID)
	if !t.progress.close() {
		t.log.Warn(context.Background(), "progress sink did not drain", "timeout", progressDrainTimeout)
	}
}

// commitAndClose commits and, on failure, releases the document so the
// caller is not left holding it
func (t *Transaction) commitAndClose(ctx context.Context) (*Result, error) {
	res, err := t.Commit(ctx)
	if err != nil {
		if cerr := t.Close(); cerr != nil {
			t.log.Warn(ctx, "close failed", "error", cerr)
		}
		return nil, err
	}
	return res, nil
}
