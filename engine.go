package vaultcrypt

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Engine encrypts and decrypts documents of one vault. It is safe for
// concurrent use; transactions on the same document are rejected with
// ErrTransactionInProgress while one is open.
type Engine struct {
	vault  Vault
	config *Config
	log    Logger

	mu     sync.Mutex
	active map[string]string // document path -> transaction ID
}

// Result describes a committed transaction
type Result struct {
	TransactionID string
	Operation     Operation
	DocumentPath  string

	// Attachments are the entries written to the vault, in document order
	Attachments []StagingEntry

	// Skipped lists link targets that were left untouched
	Skipped []SkippedLink
}

// SkippedLink is a link target the transaction did not process
type SkippedLink struct {
	Target string
	Reason error
}

// DocumentInfo is what can be learned about a document without a password
type DocumentInfo struct {
	Path      string
	Encrypted bool

	// Format is "v2" or "legacy" for encrypted documents
	Format string

	// Attachments are the footer tokens of an encrypted document
	Attachments []string
}

// New creates an engine for vault. A nil config selects DefaultConfig.
func New(vault Vault, config *Config) (*Engine, error) {
	if vault == nil {
		return nil, ErrNilVault
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log := config.Logger
	if log == nil {
		log = discardLogger()
	}

	return &Engine{
		vault:  vault,
		config: config,
		log:    log,
		active: make(map[string]string),
	}, nil
}

// Encrypt encrypts the document at docPath and every attachment it embeds
func (e *Engine) Encrypt(ctx context.Context, docPath, password string) (*Result, error) {
	tx, err := e.PrepareEncrypt(ctx, docPath, password)
	if err != nil {
		return nil, err
	}
	return tx.commitAndClose(ctx)
}

// Decrypt restores the document at docPath and the attachments recorded in
// its mapping
func (e *Engine) Decrypt(ctx context.Context, docPath, password string) (*Result, error) {
	tx, err := e.PrepareDecrypt(ctx, docPath, password)
	if err != nil {
		return nil, err
	}
	return tx.commitAndClose(ctx)
}

// PrepareEncrypt runs every encryption phase up to, but not including, the
// commit. The vault is not modified until Commit is called.
func (e *Engine) PrepareEncrypt(ctx context.Context, docPath, password string) (*Transaction, error) {
	return e.prepare(ctx, OpEncrypt, docPath, password)
}

// PrepareDecrypt runs every decryption phase up to, but not including, the
// commit. The vault is not modified until Commit is called.
func (e *Engine) PrepareDecrypt(ctx context.Context, docPath, password string) (*Transaction, error) {
	return e.prepare(ctx, OpDecrypt, docPath, password)
}

func (e *Engine) prepare(ctx context.Context, op Operation, docPath, password string) (*Transaction, error) {
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	if err := ValidateVaultPath(docPath); err != nil {
		return nil, err
	}
	docPath = CleanVaultPath(docPath)

	id := uuid.NewString()
	if err := e.acquire(docPath, id); err != nil {
		return nil, err
	}

	tx := &Transaction{
		ID:           id,
		Op:           op,
		DocumentPath: docPath,
		engine:       e,
		log:          e.log.With("tx", id, "op", op.String(), "document", docPath),
		progress:     newProgressTracker(e.config.Progress),
	}

	var err error
	if op == OpEncrypt {
		err = tx.prepareEncrypt(ctx, password)
	} else {
		err = tx.prepareDecrypt(ctx, password)
	}
	if err != nil {
		tx.discard(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("transaction aborted: %w", ctxErr)
		}
		return nil, err
	}

	tx.prepared = true
	return tx, nil
}

// Inspect reports whether docPath is encrypted and which attachments its
// footer lists
func (e *Engine) Inspect(ctx context.Context, docPath string) (*DocumentInfo, error) {
	if err := ValidateVaultPath(docPath); err != nil {
		return nil, err
	}
	docPath = CleanVaultPath(docPath)

	text, err := e.vault.ReadText(ctx, docPath)
	if err != nil {
		return nil, err
	}
	info := &DocumentInfo{Path: docPath, Encrypted: IsEncrypted(text)}
	if !info.Encrypted {
		return info, nil
	}

	sealed, tokens := SplitAttachmentFooter(text)
	info.Attachments = tokens
	info.Format = "legacy"
	if strings.HasPrefix(sealed[len(Marker):], v2Tag) {
		info.Format = "v2"
	}
	return info, nil
}

// Busy reports whether a transaction is open for docPath
func (e *Engine) Busy(docPath string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.active[CleanVaultPath(docPath)]
	return ok
}

func (e *Engine) acquire(docPath, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if other, ok := e.active[docPath]; ok {
		return fmt.Errorf("%w: %s (transaction %s)", ErrTransactionInProgress, docPath, other)
	}
	e.active[docPath] = id
	return nil
}

func (e *Engine) release(docPath, id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active[docPath] == id {
		delete(e.active, docPath)
	}
}
