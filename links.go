package vaultcrypt

import (
	"context"
	"errors"
	"iter"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// LinkStyle distinguishes the two embed syntaxes
type LinkStyle uint8

const (
	// LinkWiki is ![[target]] or ![[target|alias]]
	LinkWiki LinkStyle = iota
	// LinkMarkdown is ![alt](target)
	LinkMarkdown
)

// String returns the string representation of the link style
func (s LinkStyle) String() string {
	if s == LinkMarkdown {
		return "markdown"
	}
	return "wiki"
}

// Link is one embed found in a document. Offsets are byte offsets into the
// scanned text.
type Link struct {
	Style       LinkStyle
	Start       int    // start of the whole link
	End         int    // end of the whole link
	TargetStart int    // start of Target
	TargetEnd   int    // end of Target
	Target      string // the token that names the attachment
	Alt         string // markdown alt text, or the wiki alias after '|'
}

// linkPattern matches both embed syntaxes in one left-to-right pass.
// Group 1 is the wiki body, groups 2 and 3 the markdown alt and target.
var linkPattern = regexp.MustCompile(`!\[\[(.*?)\]\]|!\[(.*?)\]\((.*?)\)`)

// FindLinks yields the embeds of text in document order. The sequence is
// lazy and may be ranged over more than once.
func FindLinks(text string) iter.Seq[Link] {
	return func(yield func(Link) bool) {
		pos := 0
		for pos < len(text) {
			m := linkPattern.FindStringSubmatchIndex(text[pos:])
			if m == nil {
				return
			}
			for i := range m {
				if m[i] >= 0 {
					m[i] += pos
				}
			}
			pos = m[1]

			l, ok := linkFromMatch(text, m)
			if !ok {
				continue
			}
			if !yield(l) {
				return
			}
		}
	}
}

func linkFromMatch(text string, m []int) (Link, bool) {
	l := Link{Start: m[0], End: m[1]}
	if m[2] >= 0 {
		l.Style = LinkWiki
		l.TargetStart, l.TargetEnd = m[2], m[3]
		if bar := strings.IndexByte(text[m[2]:m[3]], '|'); bar >= 0 {
			l.TargetEnd = m[2] + bar
			l.Alt = text[l.TargetEnd+1 : m[3]]
		}
	} else {
		l.Style = LinkMarkdown
		l.Alt = text[m[4]:m[5]]
		l.TargetStart, l.TargetEnd = m[6], m[7]
	}
	l.Target = text[l.TargetStart:l.TargetEnd]
	return l, l.Target != ""
}

// RewriteLink replaces the target of every embed whose target is exactly
// from. Text outside embeds is never touched and rewriting twice is a no-op.
func RewriteLink(text, from, to string) string {
	return RewriteLinks(text, map[string]string{from: to})
}

// RewriteLinks applies several target replacements in a single pass, so a
// replacement is never itself rewritten
func RewriteLinks(text string, replacements map[string]string) string {
	if len(replacements) == 0 {
		return text
	}
	return RewriteLinksFunc(text, func(l Link) (string, bool) {
		to, ok := replacements[l.Target]
		return to, ok
	})
}

// RewriteLinksFunc replaces the target of every embed for which replace
// reports true. Links are visited once, in document order.
func RewriteLinksFunc(text string, replace func(Link) (string, bool)) string {
	var b strings.Builder
	last := 0
	for l := range FindLinks(text) {
		to, ok := replace(l)
		if !ok || to == l.Target {
			continue
		}
		b.WriteString(text[last:l.TargetStart])
		b.WriteString(to)
		last = l.TargetEnd
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

// isExternalTarget reports whether target points outside the vault
func isExternalTarget(target string) bool {
	return strings.Contains(target, "://") || strings.HasPrefix(target, "data:")
}

// Attachment is a resolved link target
type Attachment struct {
	// Path is the vault path of the file on disk
	Path string

	// Mapping is set when the target was resolved through the mapping table
	Mapping *FileMapping
}

// ResolveTarget resolves a link target to a vault file. The lookup order is:
// an encrypted-looking name through the mapping table, an original path
// through the mapping table, the vault's own link resolution relative to
// contextDir, and finally target as a vault-root path. A target that none
// of these find yields a *ResolutionError wrapping ErrAttachmentNotFound.
func ResolveTarget(ctx context.Context, v Vault, target, contextDir string, table *MappingTable) (Attachment, error) {
	candidates := []string{target}
	if u, err := url.PathUnescape(target); err == nil && u != target {
		candidates = append(candidates, u)
	}

	for _, cand := range candidates {
		if table != nil {
			if IsEncryptedName(cand) {
				if m, ok := table.LookupEncrypted(cand); ok {
					if a, ok, err := mappedAttachment(ctx, v, m); ok || err != nil {
						return a, err
					}
				}
			}
			for _, orig := range []string{cand, path.Join(contextDir, cand)} {
				if m, ok := table.LookupOriginal(orig); ok {
					if a, ok, err := mappedAttachment(ctx, v, m); ok || err != nil {
						return a, err
					}
				}
			}
		}

		p, err := v.ResolveLink(ctx, cand, contextDir)
		switch {
		case err == nil:
			return Attachment{Path: p}, nil
		case !errors.Is(err, ErrAttachmentNotFound):
			return Attachment{}, err
		}

		if p := CleanVaultPath(cand); p != "" && ValidateVaultPath(p) == nil {
			ok, err := v.Exists(ctx, p)
			if err != nil {
				return Attachment{}, err
			}
			if ok {
				return Attachment{Path: p}, nil
			}
		}
	}

	return Attachment{}, &ResolutionError{Target: target, ContextDir: contextDir, Err: ErrAttachmentNotFound}
}

func mappedAttachment(ctx context.Context, v Vault, m FileMapping) (Attachment, bool, error) {
	ok, err := v.Exists(ctx, m.EncryptedPath)
	if err != nil || !ok {
		return Attachment{}, false, err
	}
	return Attachment{Path: m.EncryptedPath, Mapping: &m}, true, nil
}
