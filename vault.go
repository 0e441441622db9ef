package vaultcrypt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/absfs/absfs"
)

// Vault is the storage the engine reads documents and attachments from and
// commits results to. Paths are vault-relative and slash separated.
type Vault interface {
	ReadText(ctx context.Context, p string) (string, error)
	WriteText(ctx context.Context, p string, text string) error
	ReadBinary(ctx context.Context, p string) ([]byte, error)
	WriteBinary(ctx context.Context, p string, data []byte) error
	Remove(ctx context.Context, p string) error
	Exists(ctx context.Context, p string) (bool, error)

	// ResolveLink finds the file a link target written in a document under
	// contextDir refers to. It returns ErrAttachmentNotFound when there is
	// none.
	ResolveLink(ctx context.Context, target, contextDir string) (string, error)
}

// FSVault implements Vault on top of any absfs.FileSystem
type FSVault struct {
	fsys  absfs.FileSystem
	root  string
	trash string
}

// FSVaultOption configures an FSVault
type FSVaultOption func(*FSVault)

// WithTrash makes Remove move files into dir (vault-relative) instead of
// deleting them
func WithTrash(dir string) FSVaultOption {
	return func(v *FSVault) {
		v.trash = CleanVaultPath(dir)
	}
}

// NewFSVault creates a vault rooted at root inside fsys
func NewFSVault(fsys absfs.FileSystem, root string, opts ...FSVaultOption) (*FSVault, error) {
	if fsys == nil {
		return nil, ErrNilVault
	}
	if root == "" {
		root = "/"
	}
	if !strings.HasPrefix(root, "/") {
		return nil, NewValidationError("root", root, "vault root must be an absolute path")
	}

	v := &FSVault{fsys: fsys, root: path.Clean(root)}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Root returns the absolute directory of the vault inside its filesystem
func (v *FSVault) Root() string {
	return v.root
}

func (v *FSVault) abs(p string) (string, error) {
	if err := ValidateVaultPath(p); err != nil {
		return "", err
	}
	return path.Join(v.root, CleanVaultPath(p)), nil
}

// ReadText reads a document
func (v *FSVault) ReadText(ctx context.Context, p string) (string, error) {
	data, err := v.ReadBinary(ctx, p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteText replaces a document
func (v *FSVault) WriteText(ctx context.Context, p string, text string) error {
	return v.WriteBinary(ctx, p, []byte(text))
}

// ReadBinary reads a file
func (v *FSVault) ReadBinary(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := v.abs(p)
	if err != nil {
		return nil, err
	}
	data, err := v.fsys.ReadFile(abs)
	if err != nil {
		return nil, NewStorageError("read", p, err)
	}
	return data, nil
}

// WriteBinary creates or truncates a file, creating parent directories
func (v *FSVault) WriteBinary(ctx context.Context, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	abs, err := v.abs(p)
	if err != nil {
		return err
	}
	if err := v.fsys.MkdirAll(path.Dir(abs), 0o755); err != nil {
		return NewStorageError("mkdir", p, err)
	}

	f, err := v.fsys.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return NewStorageError("write", p, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return NewStorageError("write", p, err)
	}
	if err := f.Close(); err != nil {
		return NewStorageError("write", p, err)
	}
	return nil
}

// Remove deletes a file, or moves it to the trash directory when one is
// configured
func (v *FSVault) Remove(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	abs, err := v.abs(p)
	if err != nil {
		return err
	}

	if v.trash == "" {
		if err := v.fsys.Remove(abs); err != nil {
			return NewStorageError("remove", p, err)
		}
		return nil
	}

	dst := path.Join(v.root, v.trash, CleanVaultPath(p))
	if _, err := v.fsys.Stat(dst); err == nil {
		dst = fmt.Sprintf("%s.%d", dst, time.Now().UnixNano())
	}
	if err := v.fsys.MkdirAll(path.Dir(dst), 0o755); err != nil {
		return NewStorageError("trash", p, err)
	}
	if err := v.fsys.Rename(abs, dst); err != nil {
		return NewStorageError("trash", p, err)
	}
	return nil
}

// Exists reports whether p is a regular file in the vault
func (v *FSVault) Exists(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	abs, err := v.abs(p)
	if err != nil {
		return false, nil
	}
	fi, err := v.fsys.Stat(abs)
	switch {
	case err == nil:
		return !fi.IsDir(), nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, NewStorageError("stat", p, err)
	}
}

// ResolveLink tries target relative to contextDir, then as a vault-root
// path, then searches the whole vault for a file whose path ends with
// target. Among several matches the shortest path wins, then the
// lexically smallest.
func (v *FSVault) ResolveLink(ctx context.Context, target, contextDir string) (string, error) {
	if target == "" || strings.ContainsRune(target, '\\') {
		return "", ErrAttachmentNotFound
	}

	for _, cand := range []string{path.Join(contextDir, target), target} {
		cand = CleanVaultPath(cand)
		if ValidateVaultPath(cand) != nil {
			continue
		}
		ok, err := v.Exists(ctx, cand)
		if err != nil {
			return "", err
		}
		if ok {
			return cand, nil
		}
	}

	if ValidateVaultPath(target) != nil {
		return "", ErrAttachmentNotFound
	}
	suffix := CleanVaultPath(target)
	var matches []string
	err := v.walk(ctx, "", func(p string) {
		if p == suffix || strings.HasSuffix(p, "/"+suffix) {
			matches = append(matches, p)
		}
	})
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", ErrAttachmentNotFound
	}

	slices.SortFunc(matches, func(a, b string) int {
		if len(a) != len(b) {
			return len(a) - len(b)
		}
		return strings.Compare(a, b)
	})
	return matches[0], nil
}

// walk visits every regular file under dir, skipping hidden directories
// and the trash
func (v *FSVault) walk(ctx context.Context, dir string, visit func(p string)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := v.fsys.ReadDir(path.Join(v.root, dir))
	if err != nil {
		if dir == "" && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return NewStorageError("list", dir, err)
	}
	for _, e := range entries {
		p := path.Join(dir, e.Name())
		if e.IsDir() {
			if strings.HasPrefix(e.Name(), ".") || p == v.trash {
				continue
			}
			if err := v.walk(ctx, p, visit); err != nil {
				return err
			}
			continue
		}
		visit(p)
	}
	return nil
}
