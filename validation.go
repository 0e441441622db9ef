package vaultcrypt

import (
	"fmt"
	"path"
	"strings"
)

// Input validation helpers

// ValidateBuffer checks if a buffer is valid (non-nil and has expected size)
func ValidateBuffer(buf []byte, name string, minSize int) error {
	if buf == nil {
		return &ValidationError{
			Field:   name,
			Message: "buffer cannot be nil",
		}
	}
	if minSize > 0 && len(buf) < minSize {
		return &ValidationError{
			Field:   name,
			Value:   len(buf),
			Message: fmt.Sprintf("buffer too small: got %d bytes, need at least %d bytes", len(buf), minSize),
		}
	}
	return nil
}

// ValidatePassword rejects empty passwords
func ValidatePassword(password string) error {
	if password == "" {
		return &ValidationError{
			Field:   "password",
			Message: "password cannot be empty",
			Err:     ErrEmptyPassword,
		}
	}
	return nil
}

// ValidateVaultPath checks that p names a file inside the vault: not
// empty, slash separated, and not escaping the vault root
func ValidateVaultPath(p string) error {
	if p == "" {
		return &ValidationError{
			Field:   "path",
			Message: "file path cannot be empty",
		}
	}
	if strings.ContainsRune(p, '\\') {
		return &ValidationError{
			Field:   "path",
			Value:   p,
			Message: "vault paths use forward slashes",
		}
	}
	clean := path.Clean(strings.TrimPrefix(p, "/"))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return &ValidationError{
			Field:   "path",
			Value:   p,
			Message: "path escapes the vault root",
		}
	}
	return nil
}

// CleanVaultPath returns the canonical vault-relative form of p
func CleanVaultPath(p string) string {
	clean := path.Clean(strings.TrimPrefix(p, "/"))
	if clean == "." {
		return ""
	}
	return clean
}

// vaultDir returns the vault-relative parent directory of p ("" for the root)
func vaultDir(p string) string {
	dir := path.Dir(CleanVaultPath(p))
	if dir == "." {
		return ""
	}
	return dir
}
