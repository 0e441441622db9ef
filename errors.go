package vaultcrypt

import (
	"errors"
	"fmt"
	"strings"
)

// Error types represent the failure categories a transaction can report

// ValidationError represents a configuration or parameter validation error
type ValidationError struct {
	Field   string // The field or parameter that failed validation
	Value   any    // The invalid value
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// AuthenticationError is returned when a password does not open an envelope.
// A wrong password and tampered ciphertext are reported identically.
type AuthenticationError struct {
	Path    string // Document or attachment path, if known
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *AuthenticationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("authentication error: %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("authentication error: %s", e.Message)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// CorruptionError represents an envelope or payload that cannot be parsed
type CorruptionError struct {
	Path    string // Document or attachment path, if known
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *CorruptionError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("corruption error: %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("corruption error: %s", e.Message)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}

// StorageError represents a vault or staging I/O failure
type StorageError struct {
	Operation string // "read", "write", "remove", "stage", ...
	Path      string // Path the operation targeted
	Err       error  // Underlying error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("storage error: %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("storage error: %s: %v", e.Operation, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ResolutionError reports a link target that could not be resolved to a
// vault file. It is never fatal: the engine records it and moves on.
type ResolutionError struct {
	Target     string // The link target as written in the document
	ContextDir string // Directory the lookup was relative to
	Err        error  // Underlying error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("attachment resolution failed: %q: %v", e.Target, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// PartialCommitError is returned when the commit phase fails after it has
// started mutating the vault. Committed entries are already in their final
// form, Pending entries still have their bytes in the staging area.
type PartialCommitError struct {
	TransactionID   string
	Committed       []StagingEntry
	Pending         []StagingEntry
	DocumentWritten bool
	StagingDir      string
	Err             error
}

func (e *PartialCommitError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "partial commit (transaction %s): %d committed, %d pending", e.TransactionID, len(e.Committed), len(e.Pending))
	if !e.DocumentWritten {
		b.WriteString(", document not written")
	}
	if e.StagingDir != "" {
		fmt.Fprintf(&b, ", staged data in %s", e.StagingDir)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *PartialCommitError) Unwrap() error {
	return e.Err
}

// Sentinel errors
var (
	ErrWrongPassword         = errors.New("wrong password or corrupted data")
	ErrNotEncrypted          = errors.New("document is not encrypted")
	ErrAlreadyEncrypted      = errors.New("document is already encrypted")
	ErrAttachmentNotFound    = errors.New("attachment not found")
	ErrUnmappedAttachment    = errors.New("encrypted attachment has no mapping entry")
	ErrCorruptEnvelope       = errors.New("corrupt envelope")
	ErrCorruptData           = errors.New("corrupt compressed data")
	ErrUnsupportedVersion    = errors.New("unsupported envelope version")
	ErrUnsupportedCipher     = errors.New("unsupported cipher suite")
	ErrUnsupportedKDF        = errors.New("unsupported key derivation function")
	ErrTransactionInProgress = errors.New("a transaction is already in progress for this document")
	ErrTransactionClosed     = errors.New("transaction is closed")
	ErrCommitStarted         = errors.New("commit has started, transaction can no longer be aborted")
	ErrNameCollision         = errors.New("encrypted name already mapped")
	ErrNilConfig             = errors.New("config cannot be nil")
	ErrNilVault              = errors.New("vault cannot be nil")
	ErrEmptyPassword         = errors.New("password cannot be empty")
)

// Helper functions for creating structured errors

// NewValidationError creates a new validation error
func NewValidationError(field string, value any, message string) error {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewStorageError wraps err as a storage failure
func NewStorageError(operation, path string, err error) error {
	return &StorageError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewCorruptionError creates a corruption error that unwraps to ErrCorruptEnvelope
func NewCorruptionError(path string, message string) error {
	return &CorruptionError{
		Path:    path,
		Message: message,
		Err:     ErrCorruptEnvelope,
	}
}

// newWrongPasswordError creates the authentication error for a failed open.
// The cause is intentionally not surfaced in the message.
func newWrongPasswordError(path string) error {
	return &AuthenticationError{
		Path:    path,
		Message: ErrWrongPassword.Error(),
		Err:     ErrWrongPassword,
	}
}

// withPath returns err annotated with path when it is one of the typed
// errors that carry one and the path is still empty.
func withPath(err error, path string) error {
	var ae *AuthenticationError
	if errors.As(err, &ae) && ae.Path == "" {
		cp := *ae
		cp.Path = path
		return &cp
	}
	var ce *CorruptionError
	if errors.As(err, &ce) && ce.Path == "" {
		cp := *ce
		cp.Path = path
		return &cp
	}
	return err
}

// Error checking helpers

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsAuthenticationError checks if an error is an authentication error
func IsAuthenticationError(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}

// IsCorruptionError checks if an error is a corruption error
func IsCorruptionError(err error) bool {
	var ce *CorruptionError
	return errors.As(err, &ce)
}

// IsStorageError checks if an error is a storage error
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// IsResolutionError checks if an error is an attachment resolution error
func IsResolutionError(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}

// IsPartialCommitError checks if an error is a partial commit error
func IsPartialCommitError(err error) bool {
	var pe *PartialCommitError
	return errors.As(err, &pe)
}
