package vaultcrypt

import (
	"fmt"

	"github.com/absfs/absfs"
)

// CipherSuite represents the AEAD used for v2 text envelopes
type CipherSuite uint8

const (
	// CipherAuto selects AES-256-GCM
	CipherAuto CipherSuite = iota
	// CipherAES256GCM uses AES-256 with Galois/Counter Mode
	CipherAES256GCM
	// CipherChaCha20Poly1305 uses ChaCha20 stream cipher with Poly1305 MAC
	CipherChaCha20Poly1305
)

// String returns the string representation of the cipher suite
func (c CipherSuite) String() string {
	switch c {
	case CipherAuto:
		return "auto"
	case CipherAES256GCM:
		return "aes-256-gcm"
	case CipherChaCha20Poly1305:
		return "chacha20-poly1305"
	default:
		return "unknown"
	}
}

// ParseCipherSuite parses the names returned by CipherSuite.String
func ParseCipherSuite(s string) (CipherSuite, error) {
	switch s {
	case "", "auto":
		return CipherAuto, nil
	case "aes-256-gcm", "aes":
		return CipherAES256GCM, nil
	case "chacha20-poly1305", "chacha20":
		return CipherChaCha20Poly1305, nil
	}
	return 0, NewValidationError("cipher", s, "unknown cipher suite")
}

// resolve maps CipherAuto onto a concrete suite
func (c CipherSuite) resolve() CipherSuite {
	if c == CipherAuto {
		return CipherAES256GCM
	}
	return c
}

// KeyDerivation selects the password KDF for v2 text envelopes. The
// parameters of each function are fixed; see kdf.go.
type KeyDerivation uint8

const (
	// KDFPBKDF2SHA256 uses PBKDF2-HMAC-SHA256
	KDFPBKDF2SHA256 KeyDerivation = iota
	// KDFArgon2id uses Argon2id
	KDFArgon2id
)

// String returns the string representation of the key derivation function
func (k KeyDerivation) String() string {
	switch k {
	case KDFPBKDF2SHA256:
		return "pbkdf2-sha256"
	case KDFArgon2id:
		return "argon2id"
	default:
		return "unknown"
	}
}

// ParseKeyDerivation parses the names returned by KeyDerivation.String
func ParseKeyDerivation(s string) (KeyDerivation, error) {
	switch s {
	case "", "pbkdf2", "pbkdf2-sha256":
		return KDFPBKDF2SHA256, nil
	case "argon2id", "argon2":
		return KDFArgon2id, nil
	}
	return 0, NewValidationError("kdf", s, "unknown key derivation function")
}

// TextFormat selects the text envelope written for new documents
type TextFormat uint8

const (
	// TextFormatV2 writes authenticated "ENCRYPTED:v2:" envelopes
	TextFormatV2 TextFormat = iota
	// TextFormatLegacy writes the OpenSSL-compatible "Salted__" envelope
	// understood by older readers
	TextFormatLegacy
)

// String returns the string representation of the text format
func (f TextFormat) String() string {
	switch f {
	case TextFormatV2:
		return "v2"
	case TextFormatLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// Config contains configuration for an Engine
type Config struct {
	// Cipher suite used for v2 text envelopes
	Cipher CipherSuite

	// KeyDerivation used for v2 text envelopes
	KeyDerivation KeyDerivation

	// TextFormat written when sealing documents. Both formats are always
	// readable.
	TextFormat TextFormat

	// OmitAttachmentFooter disables the plaintext ATTACHMENTS line after
	// the ciphertext
	OmitAttachmentFooter bool

	// StagingFS holds staged attachment bytes until commit. If nil, staging
	// goes to the local disk so a partial commit can be resumed after the
	// process exits. Pass a memfs filesystem to stage in memory.
	StagingFS absfs.FileSystem

	// StagingDir is the absolute directory inside StagingFS under which
	// each transaction creates its own subdirectory. Empty means "/" for a
	// caller supplied StagingFS and "vaultcrypt" below os.TempDir() for
	// the local disk.
	StagingDir string

	// Parallel controls concurrent attachment staging
	Parallel ParallelConfig

	// Progress receives monotonic progress updates. Calls are made in
	// order from a separate goroutine, so a slow sink never stalls the
	// transaction.
	Progress ProgressFunc

	// Logger receives structured diagnostics. Nil discards them.
	Logger Logger
}

// DefaultConfig returns the configuration used when New is given nil
func DefaultConfig() *Config {
	return &Config{
		Cipher:        CipherAES256GCM,
		KeyDerivation: KDFPBKDF2SHA256,
		TextFormat:    TextFormatV2,
		Parallel:      DefaultParallelConfig(),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.Cipher != CipherAES256GCM && c.Cipher != CipherChaCha20Poly1305 && c.Cipher != CipherAuto {
		return &ValidationError{Field: "cipher", Value: c.Cipher, Message: "unsupported cipher suite", Err: ErrUnsupportedCipher}
	}
	if c.KeyDerivation != KDFPBKDF2SHA256 && c.KeyDerivation != KDFArgon2id {
		return &ValidationError{Field: "kdf", Value: c.KeyDerivation, Message: "unsupported key derivation function", Err: ErrUnsupportedKDF}
	}
	if c.TextFormat != TextFormatV2 && c.TextFormat != TextFormatLegacy {
		return NewValidationError("text_format", c.TextFormat, "unsupported text format")
	}
	if c.StagingDir != "" && c.StagingDir[0] != '/' {
		return NewValidationError("staging_dir", c.StagingDir, "must be an absolute path")
	}
	if err := c.Parallel.Validate(); err != nil {
		return fmt.Errorf("invalid parallel config: %w", err)
	}
	return nil
}

// textCodec returns the codec that seals documents under this config
func (c *Config) textCodec() *TextCodec {
	return &TextCodec{
		Cipher:        c.Cipher,
		KeyDerivation: c.KeyDerivation,
		Format:        c.TextFormat,
	}
}
