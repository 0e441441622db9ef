package vaultcrypt

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltSize is the salt length used by every password KDF in this package
	SaltSize = 16

	// KeySize is the derived key length (AES-256, ChaCha20)
	KeySize = 32

	// BinaryIterations is the PBKDF2 iteration count for new attachments
	BinaryIterations = 600_000

	// LegacyBinaryIterations is the count used by attachments whose mapping
	// entry does not record one
	LegacyBinaryIterations = 1000
)

// HashFunc represents hash function types for PBKDF2
type HashFunc uint8

const (
	// SHA256 hash function
	SHA256 HashFunc = iota
	// SHA1 hash function, used by some legacy attachments
	SHA1
)

func (h HashFunc) new() (func() hash.Hash, error) {
	switch h {
	case SHA256:
		return sha256.New, nil
	case SHA1:
		return sha1.New, nil
	default:
		return nil, fmt.Errorf("unsupported hash function: %v", h)
	}
}

// PBKDF2Params contains parameters for PBKDF2 key derivation
type PBKDF2Params struct {
	Iterations int      // Number of iterations
	HashFunc   HashFunc // Hash function to use
}

// Argon2idParams contains parameters for Argon2id key derivation
type Argon2idParams struct {
	Memory      uint32 // Memory in KiB
	Iterations  uint32 // Number of iterations (time parameter)
	Parallelism uint8  // Degree of parallelism
}

var (
	// textPBKDF2 is used by v2 envelopes sealed with KDFPBKDF2SHA256
	textPBKDF2 = PBKDF2Params{Iterations: 600_000, HashFunc: SHA256}

	// textArgon2id is used by v2 envelopes sealed with KDFArgon2id
	textArgon2id = Argon2idParams{Memory: 64 * 1024, Iterations: 3, Parallelism: 4}
)

// BinaryParams returns the PBKDF2 parameters for an attachment encrypted
// with the given iteration count. Zero selects the legacy count.
func BinaryParams(iterations int) PBKDF2Params {
	if iterations <= 0 {
		iterations = LegacyBinaryIterations
	}
	return PBKDF2Params{Iterations: iterations, HashFunc: SHA256}
}

// legacyBinaryParams are tried in order on attachments whose mapping entry
// records no iteration count. Older writers keyed them with PBKDF2 at 1000
// iterations over SHA-256 or, before that default changed, SHA-1.
var legacyBinaryParams = []PBKDF2Params{
	{Iterations: LegacyBinaryIterations, HashFunc: SHA256},
	{Iterations: LegacyBinaryIterations, HashFunc: SHA1},
}

// DeriveKey derives a KeySize key from password and salt
func (p PBKDF2Params) DeriveKey(password, salt []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	if len(salt) == 0 {
		return nil, NewValidationError("salt", nil, "salt cannot be empty")
	}
	if p.Iterations < 1 {
		return nil, NewValidationError("iterations", p.Iterations, "must be positive")
	}
	h, err := p.HashFunc.new()
	if err != nil {
		return nil, err
	}
	return pbkdf2.Key(password, salt, p.Iterations, KeySize, h), nil
}

// DeriveKey derives a KeySize key from password and salt
func (p Argon2idParams) DeriveKey(password, salt []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	if len(salt) == 0 {
		return nil, NewValidationError("salt", nil, "salt cannot be empty")
	}
	return argon2.IDKey(password, salt, p.Iterations, p.Memory, p.Parallelism, KeySize), nil
}

// deriveTextKey derives the key of a v2 text envelope
func deriveTextKey(kdf KeyDerivation, password, salt []byte) ([]byte, error) {
	switch kdf {
	case KDFPBKDF2SHA256:
		return textPBKDF2.DeriveKey(password, salt)
	case KDFArgon2id:
		return textArgon2id.DeriveKey(password, salt)
	default:
		return nil, ErrUnsupportedKDF
	}
}

// randomBytes returns n bytes from crypto/rand
func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return b, nil
}
