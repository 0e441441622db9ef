package vaultcrypt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// TextVersion is the binary header version of v2 text envelopes
	TextVersion = uint8(2)

	// TextHeaderSize is the encoded size of a TextHeader:
	// version (1) + cipher (1) + kdf (1) + salt + nonce
	TextHeaderSize = 3 + SaltSize + NonceSize
)

// TextHeader prefixes the ciphertext inside a v2 text envelope. The encoded
// header is authenticated as AEAD associated data.
type TextHeader struct {
	Version       uint8         // Envelope version
	Cipher        CipherSuite   // AEAD used for the payload
	KeyDerivation KeyDerivation // KDF used to derive the key
	Salt          []byte        // KDF salt
	Nonce         []byte        // AEAD nonce
}

// NewTextHeader creates a header for a freshly sealed envelope
func NewTextHeader(cipher CipherSuite, kdf KeyDerivation, salt, nonce []byte) *TextHeader {
	return &TextHeader{
		Version:       TextVersion,
		Cipher:        cipher.resolve(),
		KeyDerivation: kdf,
		Salt:          salt,
		Nonce:         nonce,
	}
}

// WriteTo writes the header to the given writer
func (h *TextHeader) WriteTo(w io.Writer) (int64, error) {
	if err := h.Validate(); err != nil {
		return 0, err
	}

	buf := new(bytes.Buffer)
	for _, v := range []any{h.Version, h.Cipher, h.KeyDerivation} {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return 0, fmt.Errorf("failed to write header field: %w", err)
		}
	}
	buf.Write(h.Salt)
	buf.Write(h.Nonce)

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// ReadFrom reads the header from the given reader
func (h *TextHeader) ReadFrom(r io.Reader) (int64, error) {
	raw := make([]byte, TextHeaderSize)
	n, err := io.ReadFull(r, raw)
	if err != nil {
		return int64(n), NewCorruptionError("", "truncated envelope header")
	}

	h.Version = raw[0]
	h.Cipher = CipherSuite(raw[1])
	h.KeyDerivation = KeyDerivation(raw[2])
	h.Salt = bytes.Clone(raw[3 : 3+SaltSize])
	h.Nonce = bytes.Clone(raw[3+SaltSize:])

	return int64(n), h.Validate()
}

// Bytes returns the encoded header
func (h *TextHeader) Bytes() []byte {
	var buf bytes.Buffer
	if _, err := h.WriteTo(&buf); err != nil {
		return nil
	}
	return buf.Bytes()
}

// Validate checks if the header is valid
func (h *TextHeader) Validate() error {
	if h.Version != TextVersion {
		return &CorruptionError{Message: fmt.Sprintf("unsupported envelope version %d", h.Version), Err: ErrUnsupportedVersion}
	}
	if h.Cipher != CipherAES256GCM && h.Cipher != CipherChaCha20Poly1305 {
		return &CorruptionError{Message: "unsupported cipher suite", Err: ErrUnsupportedCipher}
	}
	if h.KeyDerivation != KDFPBKDF2SHA256 && h.KeyDerivation != KDFArgon2id {
		return &CorruptionError{Message: "unsupported key derivation function", Err: ErrUnsupportedKDF}
	}
	if len(h.Salt) != SaltSize {
		return NewCorruptionError("", fmt.Sprintf("salt must be %d bytes", SaltSize))
	}
	if len(h.Nonce) != NonceSize {
		return NewCorruptionError("", fmt.Sprintf("nonce must be %d bytes", NonceSize))
	}
	return nil
}
