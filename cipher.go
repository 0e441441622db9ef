package vaultcrypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// NonceSize is the nonce length of both supported AEADs
const NonceSize = 12

// CipherEngine provides AEAD encryption/decryption for text envelopes
type CipherEngine interface {
	// Seal encrypts plaintext, authenticating additionalData alongside it
	Seal(nonce, plaintext, additionalData []byte) ([]byte, error)

	// Open decrypts ciphertext. Any authentication failure is reported as
	// ErrWrongPassword.
	Open(nonce, ciphertext, additionalData []byte) ([]byte, error)

	// NonceSize returns the size of nonces in bytes
	NonceSize() int

	// Overhead returns the authentication tag size
	Overhead() int
}

type aeadEngine struct {
	aead cipher.AEAD
}

// NewCipherEngine creates an engine for suite keyed with key
func NewCipherEngine(suite CipherSuite, key []byte) (CipherEngine, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%s requires a %d-byte key, got %d bytes", suite.resolve(), KeySize, len(key))
	}

	var (
		aead cipher.AEAD
		err  error
	)
	switch suite.resolve() {
	case CipherAES256GCM:
		var block cipher.Block
		block, err = aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create AES cipher: %w", err)
		}
		aead, err = cipher.NewGCM(block)
	case CipherChaCha20Poly1305:
		aead, err = chacha20poly1305.New(key)
	default:
		return nil, ErrUnsupportedCipher
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", suite.resolve(), err)
	}
	return &aeadEngine{aead: aead}, nil
}

func (e *aeadEngine) Seal(nonce, plaintext, additionalData []byte) ([]byte, error) {
	if len(nonce) != e.NonceSize() {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", e.NonceSize(), len(nonce))
	}
	return e.aead.Seal(nil, nonce, plaintext, additionalData), nil
}

func (e *aeadEngine) Open(nonce, ciphertext, additionalData []byte) ([]byte, error) {
	if len(nonce) != e.NonceSize() {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", e.NonceSize(), len(nonce))
	}
	plaintext, err := e.aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, ErrWrongPassword
	}
	return plaintext, nil
}

func (e *aeadEngine) NonceSize() int {
	return e.aead.NonceSize()
}

func (e *aeadEngine) Overhead() int {
	return e.aead.Overhead()
}

// cbcEncrypt encrypts plaintext with AES-CBC and PKCS#7 padding
func cbcEncrypt(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("iv must be %d bytes, got %d", aes.BlockSize, len(iv))
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

// cbcDecrypt reverses cbcEncrypt. A bad length or padding is reported as
// ErrWrongPassword since CBC cannot tell the two apart.
func cbcDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("iv must be %d bytes, got %d", aes.BlockSize, len(iv))
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrWrongPassword
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out, aes.BlockSize)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

// pkcs7Unpad strips exactly the padding that was added, so plaintext
// ending in zero bytes is returned intact
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrWrongPassword
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, ErrWrongPassword
	}
	want := bytes.Repeat([]byte{byte(n)}, n)
	if subtle.ConstantTimeCompare(data[len(data)-n:], want) != 1 {
		return nil, ErrWrongPassword
	}
	return data[:len(data)-n], nil
}
