package vaultcrypt

import (
	"bytes"
	"compress/zlib"
	"crypto/aes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// v2Tag follows the marker in v2 envelopes. ':' is outside the base64
// alphabet, so it never collides with a legacy payload.
const v2Tag = "v2:"

// binaryHeaderSize is salt (16) + iv (16)
const binaryHeaderSize = SaltSize + aes.BlockSize

// Compress deflates text into a zlib stream
func Compress(text string) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := io.WriteString(w, text); err != nil {
		return nil, fmt.Errorf("failed to compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress inflates a zlib stream produced by Compress
func Decompress(data []byte) (string, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", ErrCorruptData
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return "", ErrCorruptData
	}
	return string(out), nil
}

// TextCodec seals and opens document text. The zero value writes v2
// envelopes with AES-256-GCM and PBKDF2-SHA256.
type TextCodec struct {
	Cipher        CipherSuite
	KeyDerivation KeyDerivation
	Format        TextFormat
}

var defaultTextCodec = &TextCodec{}

// EncryptText seals text into an envelope string with the default codec
func EncryptText(text, password string) (string, error) {
	return defaultTextCodec.Encrypt(text, password)
}

// DecryptText opens an envelope written by EncryptText or by the legacy writer
func DecryptText(envelope, password string) (string, error) {
	return defaultTextCodec.Decrypt(envelope, password)
}

// Encrypt seals text into "ENCRYPTED:" followed by the payload
func (c *TextCodec) Encrypt(text, password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	if c.Format == TextFormatLegacy {
		payload, err := sealLegacyText(text, password)
		if err != nil {
			return "", err
		}
		return Marker + payload, nil
	}

	compressed, err := Compress(text)
	if err != nil {
		return "", err
	}
	salt, err := randomBytes(SaltSize)
	if err != nil {
		return "", err
	}
	nonce, err := randomBytes(NonceSize)
	if err != nil {
		return "", err
	}

	header := NewTextHeader(c.Cipher, c.KeyDerivation, salt, nonce)
	key, err := deriveTextKey(header.KeyDerivation, []byte(password), salt)
	if err != nil {
		return "", err
	}
	engine, err := NewCipherEngine(header.Cipher, key)
	if err != nil {
		return "", err
	}

	var raw bytes.Buffer
	if _, err := header.WriteTo(&raw); err != nil {
		return "", err
	}
	ct, err := engine.Seal(nonce, compressed, raw.Bytes())
	if err != nil {
		return "", err
	}
	raw.Write(ct)

	return Marker + v2Tag + base64.StdEncoding.EncodeToString(raw.Bytes()), nil
}

// Decrypt opens an envelope of either version. The version is taken from
// the envelope, not from the codec configuration.
func (c *TextCodec) Decrypt(envelope, password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if !strings.HasPrefix(envelope, Marker) {
		return "", ErrNotEncrypted
	}
	payload := strings.TrimSpace(envelope[len(Marker):])

	if rest, ok := strings.CutPrefix(payload, v2Tag); ok {
		return openV2Text(rest, password)
	}
	return openLegacyText(payload, password)
}

func openV2Text(payload, password string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", &CorruptionError{Message: "envelope is not valid base64", Err: ErrCorruptEnvelope}
	}

	var header TextHeader
	if _, err := header.ReadFrom(bytes.NewReader(raw)); err != nil {
		return "", err
	}
	key, err := deriveTextKey(header.KeyDerivation, []byte(password), header.Salt)
	if err != nil {
		return "", err
	}
	engine, err := NewCipherEngine(header.Cipher, key)
	if err != nil {
		return "", err
	}
	ct := raw[TextHeaderSize:]
	if len(ct) < engine.Overhead() {
		return "", NewCorruptionError("", "ciphertext shorter than authentication tag")
	}

	compressed, err := engine.Open(header.Nonce, ct, raw[:TextHeaderSize])
	if err != nil {
		return "", newWrongPasswordError("")
	}
	text, err := Decompress(compressed)
	if err != nil {
		return "", &CorruptionError{Message: "payload is not valid zlib data", Err: ErrCorruptData}
	}
	return text, nil
}

// EncryptBinary encrypts attachment bytes as salt || iv || AES-256-CBC
// using the current iteration count
func EncryptBinary(data []byte, password string) ([]byte, error) {
	return EncryptBinaryWithParams(data, password, BinaryParams(BinaryIterations))
}

// DecryptBinary reverses EncryptBinary
func DecryptBinary(data []byte, password string) ([]byte, error) {
	return DecryptBinaryWithParams(data, password, BinaryParams(BinaryIterations))
}

// DecryptLegacyBinary decrypts an attachment written without a recorded
// iteration count, trying each legacy KDF hash in turn. The padding check is
// the only signal, so a wrong hash can pass it with probability near 1/256.
func DecryptLegacyBinary(data []byte, password string) ([]byte, error) {
	var err error
	for _, params := range legacyBinaryParams {
		var pt []byte
		pt, err = DecryptBinaryWithParams(data, password, params)
		if !errors.Is(err, ErrWrongPassword) {
			return pt, err
		}
	}
	return nil, err
}

// decryptAttachment reverses the binary transform recorded in m
func decryptAttachment(data []byte, password string, m FileMapping) ([]byte, error) {
	if m.Iterations <= 0 {
		return DecryptLegacyBinary(data, password)
	}
	return DecryptBinaryWithParams(data, password, BinaryParams(m.Iterations))
}

// EncryptBinaryWithParams encrypts data with an explicit KDF configuration
func EncryptBinaryWithParams(data []byte, password string, params PBKDF2Params) ([]byte, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	header, err := randomBytes(binaryHeaderSize)
	if err != nil {
		return nil, err
	}
	salt, iv := header[:SaltSize], header[SaltSize:]

	key, err := params.DeriveKey([]byte(password), salt)
	if err != nil {
		return nil, err
	}
	ct, err := cbcEncrypt(key, iv, data)
	if err != nil {
		return nil, err
	}
	return append(header, ct...), nil
}

// DecryptBinaryWithParams decrypts data with an explicit KDF configuration
func DecryptBinaryWithParams(data []byte, password string, params PBKDF2Params) ([]byte, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	if err := ValidateBuffer(data, "ciphertext", binaryHeaderSize+aes.BlockSize); err != nil {
		return nil, &CorruptionError{Message: "ciphertext too short", Err: ErrCorruptData}
	}
	if (len(data)-binaryHeaderSize)%aes.BlockSize != 0 {
		return nil, &CorruptionError{Message: "ciphertext is not a whole number of blocks", Err: ErrCorruptData}
	}

	salt, iv := data[:SaltSize], data[SaltSize:binaryHeaderSize]
	key, err := params.DeriveKey([]byte(password), salt)
	if err != nil {
		return nil, err
	}
	pt, err := cbcDecrypt(key, iv, data[binaryHeaderSize:])
	if err != nil {
		return nil, newWrongPasswordError("")
	}
	return pt, nil
}
