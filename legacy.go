package vaultcrypt

import (
	"bytes"
	"crypto/aes"
	"crypto/md5"
	"encoding/base64"
)

// Legacy text envelopes use the OpenSSL "Salted__" layout:
//
//	base64("Salted__" || salt[8] || AES-256-CBC(base64(zlib(text))))
//
// with key and IV from EVP_BytesToKey(MD5, 1 round). The format has no
// authentication tag, so a wrong password is detected heuristically from
// the padding, the inner base64 and the inflate step.

const (
	legacySaltedPrefix = "Salted__"
	legacySaltSize     = 8
)

// evpBytesToKey implements OpenSSL's EVP_BytesToKey with MD5 and a single
// iteration
func evpBytesToKey(password, salt []byte, keyLen, ivLen int) (key, iv []byte) {
	var out, prev []byte
	for len(out) < keyLen+ivLen {
		h := md5.New()
		h.Write(prev)
		h.Write(password)
		h.Write(salt)
		prev = h.Sum(nil)
		out = append(out, prev...)
	}
	return out[:keyLen], out[keyLen : keyLen+ivLen]
}

// sealLegacyText returns the base64 payload that follows the marker
func sealLegacyText(text, password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	compressed, err := Compress(text)
	if err != nil {
		return "", err
	}
	inner := base64.StdEncoding.EncodeToString(compressed)

	salt, err := randomBytes(legacySaltSize)
	if err != nil {
		return "", err
	}
	key, iv := evpBytesToKey([]byte(password), salt, KeySize, aes.BlockSize)
	ct, err := cbcEncrypt(key, iv, []byte(inner))
	if err != nil {
		return "", err
	}

	var raw bytes.Buffer
	raw.WriteString(legacySaltedPrefix)
	raw.Write(salt)
	raw.Write(ct)
	return base64.StdEncoding.EncodeToString(raw.Bytes()), nil
}

// openLegacyText reverses sealLegacyText
func openLegacyText(payload, password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", &CorruptionError{Message: "envelope is not valid base64", Err: ErrCorruptEnvelope}
	}
	headerLen := len(legacySaltedPrefix) + legacySaltSize
	if len(raw) < headerLen+aes.BlockSize || !bytes.HasPrefix(raw, []byte(legacySaltedPrefix)) {
		return "", NewCorruptionError("", "missing salted header")
	}
	ct := raw[headerLen:]
	if len(ct)%aes.BlockSize != 0 {
		return "", NewCorruptionError("", "ciphertext is not a whole number of blocks")
	}

	key, iv := evpBytesToKey([]byte(password), raw[len(legacySaltedPrefix):headerLen], KeySize, aes.BlockSize)
	pt, err := cbcDecrypt(key, iv, ct)
	if err != nil {
		return "", newWrongPasswordError("")
	}
	inner, err := base64.StdEncoding.DecodeString(string(pt))
	if err != nil {
		return "", newWrongPasswordError("")
	}
	text, err := Decompress(inner)
	if err != nil {
		return "", newWrongPasswordError("")
	}
	return text, nil
}
