package vaultcrypt

import (
	"encoding/hex"
	"path"
	"regexp"
	"strings"
)

// randomNameBytes is the entropy of a generated name (128 bits)
const randomNameBytes = 16

// encryptedNamePattern matches names produced by GenerateRandomName
var encryptedNamePattern = regexp.MustCompile(`^(.*_)?[a-f0-9]{32}$`)

// GenerateRandomName returns seed + "_" + 32 lowercase hex characters from
// a cryptographic source, or the hex alone when seed is empty. The seed is
// usually the base name of the document that owns the attachment, so
// encrypted blobs sort next to their note.
func GenerateRandomName(seed string) (string, error) {
	b, err := randomBytes(randomNameBytes)
	if err != nil {
		return "", err
	}
	name := hex.EncodeToString(b)
	if seed == "" {
		return name, nil
	}
	return seed + "_" + name, nil
}

// IsEncryptedName reports whether the last element of p looks like a name
// produced by GenerateRandomName
func IsEncryptedName(p string) bool {
	return encryptedNamePattern.MatchString(path.Base(p))
}

// documentSeed is the base name of docPath without its extension
func documentSeed(docPath string) string {
	base := path.Base(CleanVaultPath(docPath))
	return strings.TrimSuffix(base, path.Ext(base))
}
