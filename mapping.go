package vaultcrypt

import (
	"encoding/json"
	"fmt"
	"path"
	"slices"
	"strings"
)

// FileMapping records where an attachment came from and where its
// encrypted form lives
type FileMapping struct {
	OriginalPath  string `json:"originalPath"`
	EncryptedName string `json:"encryptedName"`
	EncryptedPath string `json:"encryptedPath"`
	OriginalName  string `json:"originalName"`

	// ParentPath is the folder of the document that embeds the
	// attachment. NewFileMapping defaults it to the attachment's folder.
	ParentPath string `json:"parentPath"`

	FileType string `json:"fileType"`

	// OriginalLink is the link target exactly as it was written before
	// encryption. Decryption restores it; OriginalName is the fallback.
	OriginalLink string `json:"originalLink,omitempty"`

	// Links holds the original target of every embed of the attachment in
	// document order. It is only set when the document spelled the link in
	// more than one way.
	Links []string `json:"links,omitempty"`

	// Iterations is the PBKDF2 count used for the encrypted bytes.
	// Zero means LegacyBinaryIterations.
	Iterations int `json:"iterations,omitempty"`
}

// NewFileMapping derives the descriptive fields of a mapping from the
// original and encrypted paths
func NewFileMapping(originalPath, encryptedPath string) FileMapping {
	originalPath = CleanVaultPath(originalPath)
	encryptedPath = CleanVaultPath(encryptedPath)
	return FileMapping{
		OriginalPath:  originalPath,
		EncryptedName: path.Base(encryptedPath),
		EncryptedPath: encryptedPath,
		OriginalName:  path.Base(originalPath),
		ParentPath:    vaultDir(originalPath),
		FileType:      path.Ext(originalPath),
	}
}

// restoredLink is the link target decryption writes back into the document
func (m FileMapping) restoredLink() string {
	if m.OriginalLink != "" {
		return m.OriginalLink
	}
	return m.OriginalName
}

// linkFor is the target restored for the k-th embed of the attachment
func (m FileMapping) linkFor(k int) string {
	if k < len(m.Links) {
		return m.Links[k]
	}
	return m.restoredLink()
}

// MappingTable maps encrypted names to FileMappings. A table belongs to a
// single transaction and is not safe for concurrent use.
type MappingTable struct {
	entries map[string]FileMapping
}

// NewMappingTable returns an empty table
func NewMappingTable() *MappingTable {
	return &MappingTable{entries: make(map[string]FileMapping)}
}

// Insert adds m keyed by its encrypted name. It fails with ErrNameCollision
// if the name is already present; callers retry with a fresh name.
func (t *MappingTable) Insert(m FileMapping) error {
	if m.EncryptedName == "" {
		return NewValidationError("encryptedName", m.EncryptedName, "encrypted name cannot be empty")
	}
	if _, ok := t.entries[m.EncryptedName]; ok {
		return fmt.Errorf("%w: %s", ErrNameCollision, m.EncryptedName)
	}
	t.entries[m.EncryptedName] = m
	return nil
}

// Get returns the mapping for an encrypted name
func (t *MappingTable) Get(encryptedName string) (FileMapping, bool) {
	m, ok := t.entries[encryptedName]
	return m, ok
}

// LookupOriginal returns the mapping whose original path is originalPath
func (t *MappingTable) LookupOriginal(originalPath string) (FileMapping, bool) {
	originalPath = CleanVaultPath(originalPath)
	for _, name := range t.names() {
		if m := t.entries[name]; m.OriginalPath == originalPath {
			return m, true
		}
	}
	return FileMapping{}, false
}

// LookupEncrypted returns the mapping whose encrypted path is token or ends
// with "/"+token
func (t *MappingTable) LookupEncrypted(token string) (FileMapping, bool) {
	token = CleanVaultPath(token)
	if token == "" {
		return FileMapping{}, false
	}
	for _, name := range t.names() {
		m := t.entries[name]
		if m.EncryptedPath == token || strings.HasSuffix(m.EncryptedPath, "/"+token) {
			return m, true
		}
	}
	return FileMapping{}, false
}

// Len returns the number of entries
func (t *MappingTable) Len() int {
	return len(t.entries)
}

// Entries returns all mappings ordered by encrypted name
func (t *MappingTable) Entries() []FileMapping {
	out := make([]FileMapping, 0, len(t.entries))
	for _, name := range t.names() {
		out = append(out, t.entries[name])
	}
	return out
}

func (t *MappingTable) names() []string {
	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// MarshalJSON encodes the table as an object keyed by encrypted name
func (t *MappingTable) MarshalJSON() ([]byte, error) {
	if t.entries == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(t.entries)
}

// UnmarshalJSON decodes a table, filling fields older writers omitted
func (t *MappingTable) UnmarshalJSON(data []byte) error {
	var raw map[string]FileMapping
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("mapping must be a JSON object")
	}

	t.entries = make(map[string]FileMapping, len(raw))
	for name, m := range raw {
		m.EncryptedName = name
		if m.OriginalPath == "" {
			m.OriginalPath = name
		}
		if m.EncryptedPath == "" {
			m.EncryptedPath = name
		}
		t.entries[name] = m
	}
	return nil
}
