package vaultcrypt

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Marker is the prefix of every encrypted document
const Marker = "ENCRYPTED:"

const (
	mappingCommentPrefix = "<!--ENCRYPT_MAP:"
	mappingCommentSuffix = "-->"
	footerLabel          = "ATTACHMENTS: "
	footerSeparator      = "\n\n" + footerLabel
)

// IsEncrypted reports whether content is an encrypted document
func IsEncrypted(content string) bool {
	return strings.HasPrefix(content, Marker)
}

// Envelope is the decrypted view of a document
type Envelope struct {
	// Body is the document text without the mapping comment
	Body string

	// Mapping lists the attachments encrypted along with the document
	Mapping *MappingTable

	// Attachments are the footer tokens found after the ciphertext
	Attachments []string
}

// EmbedMapping prefixes body with the mapping comment line
func EmbedMapping(table *MappingTable, body string) (string, error) {
	if table == nil {
		table = NewMappingTable()
	}
	// json.Marshal escapes '>' so the payload never contains the
	// comment terminator
	data, err := json.Marshal(table)
	if err != nil {
		return "", fmt.Errorf("failed to encode mapping: %w", err)
	}
	return mappingCommentPrefix + string(data) + mappingCommentSuffix + "\n" + body, nil
}

// ExtractMapping splits the mapping comment from the front of body. A body
// without one yields an empty table.
func ExtractMapping(body string) (*MappingTable, string, error) {
	if !strings.HasPrefix(body, mappingCommentPrefix) {
		return NewMappingTable(), body, nil
	}
	rest := body[len(mappingCommentPrefix):]
	end := strings.Index(rest, mappingCommentSuffix)
	if end < 0 {
		return nil, "", NewCorruptionError("", "unterminated mapping comment")
	}

	table := NewMappingTable()
	if err := json.Unmarshal([]byte(rest[:end]), table); err != nil {
		return nil, "", &CorruptionError{Message: "malformed mapping: " + err.Error(), Err: ErrCorruptEnvelope}
	}

	rest = rest[end+len(mappingCommentSuffix):]
	if r, ok := strings.CutPrefix(rest, "\r\n"); ok {
		rest = r
	} else {
		rest = strings.TrimPrefix(rest, "\n")
	}
	return table, rest, nil
}

// AddAttachmentFooter appends the plaintext attachment list after the
// ciphertext. No footer is written for an empty list.
func AddAttachmentFooter(content string, tokens []string) string {
	if len(tokens) == 0 {
		return content
	}
	return content + footerSeparator + strings.Join(tokens, ", ")
}

// SplitAttachmentFooter removes a footer written by AddAttachmentFooter
func SplitAttachmentFooter(content string) (string, []string) {
	idx := strings.LastIndex(content, footerLabel)
	if idx < 0 || strings.ContainsAny(content[idx:], "\r\n") {
		return content, nil
	}

	var tokens []string
	for _, tok := range strings.Split(content[idx+len(footerLabel):], ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return strings.TrimSpace(content[:idx]), tokens
}

// footerToken is the embed link listed in the footer for an attachment
func footerToken(m FileMapping) string {
	return "![[" + m.EncryptedPath + "]]"
}

// SealEnvelope produces the stored form of a document: the marker and
// ciphertext of mapping comment + body, followed by the optional footer
func SealEnvelope(codec *TextCodec, body string, table *MappingTable, withFooter bool, password string) (string, error) {
	if codec == nil {
		codec = defaultTextCodec
	}
	plaintext, err := EmbedMapping(table, body)
	if err != nil {
		return "", err
	}
	sealed, err := codec.Encrypt(plaintext, password)
	if err != nil {
		return "", err
	}
	if withFooter && table != nil {
		tokens := make([]string, 0, table.Len())
		for _, m := range table.Entries() {
			tokens = append(tokens, footerToken(m))
		}
		sealed = AddAttachmentFooter(sealed, tokens)
	}
	return sealed, nil
}

// OpenEnvelope reverses SealEnvelope
func OpenEnvelope(codec *TextCodec, content, password string) (*Envelope, error) {
	if codec == nil {
		codec = defaultTextCodec
	}
	if !IsEncrypted(content) {
		return nil, ErrNotEncrypted
	}
	sealed, tokens := SplitAttachmentFooter(content)

	plaintext, err := codec.Decrypt(sealed, password)
	if err != nil {
		return nil, err
	}
	table, body, err := ExtractMapping(plaintext)
	if err != nil {
		return nil, err
	}
	return &Envelope{Body: body, Mapping: table, Attachments: tokens}, nil
}
