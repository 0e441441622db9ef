// Package vaultcrypt encrypts markdown documents of a note vault together
// with the attachments they embed, as a single transaction.
//
// # Overview
//
// A document is a text file that may embed attachments with either of two
// link syntaxes:
//
//	![[image.png]]            wiki embed (optionally ![[image.png|200]])
//	![caption](image.png)     markdown embed
//
// Encrypting a document encrypts every attachment it embeds, moves each to
// a random name next to the original, rewrites the links to the new names,
// and finally replaces the document with an envelope that also carries the
// mapping needed to undo all of it. Decrypting reverses the process.
//
// Both directions run through the same phases. Everything before the
// commit happens in a private staging area, so a wrong password, a missing
// file or a cancelled context leaves the vault exactly as it was. The
// commit writes attachments first and the document last; if it fails
// halfway a *PartialCommitError says which entries are committed and which
// are still staged, and the transaction can be resumed.
//
// # Basic Usage
//
//	base, _ := memfs.NewFS()
//	vault, _ := vaultcrypt.NewFSVault(base, "/vault")
//
//	engine, err := vaultcrypt.New(vault, nil)
//	if err != nil {
//	    panic(err)
//	}
//
//	res, err := engine.Encrypt(ctx, "notes/trip.md", password)
//	switch {
//	case errors.Is(err, vaultcrypt.ErrAlreadyEncrypted):
//	    // nothing to do
//	case err != nil:
//	    log.Println(vaultcrypt.Message(err, vaultcrypt.LangEnglish))
//	}
//
// Callers that want to inspect a transaction before touching the vault use
// PrepareEncrypt or PrepareDecrypt and then Commit or Abort the returned
// *Transaction.
//
// # Document Format
//
// An encrypted document is
//
//	ENCRYPTED:v2:<base64(header || ciphertext)>
//
//	ATTACHMENTS: ![[notes/trip_<hex>]], ...
//
// The header holds the version, the cipher suite, the key derivation
// function, a 16 byte salt and a 12 byte nonce, and is authenticated as
// associated data. The ciphertext is AES-256-GCM (or ChaCha20-Poly1305) of
// the zlib-compressed text
//
//	<!--ENCRYPT_MAP:{...json...}-->
//	original document body
//
// The ATTACHMENTS footer is optional and only informational.
//
// Documents written by older releases carry an OpenSSL "Salted__" payload
// directly after the marker. They are still read, and can still be written
// by selecting TextFormatLegacy.
//
// # Attachment Format
//
// Attachments are stored as salt (16) || iv (16) || AES-256-CBC with PKCS#7
// padding, keyed by PBKDF2-HMAC-SHA256. The iteration count is recorded in
// the mapping entry of each attachment.
//
// # Security Considerations
//
// Protected Against:
//   - Reading documents and attachments at rest without the password
//   - Undetected tampering of v2 documents (authenticated encryption)
//   - Offline brute-force attacks (high PBKDF2 count or Argon2id)
//
// Not Protected Against:
//   - Tampering of attachments and legacy documents (CBC, no MAC)
//   - Metadata leakage (sizes, the number of attachments, the footer)
//   - Compromised systems with keyloggers or malware
package vaultcrypt
