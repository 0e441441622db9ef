package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/absfs/vaultcrypt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliResult struct {
	stdout string
	stderr string
	err    error
}

// runCLI executes the command tree in-process with stdin as input
func runCLI(t *testing.T, stdin string, args ...string) cliResult {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return cliResult{stdout: out.String(), stderr: errOut.String(), err: err}
}

// newVaultDir writes files below a fresh vault directory
func newVaultDir(t *testing.T, files map[string]string) string {
	t.Helper()
	t.Setenv("NO_COLOR", "1")
	root := t.TempDir()
	for p, content := range files {
		native := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(native), 0o755))
		require.NoError(t, os.WriteFile(native, []byte(content), 0o644))
	}
	return root
}

func readFile(t *testing.T, root, p string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(p)))
	require.NoError(t, err)
	return string(data)
}

func TestCLI_EncryptStatusDecrypt(t *testing.T) {
	note := "# Trip\n\nSee ![[img.png]]\n"
	root := newVaultDir(t, map[string]string{
		"notes/trip.md":  note,
		"notes/img.png":  "0123456789",
		"notes/other.md": "plain note",
	})
	staging := t.TempDir()
	common := []string{"--vault", root, "--staging-dir", staging, "--workers", "1"}

	res := runCLI(t, "hunter2\n", append(common, "encrypt", "notes/trip.md", "--password-stdin")...)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "✓ File encrypted (1 attachments) 'notes/trip.md'")
	assert.Contains(t, res.stdout, "notes/img.png")

	sealed := readFile(t, root, "notes/trip.md")
	assert.True(t, strings.HasPrefix(sealed, vaultcrypt.Marker))
	assert.NoFileExists(t, filepath.Join(root, "notes", "img.png"))
	assert.FileExists(t, filepath.Join(root, ".trash", "notes", "img.png"))

	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	assert.Empty(t, entries, "staging directory must be purged after commit")

	res = runCLI(t, "", append(common, "status", "notes/trip.md", filepath.Join(root, "notes", "other.md"))...)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "'notes/trip.md' encrypted (v2)")
	assert.Contains(t, res.stdout, "→ ![[notes/trip_")
	assert.Contains(t, res.stdout, "'notes/other.md' (plain)")

	res = runCLI(t, "hunter2\n", append(common, "decrypt", "notes/trip.md", "--password-stdin")...)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "✓ File decrypted (1 attachments)")
	assert.Equal(t, note, readFile(t, root, "notes/trip.md"))
	assert.Equal(t, "0123456789", readFile(t, root, "notes/img.png"))
}

func TestCLI_WrongPassword(t *testing.T) {
	root := newVaultDir(t, map[string]string{
		"a.md":     "![[b.png]]",
		"b.png":    "image",
		"cfg.json": `{"language": "zh", "trash": ""}`,
	})

	res := runCLI(t, "right\n", "--vault", root, "encrypt", "a.md", "--password-stdin")
	require.NoError(t, res.err, res.stderr)
	sealed := readFile(t, root, "a.md")

	res = runCLI(t, "wrong\n", "--vault", root, "--config", filepath.Join(root, "cfg.json"), "decrypt", "a.md", "--password-stdin")
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, vaultcrypt.ErrWrongPassword)

	var rep *reportedError
	assert.True(t, errors.As(res.err, &rep), "failure must be reported before returning")
	assert.Contains(t, res.stderr, "✗ 解密失败: 密码错误")
	assert.Equal(t, sealed, readFile(t, root, "a.md"), "document must be unchanged")
}

func TestCLI_AlreadyEncrypted(t *testing.T) {
	root := newVaultDir(t, map[string]string{"a.md": vaultcrypt.Marker + "v2:AAAA"})

	res := runCLI(t, "pw\n", "--vault", root, "encrypt", "a.md", "--password-stdin")
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, vaultcrypt.ErrAlreadyEncrypted)
	assert.Contains(t, res.stderr, "Encryption failed: File is already encrypted")
}

func TestCLI_TerminalPassword(t *testing.T) {
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })

	tests := []struct {
		name    string
		answers []string
		wantErr error
	}{
		{"confirmed", []string{"secret", "secret"}, nil},
		{"mismatch", []string{"secret", "secrte"}, errPasswordMismatch},
		{"empty", []string{""}, vaultcrypt.ErrEmptyPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newVaultDir(t, map[string]string{"a.md": "text"})
			answers := tt.answers
			readPassword = func(int) ([]byte, error) {
				require.NotEmpty(t, answers, "unexpected password prompt")
				next := answers[0]
				answers = answers[1:]
				return []byte(next), nil
			}

			res := runCLI(t, "", "--vault", root, "encrypt", "a.md")
			if tt.wantErr != nil {
				require.Error(t, res.err)
				assert.ErrorIs(t, res.err, tt.wantErr)
				assert.Equal(t, "text", readFile(t, root, "a.md"))
				return
			}
			require.NoError(t, res.err, res.stderr)
			assert.Contains(t, res.stderr, "Enter password: ")
			assert.Contains(t, res.stderr, "Confirm password: ")
			assert.True(t, vaultcrypt.IsEncrypted(readFile(t, root, "a.md")))
		})
	}
}

func TestCLI_Errors(t *testing.T) {
	root := newVaultDir(t, map[string]string{"a.md": "text"})

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing vault", []string{"--vault", filepath.Join(root, "absent"), "status", "a.md"}, "vault root"},
		{"vault is a file", []string{"--vault", filepath.Join(root, "a.md"), "status", "a.md"}, "not a directory"},
		{"outside vault", []string{"--vault", root, "status", filepath.Dir(root)}, "outside the vault"},
		{"bad cipher", []string{"--vault", root, "--cipher", "des", "status", "a.md"}, "unknown cipher suite"},
		{"missing note", []string{"--vault", root, "status", "b.md"}, "b.md"},
		{"no args", []string{"--vault", root, "encrypt"}, "accepts 1 arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, "", tt.args...)
			require.Error(t, res.err)
			assert.Contains(t, res.err.Error(), tt.want)
		})
	}
}

func TestApp_DocPath(t *testing.T) {
	a := &app{root: filepath.FromSlash("/vault")}

	p, err := a.docPath("notes/../trip.md")
	require.NoError(t, err)
	assert.Equal(t, "trip.md", p)

	p, err = a.docPath(filepath.FromSlash("/vault/notes/trip.md"))
	require.NoError(t, err)
	assert.Equal(t, "notes/trip.md", p)

	_, err = a.docPath(filepath.FromSlash("/vaulted/trip.md"))
	assert.True(t, vaultcrypt.IsValidationError(err))
}
