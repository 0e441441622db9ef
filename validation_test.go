package vaultcrypt

import (
	"errors"
	"strings"
	"testing"

	"github.com/absfs/memfs"
)

// TestConfig_Validate tests the Config validation
func TestConfig_Validate(t *testing.T) {
	staging, err := memfs.NewFS()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		config  *Config
		wantErr error
		errMsg  string
	}{
		{
			name:    "nil config",
			config:  nil,
			wantErr: ErrNilConfig,
		},
		{
			name:   "zero config",
			config: &Config{},
		},
		{
			name:   "default config",
			config: DefaultConfig(),
		},
		{
			name:    "unsupported cipher",
			config:  &Config{Cipher: CipherSuite(99)},
			wantErr: ErrUnsupportedCipher,
		},
		{
			name:    "unsupported kdf",
			config:  &Config{KeyDerivation: KeyDerivation(99)},
			wantErr: ErrUnsupportedKDF,
		},
		{
			name:   "unsupported text format",
			config: &Config{TextFormat: TextFormat(99)},
			errMsg: "unsupported text format",
		},
		{
			name:   "relative staging dir",
			config: &Config{StagingFS: staging, StagingDir: "tmp"},
			errMsg: "must be an absolute path",
		},
		{
			name:   "relative staging dir on disk",
			config: &Config{StagingDir: "tmp/vaultcrypt"},
			errMsg: "must be an absolute path",
		},
		{
			name:   "absolute staging dir",
			config: &Config{StagingFS: staging, StagingDir: "/tmp"},
		},
		{
			name:   "invalid parallel config",
			config: &Config{Parallel: ParallelConfig{Enabled: true, MaxWorkers: -1, MinJobsForParallel: 1}},
			errMsg: "invalid parallel config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Config.Validate() error = %v, want %v", err, tt.wantErr)
				}
			case tt.errMsg != "":
				if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("Config.Validate() error = %v, want message containing %q", err, tt.errMsg)
				}
			case err != nil:
				t.Errorf("Config.Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestParseCipherSuite(t *testing.T) {
	for _, c := range []CipherSuite{CipherAuto, CipherAES256GCM, CipherChaCha20Poly1305} {
		got, err := ParseCipherSuite(c.String())
		if err != nil || got != c {
			t.Errorf("ParseCipherSuite(%q) = %v, %v", c.String(), got, err)
		}
	}
	if _, err := ParseCipherSuite("des"); !IsValidationError(err) {
		t.Errorf("unknown cipher error = %v", err)
	}
	if CipherAuto.resolve() != CipherAES256GCM {
		t.Error("auto does not resolve to AES-256-GCM")
	}
}

func TestParseKeyDerivation(t *testing.T) {
	for _, k := range []KeyDerivation{KDFPBKDF2SHA256, KDFArgon2id} {
		got, err := ParseKeyDerivation(k.String())
		if err != nil || got != k {
			t.Errorf("ParseKeyDerivation(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseKeyDerivation("scrypt"); !IsValidationError(err) {
		t.Errorf("unknown kdf error = %v", err)
	}
}

func TestValidateBuffer(t *testing.T) {
	tests := []struct {
		name    string
		buf     []byte
		minSize int
		wantErr bool
	}{
		{"nil buffer", nil, 0, true},
		{"empty buffer no minimum", []byte{}, 0, false},
		{"too small", make([]byte, 10), 32, true},
		{"exact size", make([]byte, 32), 32, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBuffer(tt.buf, "data", tt.minSize)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBuffer() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsValidationError(err) {
				t.Errorf("ValidateBuffer() should return ValidationError, got %T", err)
			}
		})
	}
}

func TestValidateVaultPath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"empty path", "", true},
		{"root", "/", true},
		{"dot", ".", true},
		{"relative path", "notes/trip.md", false},
		{"leading slash", "/notes/trip.md", false},
		{"inner dot dot", "notes/../trip.md", false},
		{"escaping", "../trip.md", true},
		{"escaping after clean", "notes/../../trip.md", true},
		{"backslash", `notes\trip.md`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVaultPath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateVaultPath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if err != nil && !IsValidationError(err) {
				t.Errorf("ValidateVaultPath() should return ValidationError, got %T", err)
			}
		})
	}
}

func TestCleanVaultPath(t *testing.T) {
	for in, want := range map[string]string{
		"":                "",
		"/":               "",
		"/notes/trip.md":  "notes/trip.md",
		"notes//a/../b":   "notes/b",
		"./img.png":       "img.png",
		"notes/trip.md/.": "notes/trip.md",
	} {
		if got := CleanVaultPath(in); got != want {
			t.Errorf("CleanVaultPath(%q) = %q, want %q", in, got, want)
		}
	}

	if vaultDir("trip.md") != "" || vaultDir("/notes/trip.md") != "notes" {
		t.Error("unexpected vaultDir results")
	}
}
