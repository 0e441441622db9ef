package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/absfs/vaultcrypt"
	"github.com/spf13/pflag"
)

// Config holds the settings of one CLI invocation.
//
// Values come from LoadDefaults, then the JSON file named by --config, then
// command-line flags. Later sources take precedence over earlier ones.
type Config struct {
	Vault            string
	StagingDir       string
	Trash            string
	Language         string
	Cipher           string
	KDF              string
	LegacyFormat     bool
	AttachmentFooter bool
	Workers          int
}

// LoadDefaults populates c with the built-in defaults.
func (c *Config) LoadDefaults() {
	c.Vault = "."
	c.StagingDir = filepath.Join(os.TempDir(), "vaultcrypt")
	c.Trash = ".trash"
	c.Language = string(vaultcrypt.LangEnglish)
	c.Cipher = vaultcrypt.CipherAES256GCM.String()
	c.KDF = vaultcrypt.KDFPBKDF2SHA256.String()
	c.LegacyFormat = false
	c.AttachmentFooter = true
	c.Workers = vaultcrypt.DefaultParallelConfig().MaxWorkers
}

// JsonConfig is the DTO for the --config file. Pointer fields distinguish
// absent keys from zero values so a partial file only overrides what it names.
type JsonConfig struct {
	Vault            *string `json:"vault"`
	StagingDir       *string `json:"staging_dir"`
	Trash            *string `json:"trash"`
	Language         *string `json:"language"`
	Cipher           *string `json:"cipher"`
	KDF              *string `json:"kdf"`
	LegacyFormat     *bool   `json:"legacy_format"`
	AttachmentFooter *bool   `json:"attachment_footer"`
	Workers          *int    `json:"workers"`
}

// loadJSON overlays c with the values present in the file at path. An empty
// path loads nothing.
func (c *Config) loadJSON(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setIf(&c.Vault, jc.Vault)
	setIf(&c.StagingDir, jc.StagingDir)
	setIf(&c.Trash, jc.Trash)
	setIf(&c.Language, jc.Language)
	setIf(&c.Cipher, jc.Cipher)
	setIf(&c.KDF, jc.KDF)
	setIf(&c.LegacyFormat, jc.LegacyFormat)
	setIf(&c.AttachmentFooter, jc.AttachmentFooter)
	setIf(&c.Workers, jc.Workers)
	return nil
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// flagValues receives the raw flag values before they are merged.
type flagValues struct {
	configPath string
	Config
}

func (f *flagValues) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.configPath, "config", "c", "", "path to a JSON config file")
	fs.StringVar(&f.Vault, "vault", "", "vault root directory (default \".\")")
	fs.StringVar(&f.StagingDir, "staging-dir", "", "directory for staged attachment data")
	fs.StringVar(&f.Trash, "trash", "", "vault directory receiving removed files; empty deletes them")
	fs.StringVar(&f.Language, "lang", "", "message language (en, zh)")
	fs.StringVar(&f.Cipher, "cipher", "", "text cipher (aes-256-gcm, chacha20-poly1305)")
	fs.StringVar(&f.KDF, "kdf", "", "text key derivation (pbkdf2-sha256, argon2id)")
	fs.BoolVar(&f.LegacyFormat, "legacy-format", false, "write documents in the legacy envelope")
	fs.BoolVar(&f.AttachmentFooter, "attachment-footer", false, "append the ATTACHMENTS footer to encrypted documents")
	fs.IntVar(&f.Workers, "workers", 0, "attachment staging workers; 1 disables parallel staging")
}

// applyFlags copies the flags the user actually set onto c
func (c *Config) applyFlags(fs *pflag.FlagSet, f *flagValues) {
	changed := func(name string) bool {
		fl := fs.Lookup(name)
		return fl != nil && fl.Changed
	}
	if changed("vault") {
		c.Vault = f.Vault
	}
	if changed("staging-dir") {
		c.StagingDir = f.StagingDir
	}
	if changed("trash") {
		c.Trash = f.Trash
	}
	if changed("lang") {
		c.Language = f.Language
	}
	if changed("cipher") {
		c.Cipher = f.Cipher
	}
	if changed("kdf") {
		c.KDF = f.KDF
	}
	if changed("legacy-format") {
		c.LegacyFormat = f.LegacyFormat
	}
	if changed("attachment-footer") {
		c.AttachmentFooter = f.AttachmentFooter
	}
	if changed("workers") {
		c.Workers = f.Workers
	}
}

// LoadConfig builds the Config for one invocation from defaults, the JSON
// file and the parsed flags.
func LoadConfig(fs *pflag.FlagSet, f *flagValues) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := cfg.loadJSON(f.configPath); err != nil {
		return nil, err
	}
	cfg.applyFlags(fs, f)
	return cfg, nil
}

// engineConfig translates c into the library configuration. The staging
// filesystem is left for the caller to set.
func (c *Config) engineConfig() (*vaultcrypt.Config, error) {
	cipher, err := vaultcrypt.ParseCipherSuite(c.Cipher)
	if err != nil {
		return nil, err
	}
	kdf, err := vaultcrypt.ParseKeyDerivation(c.KDF)
	if err != nil {
		return nil, err
	}
	if c.Workers < 1 {
		return nil, vaultcrypt.NewValidationError("workers", c.Workers, "must be at least 1")
	}

	ec := vaultcrypt.DefaultConfig()
	ec.Cipher = cipher
	ec.KeyDerivation = kdf
	if c.LegacyFormat {
		ec.TextFormat = vaultcrypt.TextFormatLegacy
	}
	ec.OmitAttachmentFooter = !c.AttachmentFooter
	ec.Parallel.MaxWorkers = c.Workers
	ec.Parallel.Enabled = c.Workers > 1
	return ec, nil
}
