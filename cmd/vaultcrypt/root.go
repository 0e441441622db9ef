package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/absfs/osfs"
	"github.com/absfs/vaultcrypt"
	"github.com/spf13/cobra"
)

// app is the state shared by the commands of one invocation
type app struct {
	flags   flagValues
	verbose bool
	debug   bool

	cfg  *Config
	lang vaultcrypt.Language
	log  *slog.Logger
	root string
}

// reportedError marks an error whose message was already shown to the user
type reportedError struct {
	error
}

func (e *reportedError) Unwrap() error {
	return e.error
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "vaultcrypt",
		Short: "Encrypt notes and the attachments they embed",
		Long: `vaultcrypt encrypts a markdown note of a vault together with every attachment it
embeds, and restores them with the same password. Attachments are renamed to
random names and the note records how to restore them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	a.flags.register(pf)
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose output")
	pf.BoolVarP(&a.debug, "debug", "d", false, "enable debug output")

	cmd.AddCommand(newEncryptCmd(a))
	cmd.AddCommand(newDecryptCmd(a))
	cmd.AddCommand(newStatusCmd(a))
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := LoadConfig(cmd.Flags(), &a.flags)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.lang = vaultcrypt.ParseLanguage(cfg.Language)

	level := slog.LevelWarn
	switch {
	case a.debug:
		level = slog.LevelDebug
	case a.verbose:
		level = slog.LevelInfo
	}
	a.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	a.root, err = filepath.Abs(cfg.Vault)
	if err != nil {
		return fmt.Errorf("vault root: %w", err)
	}
	info, err := os.Stat(a.root)
	if err != nil {
		return fmt.Errorf("vault root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault root %s is not a directory", a.root)
	}
	a.log.Debug("configuration loaded", "vault", a.root, "staging", cfg.StagingDir, "cipher", cfg.Cipher, "kdf", cfg.KDF)
	return nil
}

// newEngine opens the vault on the local disk
func (a *app) newEngine(progress vaultcrypt.ProgressFunc) (*vaultcrypt.Engine, error) {
	fsys, err := osfs.NewFS()
	if err != nil {
		return nil, err
	}

	var opts []vaultcrypt.FSVaultOption
	if a.cfg.Trash != "" {
		opts = append(opts, vaultcrypt.WithTrash(a.cfg.Trash))
	}
	vault, err := vaultcrypt.NewFSVault(fsys, osfs.FromNative(a.root), opts...)
	if err != nil {
		return nil, err
	}

	ec, err := a.cfg.engineConfig()
	if err != nil {
		return nil, err
	}
	if a.cfg.StagingDir != "" {
		staging, err := filepath.Abs(a.cfg.StagingDir)
		if err != nil {
			return nil, fmt.Errorf("staging dir: %w", err)
		}
		ec.StagingFS = fsys
		ec.StagingDir = osfs.FromNative(staging)
	}
	ec.Progress = progress
	ec.Logger = vaultcrypt.NewSlogLogger(a.log)
	return vaultcrypt.New(vault, ec)
}

// docPath maps a command argument onto a vault path. Absolute paths must
// lie inside the vault root.
func (a *app) docPath(arg string) (string, error) {
	if !filepath.IsAbs(arg) {
		return filepath.ToSlash(filepath.Clean(arg)), nil
	}
	rel, err := filepath.Rel(a.root, arg)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", vaultcrypt.NewValidationError("path", arg, "outside the vault "+a.root)
	}
	return filepath.ToSlash(rel), nil
}

// transactionSummary renders a committed result
func (a *app) transactionSummary(res *vaultcrypt.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s\n", uiSuccess.Sprint("✓"), vaultcrypt.SuccessMessage(res, a.lang), uiPath.Sprint(res.DocumentPath))
	for _, e := range res.Attachments {
		fmt.Fprintf(&b, "  %s %s %s %s\n", uiInfo.Sprint("→"), e.SourcePath, uiInfo.Sprint("→"), e.TargetPath)
	}
	for _, s := range res.Skipped {
		fmt.Fprintf(&b, "  %s %s %s\n", uiWarning.Sprint("!"), s.Target, uiMuted.Sprint(s.Reason))
	}
	return b.String()
}

// failureSummary renders a failed transaction, including recovery data of
// a partial commit
func (a *app) failureSummary(op vaultcrypt.Operation, err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", uiError.Sprint("✗"), vaultcrypt.FailureMessage(op, err, a.lang))
	fmt.Fprintf(&b, "%s %v\n", uiError.Sprint("Error:"), err)

	var pce *vaultcrypt.PartialCommitError
	if errors.As(err, &pce) {
		for _, e := range pce.Committed {
			fmt.Fprintf(&b, "  %s committed %s\n", uiSuccess.Sprint("✓"), e.TargetPath)
		}
		for _, e := range pce.Pending {
			fmt.Fprintf(&b, "  %s pending   %s %s\n", uiWarning.Sprint("!"), e.TargetPath, uiMuted.Sprint(e.StagingPath))
		}
		if pce.StagingDir != "" {
			fmt.Fprintf(&b, "%s staged data kept in %s\n", uiInfo.Sprint("→"), uiPath.Sprint(pce.StagingDir))
		}
	}
	return b.String()
}
