package main

import (
	"fmt"

	"github.com/absfs/vaultcrypt"
	"github.com/spf13/cobra"
)

func newEncryptCmd(a *app) *cobra.Command {
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "encrypt <note>",
		Short: "Encrypts a note and every attachment it embeds",
		Long: `Encrypts the note and the attachments it links. Attachments are written under
random names next to the originals, the originals are moved to the trash
directory, and the note is replaced by its encrypted form.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := passwordSource{fromStdin: passwordStdin, in: cmd.InOrStdin(), prompt: cmd.ErrOrStderr()}
			return a.runTransaction(cmd, vaultcrypt.OpEncrypt, args[0], src.readConfirmed)
		},
	}
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from the first line of stdin")
	return cmd
}

// runTransaction runs one encrypt or decrypt command against the vault
func (a *app) runTransaction(cmd *cobra.Command, op vaultcrypt.Operation, arg string, password func() (string, error)) error {
	docPath, err := a.docPath(arg)
	if err != nil {
		return err
	}
	pw, err := password()
	if err != nil {
		cmd.PrintErr(a.failureSummary(op, err))
		return &reportedError{err}
	}

	label := "Encrypting " + docPath
	if op == vaultcrypt.OpDecrypt {
		label = "Decrypting " + docPath
	}
	progress := startProgress(cmd.ErrOrStderr(), label, a.log, a.verbose || a.debug)

	engine, err := a.newEngine(progress.update)
	if err != nil {
		progress.stop("")
		return err
	}
	a.log.Info("starting transaction", "op", op, "document", docPath)

	var res *vaultcrypt.Result
	if op == vaultcrypt.OpDecrypt {
		res, err = engine.Decrypt(cmd.Context(), docPath, pw)
	} else {
		res, err = engine.Encrypt(cmd.Context(), docPath, pw)
	}
	progress.stop("")
	if err != nil {
		cmd.PrintErr(a.failureSummary(op, err))
		return &reportedError{err}
	}

	fmt.Fprint(cmd.OutOrStdout(), a.transactionSummary(res))
	return nil
}
