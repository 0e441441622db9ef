package main

import (
	"github.com/absfs/vaultcrypt"
	"github.com/spf13/cobra"
)

func newDecryptCmd(a *app) *cobra.Command {
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "decrypt <note>",
		Short: "Decrypts a note and restores its attachments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := passwordSource{fromStdin: passwordStdin, in: cmd.InOrStdin(), prompt: cmd.ErrOrStderr()}
			return a.runTransaction(cmd, vaultcrypt.OpDecrypt, args[0], func() (string, error) {
				return src.read("Enter password")
			})
		},
	}
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from the first line of stdin")
	return cmd
}
