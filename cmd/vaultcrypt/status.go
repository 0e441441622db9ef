package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <note>...",
		Short: "Shows whether notes are encrypted and which attachments they list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.newEngine(nil)
			if err != nil {
				return err
			}

			var b strings.Builder
			for _, arg := range args {
				docPath, err := a.docPath(arg)
				if err != nil {
					return err
				}
				info, err := engine.Inspect(cmd.Context(), docPath)
				if err != nil {
					return err
				}

				if !info.Encrypted {
					fmt.Fprintf(&b, "%s %s\n", uiPath.Sprint(info.Path), uiMuted.Sprint("plain"))
					continue
				}
				fmt.Fprintf(&b, "%s %s %s\n", uiPath.Sprint(info.Path), uiSuccess.Sprint("encrypted"), uiMuted.Sprint(info.Format))
				for _, token := range info.Attachments {
					fmt.Fprintf(&b, "  %s %s\n", uiInfo.Sprint("→"), token)
				}
			}
			fmt.Fprint(cmd.OutOrStdout(), b.String())
			return nil
		},
	}
}
