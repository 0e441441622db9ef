// Command vaultcrypt encrypts and decrypts notes of a vault on the local disk
// together with the attachments they embed.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		var rep *reportedError
		if !errors.As(err, &rep) {
			fmt.Fprintf(os.Stderr, "%s %v\n", uiError.Sprint("Error:"), err)
		}
		os.Exit(1)
	}
}
