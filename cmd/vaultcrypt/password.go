package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/absfs/vaultcrypt"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword
var readPassword = term.ReadPassword

var errPasswordMismatch = errors.New("passwords do not match")

// passwordSource obtains the password of one command, either from the
// terminal without echo or from the first line of stdin.
type passwordSource struct {
	fromStdin bool
	in        io.Reader
	prompt    io.Writer
}

func (p passwordSource) read(label string) (string, error) {
	if p.fromStdin {
		line, err := bufio.NewReader(p.in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read password: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return "", vaultcrypt.ErrEmptyPassword
		}
		return line, nil
	}

	fmt.Fprint(p.prompt, label+": ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(p.prompt)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if len(pw) == 0 {
		return "", vaultcrypt.ErrEmptyPassword
	}
	return string(pw), nil
}

// readConfirmed reads a new password twice from the terminal. Passwords
// piped on stdin are taken as given.
func (p passwordSource) readConfirmed() (string, error) {
	pw, err := p.read("Enter password")
	if err != nil || p.fromStdin {
		return pw, err
	}
	again, err := p.read("Confirm password")
	if err != nil {
		return "", err
	}
	if pw != again {
		return "", errPasswordMismatch
	}
	return pw, nil
}
