package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/briandowns/spinner"
)

// progressDisplay shows engine progress as a spinner, or as log records
// when verbose output would interleave with the spinner line.
type progressDisplay struct {
	s       *spinner.Spinner
	w       io.Writer
	label   string
	log     *slog.Logger
	spinner bool
}

func startProgress(w io.Writer, label string, log *slog.Logger, verbose bool) *progressDisplay {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + label
	if err := s.Color("cyan"); err != nil {
		log.Warn("failed to set spinner color", "err", err)
	}

	p := &progressDisplay{s: s, w: w, label: label, log: log, spinner: !verbose}
	if p.spinner {
		s.Start()
	}
	return p
}

// update receives engine progress
func (p *progressDisplay) update(percent int, phase string) {
	if !p.spinner {
		p.log.Info("progress", "percent", percent, "phase", phase)
		return
	}
	p.s.Lock()
	p.s.Suffix = fmt.Sprintf(" %s %3d%% %s", p.label, percent, phase)
	p.s.Unlock()
}

// stop clears the spinner line and prints final
func (p *progressDisplay) stop(final string) {
	if p.spinner {
		p.s.Stop()
	}
	if final != "" {
		fmt.Fprint(p.w, ensureNewline(final))
	}
}
