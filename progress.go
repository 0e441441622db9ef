package vaultcrypt

import (
	"fmt"
	"sync"
	"time"
)

// Operation is the direction of a transaction
type Operation uint8

const (
	OpEncrypt Operation = iota
	OpDecrypt
)

// String returns the string representation of the operation
func (o Operation) String() string {
	if o == OpDecrypt {
		return "decrypt"
	}
	return "encrypt"
}

// Phase is the state of a transaction. Encryption runs the phases in
// declaration order; decryption opens the document first (SealingDocument),
// then extracts the mapping (RewritingDocument) before scanning and staging.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseScanningLinks
	PhaseStagingAttachments
	PhaseRewritingDocument
	PhaseSealingDocument
	PhaseCommitting
	PhaseDone
	PhaseAborted
)

// String returns the string representation of the phase
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScanningLinks:
		return "scanning-links"
	case PhaseStagingAttachments:
		return "staging-attachments"
	case PhaseRewritingDocument:
		return "rewriting-document"
	case PhaseSealingDocument:
		return "sealing-document"
	case PhaseCommitting:
		return "committing"
	case PhaseDone:
		return "done"
	case PhaseAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// ProgressFunc receives a percentage in [0, 100] and a short label.
// Percentages never decrease within a transaction. Calls arrive in order on
// a goroutine owned by the transaction.
type ProgressFunc func(percent int, label string)

// progress percentages of the phase boundaries
const (
	progressStart        = 5
	progressStagingFrom  = 10
	progressStagingTo    = 80
	progressRewriting    = 85
	progressSealing      = 90
	progressCommitting   = 95
	progressCommittingTo = 99
	progressDone         = 100
)

// progressDrainTimeout bounds how long closing a tracker waits for the
// sink to receive queued updates
var progressDrainTimeout = 2 * time.Second

type progressEvent struct {
	percent int
	label   string
}

// progressTracker hands updates to the sink on its own goroutine, so the
// transaction never waits on a slow sink
type progressTracker struct {
	fn     ProgressFunc
	mu     sync.Mutex
	last   int
	queue  []progressEvent
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newProgressTracker(fn ProgressFunc) *progressTracker {
	p := &progressTracker{fn: fn, last: -1}
	if fn != nil {
		p.wake = make(chan struct{}, 1)
		p.done = make(chan struct{})
		go p.run()
	}
	return p
}

// report queues percent for the sink, clamped so it never goes backwards
func (p *progressTracker) report(percent int, label string) {
	if p == nil || p.fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	percent = max(min(percent, progressDone), p.last, 0)
	p.last = percent
	p.queue = append(p.queue, progressEvent{percent: percent, label: label})
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// run delivers queued updates in order until the tracker is closed and
// its queue is empty
func (p *progressTracker) run() {
	defer close(p.done)
	for range p.wake {
		for {
			p.mu.Lock()
			batch := p.queue
			p.queue = nil
			p.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, ev := range batch {
				p.deliver(ev)
			}
		}
	}
}

// deliver calls the sink. A panicking sink is ignored.
func (p *progressTracker) deliver(ev progressEvent) {
	defer func() { _ = recover() }()
	p.fn(ev.percent, ev.label)
}

// close stops accepting updates and waits, up to progressDrainTimeout, for
// the queued ones to reach the sink. It reports whether they all did.
func (p *progressTracker) close() bool {
	if p == nil || p.done == nil {
		return true
	}
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.wake)
	}
	p.mu.Unlock()

	timer := time.NewTimer(progressDrainTimeout)
	defer timer.Stop()
	select {
	case <-p.done:
		return true
	case <-timer.C:
		return false
	}
}

// span reports step done out of total inside [from, to]
func (p *progressTracker) span(from, to, done, total int, label string) {
	if total <= 0 {
		p.report(to, label)
		return
	}
	p.report(from+(to-from)*done/total, fmt.Sprintf("%s (%d/%d)", label, done, total))
}
