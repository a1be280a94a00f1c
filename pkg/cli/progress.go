package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const barWidth = 24

// Tally tracks a bulk operation over a known number of records and redraws a
// single status line on every step. Failures are collected rather than
// aborting, so one bad record does not hide the outcome of the rest.
type Tally struct {
	mu       sync.Mutex
	out      io.Writer
	verb     string
	total    int
	ok       int
	failures []error
	began    time.Time
}

// NewTally returns a Tally for total records. verb describes a successful
// step ("deleted"). A nil writer means stderr.
func NewTally(w io.Writer, verb string, total int) *Tally {
	if w == nil {
		w = os.Stderr
	}
	if verb == "" {
		verb = "done"
	}
	return &Tally{out: w, verb: verb, total: total, began: time.Now()}
}

// Succeed counts one record as done.
func (t *Tally) Succeed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ok++
	t.draw()
}

// Fail counts one record as failed and keeps err for the summary.
func (t *Tally) Fail(label string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures = append(t.failures, fmt.Errorf("%s: %w", label, err))
	t.draw()
}

// Close ends the status line, prints one line per failure and returns the
// failures joined, or nil if every record succeeded.
func (t *Tally) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.total > 0 {
		fmt.Fprintln(t.out)
	}
	for _, err := range t.failures {
		fmt.Fprintf(t.out, "  failed %v\n", err)
	}
	return errors.Join(t.failures...)
}

func (t *Tally) draw() {
	if t.total <= 0 {
		return
	}
	seen := t.ok + len(t.failures)
	filled := barWidth * seen / t.total
	if filled > barWidth {
		filled = barWidth
	}
	fmt.Fprintf(t.out, "\r[%s%s] %d/%d %s, %d failed (%s)",
		strings.Repeat("=", filled), strings.Repeat(" ", barWidth-filled),
		t.ok, t.total, t.verb, len(t.failures), time.Since(t.began).Round(time.Millisecond))
}
