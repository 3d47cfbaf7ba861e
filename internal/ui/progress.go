package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// redrawEvery throttles bar repaints so fast counters don't flood the
// terminal.
const redrawEvery = 80 * time.Millisecond

// Bar is a single-line progress bar, rewritten in place with carriage
// returns. On non-terminal writers it stays silent. Safe for concurrent
// updates.
type Bar struct {
	mu       sync.Mutex
	w        io.Writer
	label    string
	total    int
	done     int
	width    int
	lastDraw time.Time
	enabled  bool
	finished bool
}

// NewBar creates a bar for total steps, labeled with a short message.
func NewBar(w io.Writer, total int, label string) *Bar {
	b := &Bar{
		w:     w,
		label: label,
		total: total,
		width: 80,
	}
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		b.enabled = true
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 0 {
			b.width = cols
		}
	}
	return b
}

// SetTotal updates the step count. Useful when the total is only known
// after work has started (a directory scan, say).
func (b *Bar) SetTotal(total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if total > b.total {
		b.total = total
	}
}

// Set moves the bar to done steps. Out-of-order updates from concurrent
// workers are fine; the bar only ever advances.
func (b *Bar) Set(done int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if done <= b.done {
		return
	}
	b.done = done
	if !b.enabled || b.finished {
		return
	}
	if done < b.total && time.Since(b.lastDraw) < redrawEvery {
		return
	}
	b.draw()
}

// Finish paints the completed bar and moves to the next line. It is safe to
// call more than once. A bar that never advanced (zero total, zero done)
// leaves the terminal untouched.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.enabled || b.finished {
		b.finished = true
		return
	}
	b.finished = true
	if b.total == 0 && b.done == 0 {
		return
	}
	b.done = b.total
	b.draw()
	fmt.Fprintln(b.w)
}

func (b *Bar) draw() {
	b.lastDraw = time.Now()

	counts := fmt.Sprintf("%d/%d", b.done, b.total)
	// label [████░░░░] done/total
	barWidth := b.width - len(b.label) - len(counts) - 4
	if barWidth > 30 {
		barWidth = 30
	}
	if barWidth < 4 {
		fmt.Fprintf(b.w, "\r%s %s", b.label, counts)
		return
	}

	filled := 0
	if b.total > 0 {
		filled = barWidth * b.done / b.total
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	fmt.Fprintf(b.w, "\r%s [%s] %s", b.label, bar, counts)
}
