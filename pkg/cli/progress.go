package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const progressBarWidth = 30

// BatchProgress tracks records validated by a batch run.
type BatchProgress interface {
	// Start resets the counters for a run over total records.
	Start(total int)
	// Advance adds the outcome of one finished batch.
	Advance(valid, invalid int)
	// Finish prints the final line.
	Finish()
	// Abort ends the run early with err.
	Abort(err error)
}

// RecordProgress renders a single updating line with the valid and invalid
// counts seen so far.
type RecordProgress struct {
	mu      sync.Mutex
	w       io.Writer
	now     func() time.Time
	started time.Time

	total   int
	valid   int
	invalid int
}

// NewBatchProgress returns a BatchProgress writing to w, or os.Stderr when
// w is nil.
func NewBatchProgress(w io.Writer) *RecordProgress {
	if w == nil {
		w = os.Stderr
	}
	return &RecordProgress{w: w, now: time.Now}
}

func (p *RecordProgress) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total, p.valid, p.invalid = total, 0, 0
	p.started = p.now()
	p.render()
}

func (p *RecordProgress) Advance(valid, invalid int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.valid += valid
	p.invalid += invalid
	p.render()
}

func (p *RecordProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.total > 0 {
		fmt.Fprintln(p.w)
	}
}

func (p *RecordProgress) Abort(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	done := p.valid + p.invalid
	fmt.Fprintf(p.w, "\n✗ Stopped after %d of %d records: %v\n", done, p.total, err)
}

// render is called with mu held. Invalid records fill the bar with a
// distinct glyph so rejections show at a glance.
func (p *RecordProgress) render() {
	if p.total <= 0 {
		return
	}
	done := p.valid + p.invalid

	okCells := p.valid * progressBarWidth / p.total
	badCells := min(p.invalid*progressBarWidth/p.total, progressBarWidth-okCells)
	bar := strings.Repeat("█", okCells) +
		strings.Repeat("▒", badCells) +
		strings.Repeat("░", progressBarWidth-okCells-badCells)

	var rate float64
	if secs := p.now().Sub(p.started).Seconds(); secs > 0 {
		rate = float64(done) / secs
	}

	fmt.Fprintf(p.w, "\rProgress: [%s] %d/%d records, %d valid, %d invalid, %.1f records/s",
		bar, done, p.total, p.valid, p.invalid, rate)
}
