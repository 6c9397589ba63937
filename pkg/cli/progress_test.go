package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func fixedProgress(buf *bytes.Buffer) *RecordProgress {
	p := NewBatchProgress(buf)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	p.now = func() time.Time {
		calls++
		return start.Add(time.Duration(calls-1) * time.Second)
	}
	return p
}

func TestRecordProgress(t *testing.T) {
	buf := &bytes.Buffer{}
	p := fixedProgress(buf)

	p.Start(4)
	p.Advance(2, 0)
	p.Advance(1, 1)
	p.Finish()

	lines := strings.Split(buf.String(), "\r")
	last := strings.TrimSpace(lines[len(lines)-1])

	for _, want := range []string{"Progress:", "4/4 records", "3 valid", "1 invalid", "records/s"} {
		if !strings.Contains(last, want) {
			t.Errorf("final line %q missing %q", last, want)
		}
	}
	if !strings.Contains(last, "▒") {
		t.Errorf("expected invalid records in the bar, got %q", last)
	}
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Error("expected Finish to end the line")
	}
}

func TestRecordProgress_ZeroTotal(t *testing.T) {
	buf := &bytes.Buffer{}
	p := fixedProgress(buf)

	p.Start(0)
	p.Advance(0, 0)
	p.Finish()

	if buf.Len() != 0 {
		t.Errorf("zero total should render nothing, got %q", buf.String())
	}
}

func TestRecordProgress_Abort(t *testing.T) {
	buf := &bytes.Buffer{}
	p := fixedProgress(buf)

	p.Start(10)
	p.Advance(3, 0)
	p.Abort(errors.New("operation canceled"))

	if !strings.Contains(buf.String(), "Stopped after 3 of 10 records: operation canceled") {
		t.Errorf("expected abort summary, got %q", buf.String())
	}
}
