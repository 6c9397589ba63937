package schema

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"recordguard-hq/recordguard/pkg/validation"
)

const invoiceYAML = `
entity_type: Invoice
version: 1.2.0
additional_fields: true
fields:
  - name: number
    kind: string
    required: true
    max_length: 16
  - name: amount
    kind: number
    min: 0
  - name: customerEmail
    kind: string
    format: email
    pii: true
business_rules:
  - id: large-invoice-approval
    name: Large invoices need approval
    expression: "amount < 10000 || approved == true"
    severity: high
    priority: 90
  - id: memo-recommended
    expression: "present(memo)"
    mandatory: false
    recommendation: add a memo
    operations: [create]
metadata:
  tags: [billing]
`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(invoiceYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if s.EntityType != "Invoice" || s.Version != "1.2.0" {
		t.Errorf("unexpected identity %s:%s", s.EntityType, s.Version)
	}
	if len(s.Fields) != 3 {
		t.Errorf("expected 3 fields, got %d", len(s.Fields))
	}
	if got := s.PIIFields(); len(got) != 1 || got[0] != "customerEmail" {
		t.Errorf("PIIFields() = %v", got)
	}
	if len(s.BusinessRules) != 2 {
		t.Fatalf("expected 2 business rules, got %d", len(s.BusinessRules))
	}

	approval := s.BusinessRules[0]
	if approval.Severity != validation.SeverityHigh || approval.Priority != 90 || !approval.Mandatory {
		t.Errorf("unexpected approval rule %+v", approval)
	}
	memo := s.BusinessRules[1]
	if memo.Mandatory || memo.Name != "memo-recommended" || len(memo.Operations) != 1 {
		t.Errorf("unexpected memo rule %+v", memo)
	}

	result := Check(s, validation.Record{"number": "INV-1", "amount": 5}, validation.OperationCreate)
	if !result.Valid() {
		t.Errorf("expected valid record, got %+v", result.Errors)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed", "entity_type: [unclosed"},
		{"missing version", "entity_type: X"},
		{"bad expression", "entity_type: X\nversion: '1'\nbusiness_rules:\n  - id: r\n    expression: 'a >'"},
		{"bad operation", "entity_type: X\nversion: '1'\nbusiness_rules:\n  - id: r\n    expression: 'true'\n    operations: [explode]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); !errors.Is(err, ErrInvalidSchema) {
				t.Errorf("expected ErrInvalidSchema, got %v", err)
			}
		})
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "invoice.yaml"), invoiceYAML)
	writeFile(t, filepath.Join(dir, "broken.yml"), "entity_type: [")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	writeFile(t, filepath.Join(dir, ".hidden.yaml"), "ignored")

	schemas, err := LoadDir(dir)
	if err == nil {
		t.Error("expected error for broken file")
	}
	var loadErr *LoadError
	if !errors.As(err, &loadErr) || filepath.Base(loadErr.Path) != "broken.yml" {
		t.Errorf("expected LoadError for broken.yml, got %v", err)
	}
	if len(schemas) != 1 || schemas[0].EntityType != "Invoice" {
		t.Errorf("expected Invoice schema to load, got %v", schemas)
	}
}

func TestRegistry_LoadsConfiguredDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "invoice.yaml"), invoiceYAML)

	reg, err := NewRegistry(&RegistryConfig{SeedCore: true, Dir: dir}, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if !reg.Has("Invoice", "1.2.0") || !reg.Has("Account", "") {
		t.Error("expected both directory and core schemas")
	}
}

type countingReloader struct {
	calls atomic.Int32
}

func (c *countingReloader) Reload() error {
	c.calls.Add(1)
	return nil
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	target := &countingReloader{}

	w, err := NewWatcher(&WatcherConfig{Dir: dir, Debounce: 20 * time.Millisecond}, target, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)
	writeFile(t, filepath.Join(dir, "invoice.yaml"), invoiceYAML)
	writeFile(t, filepath.Join(dir, "ignored.txt"), "x")

	deadline := time.Now().Add(2 * time.Second)
	for target.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if target.calls.Load() == 0 {
		t.Error("expected reload after schema file change")
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}
