package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

type resultTable struct {
	header []string
	rows   [][]string
}

func (r resultTable) Header() []string { return r.header }
func (r resultTable) Rows() [][]string { return r.rows }

var sample = resultTable{
	header: []string{"INDEX", "VALID", "ERRORS"},
	rows: [][]string{
		{"0", "true", "0"},
		{"1", "false", "2"},
	},
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{" csv ", FormatCSV, false},
		{"junit", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTextFormatter(t *testing.T) {
	formatter := &TextFormatter{}

	output, err := formatter.Format("test message")
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if string(output) != "test message\n" {
		t.Errorf("Format() = %q, want %q", string(output), "test message\n")
	}
}

func TestTextFormatter_Table(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := (&TextFormatter{}).FormatTo(buf, sample); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "INDEX  VALID") {
		t.Errorf("header not aligned: %q", lines[0])
	}
	if strings.Index(lines[1], "true") != strings.Index(lines[2], "false") {
		t.Errorf("columns not aligned:\n%s", buf.String())
	}
}

func TestJSONFormatter(t *testing.T) {
	tests := []struct {
		name   string
		data   any
		indent bool
	}{
		{name: "simple string", data: "test"},
		{name: "map with indent", data: map[string]string{"key": "value"}, indent: true},
		{
			name: "struct",
			data: struct {
				Valid  bool `json:"valid"`
				Errors int  `json:"errors"`
			}{Valid: false, Errors: 2},
			indent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := &JSONFormatter{Indent: tt.indent}
			output, err := formatter.Format(tt.data)
			if err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			var decoded any
			if err := json.Unmarshal(output, &decoded); err != nil {
				t.Errorf("Format() produced invalid JSON: %v", err)
			}
			if tt.indent != strings.Contains(string(output), "\n") {
				t.Errorf("indent = %v but output is %q", tt.indent, output)
			}
		})
	}
}

func TestCSVFormatter(t *testing.T) {
	output, err := (&CSVFormatter{}).Format(sample)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	want := "INDEX,VALID,ERRORS\n0,true,0\n1,false,2\n"
	if string(output) != want {
		t.Errorf("Format() = %q, want %q", output, want)
	}

	output, err = (&CSVFormatter{OmitHeader: true}).Format(sample)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if strings.HasPrefix(string(output), "INDEX") {
		t.Errorf("OmitHeader still wrote header: %q", output)
	}
}

func TestCSVFormatter_RejectsNonTable(t *testing.T) {
	if _, err := (&CSVFormatter{}).Format(map[string]int{"a": 1}); err == nil {
		t.Error("Format() of a non-table value should fail")
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format OutputFormat
		want   string
	}{
		{FormatText, "*cli.TextFormatter"},
		{FormatJSON, "*cli.JSONFormatter"},
		{FormatCSV, "*cli.CSVFormatter"},
		{"unknown", "*cli.TextFormatter"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			got := NewFormatter(tt.format)
			if name := typeName(got); name != tt.want {
				t.Errorf("NewFormatter(%q) = %s, want %s", tt.format, name, tt.want)
			}
		})
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *TextFormatter:
		return "*cli.TextFormatter"
	case *JSONFormatter:
		return "*cli.JSONFormatter"
	case *CSVFormatter:
		return "*cli.CSVFormatter"
	}
	return "unknown"
}
