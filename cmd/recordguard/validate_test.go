package main

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordguard-hq/recordguard/pkg/cli"
)

var accountFlags = []string{"-t", "Account", "-u", "u1", "--roles", "agent", "--permissions", "*", "--session", "s1"}

func TestValidate_JSONOutput(t *testing.T) {
	args := append([]string{"validate", "-f", "testdata/accounts.json", "-o", "json"}, accountFlags...)
	out, _, err := execute(t, nil, args...)

	var invalid *cli.InvalidRecordsError
	require.True(t, errors.As(err, &invalid), "want InvalidRecordsError, got %v", err)
	assert.Equal(t, 1, invalid.Invalid)
	assert.Equal(t, cli.ExitInvalid, cli.ExitCode(err))

	var report validationReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Valid)
	require.Len(t, report.Results, 2)
	assert.True(t, report.Results[0].Valid)
	assert.False(t, report.Results[1].Valid)
	assert.NotEmpty(t, report.Results[1].Result.Errors)
}

func TestValidate_NDJSONFromStdin(t *testing.T) {
	stdin := strings.NewReader(`{"accountName": "Acme Corporation", "accountType": 1}
{"accountName": "Globex", "accountType": 2}
`)
	args := append([]string{"validate", "-o", "csv"}, accountFlags...)
	out, _, err := execute(t, stdin, args...)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "INDEX,VALID,ERRORS,WARNINGS,FIRST ISSUE", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "0,true,0,"))
	assert.True(t, strings.HasPrefix(lines[2], "1,true,0,"))
}

func TestValidate_TextSummaryOnStderr(t *testing.T) {
	args := append([]string{"validate", "-f", "testdata/accounts.ndjson", "--progress"}, accountFlags...)
	out, stderr, err := execute(t, nil, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "INDEX")
	assert.Contains(t, stderr, "2 records: 2 valid, 0 invalid")
	assert.Contains(t, stderr, "Progress:")
}

func TestValidate_ContextFile(t *testing.T) {
	out, _, err := execute(t, nil, "validate", "-f", "testdata/accounts.yaml",
		"--context-file", "testdata/context.yaml", "-o", "json")
	require.NoError(t, err)

	var report validationReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Valid)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing entity type", []string{"validate", "-f", "testdata/accounts.json"}, "entity type is required"},
		{"bad output", append([]string{"validate", "-o", "xml", "-f", "testdata/accounts.json"}, accountFlags...), "unsupported output format"},
		{"missing file", append([]string{"validate", "-f", "testdata/nope.json"}, accountFlags...), "no such file"},
		{"empty stdin", append([]string{"validate"}, accountFlags...), "no records"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, nil, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
