package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordguard-hq/recordguard/pkg/validation"
)

func TestDecodeJSONRecords(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{name: "object", input: `{"a": 1}`, want: 1},
		{name: "array", input: `[{"a": 1}, {"a": 2}]`, want: 2},
		{name: "ndjson", input: "{\"a\": 1}\n{\"a\": 2}\n{\"a\": 3}\n", want: 3},
		{name: "empty", input: "  \n", wantErr: true},
		{name: "broken line", input: "{\"a\": 1}\n{\"a\": \n", wantErr: true},
		{name: "array of scalars", input: `[1, 2]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeJSONRecords([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestReadRecords_Stdin(t *testing.T) {
	records, err := readRecords("-", strings.NewReader(`[{"accountName": "Acme"}]`))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Acme", records[0]["accountName"])
}

func TestReadRecords_YAML(t *testing.T) {
	records, err := readRecords("testdata/accounts.yaml", nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Acme Corporation", records[0]["accountName"])
}

func TestContextFlags_Build(t *testing.T) {
	f := contextFlags{
		file:         "testdata/context.yaml",
		entityType:   "Contact",
		userID:       "u2",
		ipAddress:    "10.0.0.1",
		jurisdiction: "EU",
		consent:      "GIVEN",
		purposes:     []string{"marketing"},
	}
	vctx, err := f.build()
	require.NoError(t, err)

	assert.Equal(t, "Contact", vctx.EntityType, "flags override the context file")
	assert.Equal(t, validation.OperationCreate, vctx.Operation)
	assert.Equal(t, "u2", vctx.UserID)
	require.NotNil(t, vctx.Security)
	assert.Equal(t, []string{"agent"}, vctx.Security.Roles, "file values survive")
	assert.Equal(t, "10.0.0.1", vctx.Security.IPAddress)
	require.NotNil(t, vctx.Compliance)
	assert.Equal(t, validation.ConsentGiven, vctx.Compliance.ConsentStatus)
	assert.Equal(t, []string{"marketing"}, vctx.Compliance.ProcessingPurposes)
}

func TestContextFlags_FileUserFillsSecurity(t *testing.T) {
	vctx, err := (&contextFlags{file: "testdata/context.yaml"}).build()
	require.NoError(t, err)
	require.NotNil(t, vctx.Security)
	assert.Equal(t, "u1", vctx.Security.UserID, "the context user acts when the security block names none")
	assert.Equal(t, "s1", vctx.Security.SessionID)
}

func TestContextFlags_DefaultsAndSecurity(t *testing.T) {
	vctx, err := (&contextFlags{entityType: "Account", userID: "u1"}).build()
	require.NoError(t, err)
	assert.Equal(t, validation.OperationCreate, vctx.Operation)
	require.NotNil(t, vctx.Security)
	assert.Equal(t, "u1", vctx.Security.UserID)
	assert.Nil(t, vctx.Compliance)
}
