package sanitizer

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordguard-hq/recordguard/pkg/validation"
)

func newTestSanitizer(t *testing.T, config *Config) *Sanitizer {
	t.Helper()
	s, err := New(config, nil)
	require.NoError(t, err)
	return s
}

func TestSanitize_ScriptTag(t *testing.T) {
	s := newTestSanitizer(t, nil)

	result, err := s.ValidateAndSanitize(validation.Record{"accountName": "Acme<script>alert(1)</script>"}, "Account")
	require.NoError(t, err)

	name := result.SanitizedData["accountName"].(string)
	assert.NotContains(t, name, "<script>")
	assert.Contains(t, name, "&lt;script&gt;")
	assert.Equal(t, "Acme&lt;script&gt;alert(1)&lt;&#x2F;script&gt;", name)
	assert.True(t, result.HasWarningCode(validation.CodeXSS))
	assert.True(t, result.Valid(), "sanitizer findings are warnings")
}

func TestSanitize_Idempotent(t *testing.T) {
	s := newTestSanitizer(t, DefaultConfig().WithMarkupFields("bio"))

	inputs := []validation.Record{
		{"accountName": "Acme<script>alert(1)</script>"},
		{"q": "x' OR '1'='1"},
		{"q": "1; DROP TABLE users"},
		{"url": "https://example.com/a/b?c=d&e=f"},
		{"note": `<img src=x onerror="alert(1)">`},
		{"note": "eval(eval(atob('x')))"},
		{"note": "javascriptjavascript::alert(1)"},
		{"note": "already &lt;escaped&gt; &amp; fine"},
		{"bio": `<p onclick="x()">Hi <b>there</b> &amp; <script>alert(1)</script></p>`},
		{"nested": map[string]any{"list": []any{"<b>", 42, true, nil}}},
	}
	for _, in := range inputs {
		once, err := s.Sanitize(in, "Thing")
		require.NoError(t, err)
		twice, err := s.Sanitize(once, "Thing")
		require.NoError(t, err)
		assert.Equal(t, once, twice, "second pass changed output for %v", in)
	}
}

func TestSanitize_Steps(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "Acme Corporation", "Acme Corporation"},
		{"tautology", "x' OR '1'='1", "x"},
		{"union select", "a UNION SELECT password", "a  password"},
		{"stacked statement", "1; DROP TABLE users", "1"},
		{"trailing comment", "admin'--", "admin&#x27;"},
		{"script url", "javascript:alert(1)", "alert(1)"},
		{"event handler", `<img onerror=alert(1)>`, "&lt;img alert(1)&gt;"},
		{"eval", "eval(code)", "code)"},
		{"timer", "setTimeout(run, 10)", "run, 10)"},
		{"dom write", "document.write('x')", "&#x27;x&#x27;)"},
		{"ampersand kept", "Smith & Sons", "Smith & Sons"},
		{"slash escaped", "a/b", "a&#x2F;b"},
	}

	s := newTestSanitizer(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := s.Sanitize(validation.Record{"v": tt.input}, "Thing")
			require.NoError(t, err)
			assert.Equal(t, tt.want, out["v"])
		})
	}
}

func TestSanitize_DisabledSteps(t *testing.T) {
	s := newTestSanitizer(t, &Config{MaxDepth: 4})

	in := "x' OR '1'='1 <b>eval(</b>"
	out, err := s.Sanitize(validation.Record{"v": in}, "Thing")
	require.NoError(t, err)
	assert.Equal(t, in, out["v"])
}

func TestSanitize_Markup(t *testing.T) {
	s := newTestSanitizer(t, DefaultConfig().WithMarkupFields("bio"))

	in := validation.Record{
		"bio":  `<p onclick="x()">Hi <b>there</b><script>alert(1)</script><a href="javascript:alert(1)">x</a><a href="https://example.com" target="_blank">ok</a></p>`,
		"name": "<b>Bob</b>",
	}
	out, err := s.Sanitize(in, "Contact")
	require.NoError(t, err)

	bio := out["bio"].(string)
	assert.Contains(t, bio, "<b>there</b>")
	assert.Contains(t, bio, `<a href="https://example.com">ok</a>`)
	assert.NotContains(t, bio, "script")
	assert.NotContains(t, bio, "onclick")
	assert.NotContains(t, bio, "target")
	assert.True(t, strings.HasPrefix(bio, "<p>"))

	assert.Equal(t, "&lt;b&gt;Bob&lt;&#x2F;b&gt;", out["name"], "non-markup fields are escaped")
}

func TestSanitize_CustomRules(t *testing.T) {
	config := DefaultConfig().
		WithCustom(CustomRule{EntityType: "Contact", Field: "phone", Pattern: `[^0-9+]`, Replacement: ""}).
		WithCustom(CustomRule{Field: "address.zip", Pattern: `\s+`, Replacement: ""})
	s := newTestSanitizer(t, config)

	in := validation.Record{
		"phone":   "+1 (555) 123-4567",
		"address": map[string]any{"zip": "12 345"},
	}

	out, err := s.Sanitize(in, "Contact")
	require.NoError(t, err)
	assert.Equal(t, "+15551234567", out["phone"])
	assert.Equal(t, "12345", out["address"].(map[string]any)["zip"])

	out, err = s.Sanitize(in, "Account")
	require.NoError(t, err)
	assert.Equal(t, "+1 (555) 123-4567", out["phone"], "rule is scoped to Contact")
}

func TestSanitize_PreservesNonStrings(t *testing.T) {
	s := newTestSanitizer(t, nil)
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	in := validation.Record{
		"count":   42,
		"ratio":   0.5,
		"active":  true,
		"created": ts,
		"missing": nil,
		"tags":    []string{"<a>", "b"},
	}
	out, err := s.Sanitize(in, "Thing")
	require.NoError(t, err)

	assert.Equal(t, 42, out["count"])
	assert.Equal(t, 0.5, out["ratio"])
	assert.Equal(t, true, out["active"])
	assert.Equal(t, ts, out["created"])
	assert.Nil(t, out["missing"])
	assert.Equal(t, []string{"&lt;a&gt;", "b"}, out["tags"])
}

func TestSanitize_DoesNotMutateInput(t *testing.T) {
	s := newTestSanitizer(t, nil)

	in := validation.Record{
		"name":   "<i>x</i>",
		"nested": map[string]any{"list": []any{"<b>", map[string]any{"deep": "'"}}},
	}
	snapshot := validation.Record{
		"name":   "<i>x</i>",
		"nested": map[string]any{"list": []any{"<b>", map[string]any{"deep": "'"}}},
	}

	_, err := s.Sanitize(in, "Thing")
	require.NoError(t, err)
	assert.True(t, reflect.DeepEqual(in, snapshot), "input record was modified")
}

func TestSanitize_MaxDepth(t *testing.T) {
	s := newTestSanitizer(t, &Config{StripXSS: true, MaxDepth: 2})

	_, err := s.Sanitize(validation.Record{"a": map[string]any{"b": map[string]any{"c": "x"}}}, "Thing")

	var sanErr *validation.SanitizationError
	require.True(t, errors.As(err, &sanErr), "expected SanitizationError, got %v", err)
	assert.Equal(t, "a.b.c", sanErr.Field)
	assert.Equal(t, "Thing", sanErr.EntityType)
}

func TestSanitize_NilRecord(t *testing.T) {
	s := newTestSanitizer(t, nil)
	out, err := s.Sanitize(nil, "Thing")
	assert.NoError(t, err)
	assert.Nil(t, out)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{"zero depth", &Config{}},
		{"custom without field", DefaultConfig().WithCustom(CustomRule{Pattern: "x"})},
		{"bad pattern", DefaultConfig().WithCustom(CustomRule{Field: "f", Pattern: "("})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config, nil)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestValidateAndSanitize_Findings(t *testing.T) {
	s := newTestSanitizer(t, nil)

	in := validation.Record{
		"query":   "x' OR '1'='1",
		"email":   "john@example.com",
		"comment": "eval(payload)",
	}
	result, err := s.ValidateAndSanitize(in, "Contact")
	require.NoError(t, err)

	assert.True(t, result.HasWarningCode(validation.CodeSQLInjection))
	assert.True(t, result.HasWarningCode(validation.CodeScriptInjection))
	assert.True(t, result.HasWarningCode(validation.CodePIIDetected))
	for _, w := range result.Warnings {
		assert.NotEqual(t, "john@example.com", w.Value, "raw PII leaked into a warning")
	}
	assert.Equal(t, []string{"comment", "query"}, result.Metadata.Extra["sanitized_fields"])
}
