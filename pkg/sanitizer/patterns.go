package sanitizer

import (
	"regexp"
	"strings"
)

// Removal patterns. Each is applied with ReplaceAllString.
var (
	sqlStrip = []*regexp.Regexp{
		regexp.MustCompile(`(?i)'\s*(?:or|and)\s+'?\w+'?\s*=\s*'?\w+'?`),
		regexp.MustCompile(`(?i)\bunion(?:\s+all)?\s+select\b`),
		regexp.MustCompile(`(?i);\s*(?:drop|truncate|alter|shutdown|exec(?:ute)?|delete\s+from|insert\s+into)\b[^;]*`),
		regexp.MustCompile(`(?i)\b(?:xp_cmdshell|sp_executesql|waitfor\s+delay)\b`),
		regexp.MustCompile(`(?s)/\*.*?\*/`),
	}
	sqlTrailingComment = regexp.MustCompile(`('\s*)--[^\n]*`)

	xssStrip = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:java|vb)script\s*:`),
		regexp.MustCompile(`(?i)data\s*:\s*text/html`),
		regexp.MustCompile(`(?i)expression\s*\(`),
	}
	xssHandler = regexp.MustCompile(`(?i)(<[^>]*?)\bon[a-z]+\s*=`)

	scriptStrip = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\beval\s*\(`),
		regexp.MustCompile(`(?i)\bset(?:Timeout|Interval|Immediate)\s*\(`),
		regexp.MustCompile(`(?i)\bdocument\s*\.\s*write(?:ln)?\s*\(`),
		regexp.MustCompile(`(?i)\bnew\s+Function\s*\(`),
		regexp.MustCompile(`(?i)\.\s*(?:inner|outer)HTML\s*=`),
	}
)

// Detection patterns. These are read-only and intentionally broader than
// the removal patterns.
var (
	sqlDetect = []*regexp.Regexp{
		regexp.MustCompile(`(?i)'\s*(?:or|and)\s+'?\w+'?\s*=\s*'?\w+'?`),
		regexp.MustCompile(`(?i)\bunion(?:\s+all)?\s+select\b`),
		regexp.MustCompile(`(?i)\b(?:drop|truncate|alter)\s+table\b`),
		regexp.MustCompile(`(?i)\b(?:insert\s+into|delete\s+from)\b`),
		regexp.MustCompile(`(?i)\b(?:xp_cmdshell|sp_executesql|waitfor\s+delay)\b`),
		regexp.MustCompile(`'\s*--`),
		regexp.MustCompile(`(?s)/\*.*?\*/`),
	}

	xssDetect = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<\s*/?\s*script\b`),
		regexp.MustCompile(`(?i)<\s*(?:iframe|object|embed|svg|link|meta|style)\b`),
		regexp.MustCompile(`(?i)(?:java|vb)script\s*:`),
		regexp.MustCompile(`(?i)<[^>]*\bon[a-z]+\s*=`),
		regexp.MustCompile(`(?i)data\s*:\s*text/html`),
	}

	scriptDetect = scriptStrip
)

// escaper escapes the markup-significant characters. Ampersands are left
// alone so escaping is idempotent.
var escaper = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// unescaper reverses escaper.
var unescaper = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#x27;", "'",
	"&#x2F;", "/",
)

func stripAll(s string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		s = re.ReplaceAllString(s, "")
	}
	return s
}

func matchesAny(s string, patterns []*regexp.Regexp) (string, bool) {
	for _, re := range patterns {
		if m := re.FindString(s); m != "" {
			return m, true
		}
	}
	return "", false
}
