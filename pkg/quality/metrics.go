package quality

import (
	"html"
	"math"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"recordguard-hq/recordguard/pkg/rules"
	"recordguard-hq/recordguard/pkg/validation"
)

// Metrics are the quality scores of a record, each in [0, 100].
type Metrics struct {
	Completeness float64 `json:"completeness"`
	Accuracy     float64 `json:"accuracy"`
	Consistency  float64 `json:"consistency"`
	Validity     float64 `json:"validity"`
	Uniqueness   float64 `json:"uniqueness"`
	Timeliness   float64 `json:"timeliness"`
	Overall      float64 `json:"overall"`
}

// Score returns the score of dimension d.
func (m *Metrics) Score(d Dimension) float64 {
	switch d {
	case Completeness:
		return m.Completeness
	case Accuracy:
		return m.Accuracy
	case Consistency:
		return m.Consistency
	case Validity:
		return m.Validity
	case Uniqueness:
		return m.Uniqueness
	case Timeliness:
		return m.Timeliness
	case Overall:
		return m.Overall
	}
	return 0
}

func (m *Metrics) set(d Dimension, v float64) {
	switch d {
	case Completeness:
		m.Completeness = v
	case Accuracy:
		m.Accuracy = v
	case Consistency:
		m.Consistency = v
	case Validity:
		m.Validity = v
	case Uniqueness:
		m.Uniqueness = v
	case Timeliness:
		m.Timeliness = v
	case Overall:
		m.Overall = v
	}
}

// weigh computes Overall as the weighted average of the six dimensions.
func (m *Metrics) weigh(weights map[Dimension]float64) {
	var sum, total float64
	for _, d := range Dimensions {
		w := weights[d]
		sum += m.Score(d) * w
		total += w
	}
	if total > 0 {
		m.Overall = round(sum / total)
	}
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}

func ratio(passed, checked int) float64 {
	if checked == 0 {
		return 100
	}
	return round(float64(passed) / float64(checked) * 100)
}

// unescaped returns a copy of record with entity-escaped strings decoded,
// so sanitized values are scored by their content.
func unescaped(record validation.Record) validation.Record {
	out := make(validation.Record, len(record))
	for k, v := range record {
		if s, ok := v.(string); ok {
			v = html.UnescapeString(s)
		}
		out[k] = v
	}
	return out
}

// completeness is the share of populated fields among the record's fields
// and the expected fields.
func completeness(record validation.Record, expected []string) float64 {
	total, populated := 0, 0
	for _, v := range record {
		total++
		if rules.IsPresent(v) {
			populated++
		}
	}
	for _, f := range expected {
		if _, ok := record[f]; !ok {
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return ratio(populated, total)
}

var (
	emailPattern    = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
	phoneCharset    = regexp.MustCompile(`^[0-9+()\-. x]+$`)
	e164Pattern     = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)
	nanpPattern     = regexp.MustCompile(`^(?:\(\d{3}\) |\d{3}-)\d{3}-\d{4}$`)
	isoDatePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2}(?::\d{2}(?:\.\d+)?)?(?:Z|[+\-]\d{2}:?\d{2})?)?$`)
	personNameField = []string{"name", "firstname", "lastname", "middlename", "fullname"}
)

type fieldKind int

const (
	kindOther fieldKind = iota
	kindEmail
	kindPhone
	kindURL
	kindDate
)

// classifyField infers what a field holds from its name.
func classifyField(name string) fieldKind {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "email"):
		return kindEmail
	case strings.Contains(n, "phone") || strings.Contains(n, "mobile") || strings.Contains(n, "fax"):
		return kindPhone
	case strings.Contains(n, "url") || strings.Contains(n, "website") || strings.HasSuffix(n, "uri"):
		return kindURL
	case strings.HasPrefix(n, "date") || strings.HasSuffix(n, "date") || strings.HasSuffix(name, "At") ||
		strings.HasSuffix(n, "_at") || strings.HasSuffix(n, "time") || strings.HasSuffix(n, "timestamp"):
		return kindDate
	}
	return kindOther
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

func validPhone(s string) bool {
	d := digitCount(s)
	return phoneCharset.MatchString(s) && d >= 7 && d <= 15
}

func validURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func finite(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		f := float64(n)
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int32, int64, uint, uint64:
		return true
	}
	return false
}

// accuracy checks populated fields against the format their name implies.
func accuracy(record validation.Record) float64 {
	passed, checked := 0, 0
	for field, v := range record {
		if !rules.IsPresent(v) {
			continue
		}
		if isNumber(v) {
			checked++
			if _, ok := finite(v); ok {
				passed++
			}
			continue
		}
		s, ok := v.(string)
		var good bool
		switch classifyField(field) {
		case kindEmail:
			good = ok && emailPattern.MatchString(strings.TrimSpace(s))
		case kindPhone:
			good = ok && validPhone(s)
		case kindURL:
			good = ok && validURL(s)
		case kindDate:
			_, good = rules.AsTime(v)
		default:
			continue
		}
		checked++
		if good {
			passed++
		}
	}
	return ratio(passed, checked)
}

// consistency starts at 100 and loses penalty points per formatting
// inconsistency.
func consistency(record validation.Record, penalty float64) float64 {
	// Casers are stateful and not safe for concurrent use.
	title := cases.Title(language.Und, cases.NoLower)
	issues := 0
	for field, v := range record {
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		switch classifyField(field) {
		case kindEmail:
			if strings.ContainsFunc(s, unicode.IsSpace) || s != strings.ToLower(s) {
				issues++
			}
		case kindPhone:
			if !e164Pattern.MatchString(s) && !nanpPattern.MatchString(s) {
				issues++
			}
		case kindDate:
			if !isoDatePattern.MatchString(s) {
				issues++
			}
		default:
			for _, n := range personNameField {
				if strings.EqualFold(field, n) && title.String(s) != s {
					issues++
					break
				}
			}
		}
	}
	return math.Max(0, 100-float64(issues)*penalty)
}

// validity checks type and range plausibility implied by field names.
func validity(record validation.Record) float64 {
	passed, checked := 0, 0
	check := func(ok bool) {
		checked++
		if ok {
			passed++
		}
	}
	for field, v := range record {
		if v == nil {
			continue
		}
		n := strings.ToLower(field)
		switch {
		case n == "id" || strings.HasSuffix(field, "Id") || strings.HasSuffix(field, "ID") || strings.HasSuffix(n, "_id"):
			if f, ok := finite(v); ok {
				check(f > 0)
			} else {
				s, ok := v.(string)
				check(ok && strings.TrimSpace(s) != "")
			}
		case n == "status" || n == "state":
			s, ok := v.(string)
			check(ok && strings.TrimSpace(s) != "")
		case strings.Contains(n, "percent") || strings.Contains(n, "ratio") || strings.Contains(n, "probability"):
			f, ok := finite(v)
			check(ok && f >= 0 && f <= 100)
		case strings.Contains(n, "count") || strings.Contains(n, "numberof") || strings.Contains(n, "quantity") ||
			strings.Contains(n, "employees") || strings.Contains(n, "revenue") || strings.Contains(n, "amount") ||
			strings.Contains(n, "price") || n == "age":
			f, ok := finite(v)
			check(ok && f >= 0)
		case classifyField(field) == kindEmail:
			s, ok := v.(string)
			check(ok && strings.Count(s, "@") == 1)
		}
	}
	return ratio(passed, checked)
}

var (
	createdFields  = []string{"createdAt", "created_at", "createdDate", "createdOn"}
	modifiedFields = []string{"modifiedAt", "updatedAt", "modified_at", "updated_at", "lastModified", "lastModifiedDate"}
)

func firstTime(record validation.Record, fields []string) (time.Time, bool) {
	for _, f := range fields {
		if t, ok := rules.AsTime(record[f]); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// timeliness penalizes old and long-unmodified records.
func timeliness(record validation.Record, now time.Time, c *Config) float64 {
	score := 100.0
	day := 24 * time.Hour
	if t, ok := firstTime(record, createdFields); ok && now.Sub(t) > time.Duration(c.StaleCreatedDays)*day {
		score -= c.StaleCreatedPenalty
	}
	if t, ok := firstTime(record, modifiedFields); ok && now.Sub(t) > time.Duration(c.StaleModifiedDays)*day {
		score -= c.StaleModifiedPenalty
	}
	return math.Max(0, score)
}
