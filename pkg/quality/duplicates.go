package quality

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/tidwall/gjson"

	"recordguard-hq/recordguard/pkg/validation"
)

// Algorithm names a similarity measure.
type Algorithm string

const (
	// AlgorithmExact scores 1 for equal values and 0 otherwise.
	AlgorithmExact Algorithm = "exact"

	// AlgorithmLevenshtein scores one minus the edit distance over the
	// longer value's length.
	AlgorithmLevenshtein Algorithm = "levenshtein"

	// AlgorithmJaccard scores the overlap of the values' word sets.
	AlgorithmJaccard Algorithm = "jaccard"

	// AlgorithmCosine scores the cosine of the values' word frequency
	// vectors.
	AlgorithmCosine Algorithm = "cosine"
)

// DuplicateConfig configures duplicate detection.
type DuplicateConfig struct {
	// Fields are gjson paths of the compared values. Empty compares every
	// non-identifier top-level field.
	Fields []string `yaml:"fields"`

	// Algorithms are tried in order; a pair is reported under the first
	// one reaching Threshold.
	Algorithms []Algorithm `yaml:"algorithms"`

	// Threshold is the minimum similarity in [0, 1].
	Threshold float64 `yaml:"threshold"`

	// IDField is the path of the identifier reported with each pair.
	IDField string `yaml:"id_field"`
}

// DefaultDuplicateConfig returns exact and edit-distance matching at 0.9.
func DefaultDuplicateConfig() DuplicateConfig {
	return DuplicateConfig{
		Algorithms: []Algorithm{AlgorithmExact, AlgorithmLevenshtein},
		Threshold:  0.9,
		IDField:    "id",
	}
}

// Validate checks the configuration.
func (c *DuplicateConfig) Validate() error {
	if c.Threshold <= 0 || c.Threshold > 1 {
		return fmt.Errorf("%w: duplicate threshold must be in (0, 1]", ErrInvalidConfig)
	}
	if len(c.Algorithms) == 0 {
		return fmt.Errorf("%w: at least one similarity algorithm is required", ErrInvalidConfig)
	}
	for _, a := range c.Algorithms {
		if similarityFuncs[a] == nil {
			return fmt.Errorf("%w: %q", ErrUnknownAlgorithm, a)
		}
	}
	return nil
}

// DuplicatePair is a pair of records considered duplicates. Left and Right
// index the input slice, Left < Right.
type DuplicatePair struct {
	Left       int       `json:"left"`
	Right      int       `json:"right"`
	LeftID     string    `json:"left_id,omitempty"`
	RightID    string    `json:"right_id,omitempty"`
	Similarity float64   `json:"similarity"`
	Algorithm  Algorithm `json:"algorithm"`
}

var similarityFuncs = map[Algorithm]func(a, b string) float64{
	AlgorithmExact:       exactSimilarity,
	AlgorithmLevenshtein: levenshteinSimilarity,
	AlgorithmJaccard:     jaccardSimilarity,
	AlgorithmCosine:      cosineSimilarity,
}

// DetectDuplicates compares every pair of records. Each pair is reported at
// most once, in input order.
func DetectDuplicates(records []validation.Record, config DuplicateConfig) ([]DuplicatePair, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	docs := make([][]byte, len(records))
	for i, r := range records {
		b, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("encode record %d: %w", i, err)
		}
		docs[i] = b
	}

	fields := config.Fields
	if len(fields) == 0 {
		fields = comparableFields(records)
	}
	values := make([][]string, len(records))
	ids := make([]string, len(records))
	for i, doc := range docs {
		values[i] = make([]string, len(fields))
		for j, path := range fields {
			values[i][j] = normalizeValue(gjson.GetBytes(doc, path))
		}
		if config.IDField != "" {
			ids[i] = gjson.GetBytes(doc, config.IDField).String()
		}
	}

	var pairs []DuplicatePair
	for i := 0; i < len(records); i++ {
		for j := i + 1; j < len(records); j++ {
			for _, a := range config.Algorithms {
				s, ok := similarity(values[i], values[j], similarityFuncs[a])
				s = math.Round(s*1000) / 1000
				if !ok || s < config.Threshold {
					continue
				}
				pairs = append(pairs, DuplicatePair{
					Left:       i,
					Right:      j,
					LeftID:     ids[i],
					RightID:    ids[j],
					Similarity: s,
					Algorithm:  a,
				})
				break
			}
		}
	}
	return pairs, nil
}

// comparableFields returns the sorted union of non-identifier keys.
func comparableFields(records []validation.Record) []string {
	seen := make(map[string]bool)
	for _, r := range records {
		for k := range r {
			if !isIDField(k) {
				seen[k] = true
			}
		}
	}
	fields := slices.Sorted(maps.Keys(seen))
	for i, f := range fields {
		fields[i] = escapePath(f)
	}
	return fields
}

// escapePath escapes gjson metacharacters in a literal key.
func escapePath(key string) string {
	var b strings.Builder
	for _, r := range key {
		if strings.ContainsRune(`.*?|#@\`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func normalizeValue(r gjson.Result) string {
	if !r.Exists() || r.Type == gjson.Null {
		return ""
	}
	if r.Type == gjson.JSON {
		return strings.ToLower(r.Raw)
	}
	return strings.ToLower(strings.TrimSpace(r.String()))
}

// similarity averages fn over the fields populated on either side. It
// reports false when no field is populated on either side.
func similarity(a, b []string, fn func(a, b string) float64) (float64, bool) {
	var sum float64
	n := 0
	for i := range a {
		if a[i] == "" && b[i] == "" {
			continue
		}
		n++
		if a[i] == "" || b[i] == "" {
			continue
		}
		sum += fn(a[i], b[i])
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func exactSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	return 0
}

func levenshteinSimilarity(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func termFrequency(s string) map[string]float64 {
	tf := make(map[string]float64)
	for _, t := range tokens(s) {
		tf[t]++
	}
	return tf
}

func jaccardSimilarity(a, b string) float64 {
	sa, sb := termFrequency(a), termFrequency(b)
	if len(sa) == 0 && len(sb) == 0 {
		return exactSimilarity(a, b)
	}
	inter := 0
	for t := range sa {
		if _, ok := sb[t]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}

func cosineSimilarity(a, b string) float64 {
	va, vb := termFrequency(a), termFrequency(b)
	if len(va) == 0 || len(vb) == 0 {
		return exactSimilarity(a, b)
	}
	var dot, na, nb float64
	for t, x := range va {
		dot += x * vb[t]
		na += x * x
	}
	for _, y := range vb {
		nb += y * y
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
