package quality

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"time"

	"recordguard-hq/recordguard/pkg/rules"
	"recordguard-hq/recordguard/pkg/validation"
)

// Inferred field types.
const (
	TypeEmpty   = "empty"
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeDate    = "date"
	TypeObject  = "object"
	TypeArray   = "array"
	TypeMixed   = "mixed"
)

// ValueCount is a value and the number of sampled records holding it.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// FieldProfile describes the values of one field across a batch.
type FieldProfile struct {
	Field       string       `json:"field"`
	Total       int          `json:"total"`
	Nulls       int          `json:"nulls"`
	NullRatio   float64      `json:"null_ratio"`
	Unique      int          `json:"unique"`
	UniqueRatio float64      `json:"unique_ratio"`
	Type        string       `json:"type"`
	TopValues   []ValueCount `json:"top_values,omitempty"`

	// Quality is the populated share scaled by the share of values
	// matching the inferred type, 0-100.
	Quality float64 `json:"quality"`
}

// ProfileData profiles every field seen in records, plus the expected
// fields of entityType's profile, sorted by field name. At most
// Config.SampleSize records are inspected.
func (v *Validator) ProfileData(records []validation.Record, entityType string) []FieldProfile {
	sample := records
	if len(sample) > v.config.SampleSize {
		sample = sample[:v.config.SampleSize]
	}

	fields := make(map[string]bool)
	for _, f := range v.Profile(entityType).ExpectedFields {
		fields[f] = true
	}
	for _, r := range sample {
		for k := range r {
			fields[k] = true
		}
	}

	profiles := make([]FieldProfile, 0, len(fields))
	for _, f := range slices.Sorted(maps.Keys(fields)) {
		profiles = append(profiles, v.profileField(f, sample))
	}
	return profiles
}

func (v *Validator) profileField(field string, sample []validation.Record) FieldProfile {
	p := FieldProfile{Field: field, Total: len(sample)}
	counts := make(map[string]int)
	types := make(map[string]int)
	for _, r := range sample {
		val := r[field]
		if !rules.IsPresent(val) {
			p.Nulls++
			continue
		}
		counts[fmt.Sprint(val)]++
		types[valueType(val)]++
	}
	populated := p.Total - p.Nulls
	p.Unique = len(counts)
	if p.Total > 0 {
		p.NullRatio = round(float64(p.Nulls) / float64(p.Total))
	}
	if populated > 0 {
		p.UniqueRatio = round(float64(p.Unique) / float64(populated))
	}

	p.Type = TypeEmpty
	dominant := 0
	for t, n := range types {
		if n > dominant || (n == dominant && t < p.Type) {
			p.Type, dominant = t, n
		}
	}
	if len(types) > 1 && dominant*10 < populated*9 {
		p.Type = TypeMixed
	}

	top := make([]ValueCount, 0, len(counts))
	for val, n := range counts {
		top = append(top, ValueCount{Value: val, Count: n})
	}
	slices.SortFunc(top, func(a, b ValueCount) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.Value, b.Value))
	})
	if len(top) > v.config.TopValues {
		top = top[:v.config.TopValues]
	}
	p.TopValues = top

	if populated > 0 {
		p.Quality = round((1 - float64(p.Nulls)/float64(p.Total)) * float64(dominant) / float64(populated) * 100)
	}
	return p
}

func valueType(v any) string {
	switch x := v.(type) {
	case bool:
		return TypeBoolean
	case time.Time:
		return TypeDate
	case string:
		if isoDatePattern.MatchString(x) {
			return TypeDate
		}
		return TypeString
	case map[string]any:
		return TypeObject
	case []any, []string:
		return TypeArray
	}
	if isNumber(v) {
		return TypeNumber
	}
	return TypeString
}
