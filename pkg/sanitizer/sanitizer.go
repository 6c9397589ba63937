package sanitizer

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"recordguard-hq/recordguard/pkg/validation"
)

// maxPasses bounds the fixed-point loop in sanitizeString.
const maxPasses = 8

// Sanitizer cleanses untrusted string content in records. It is safe for
// concurrent use; configuration is fixed at construction.
type Sanitizer struct {
	config  *Config
	allowed map[string]bool
	logger  *slog.Logger
}

// New creates a Sanitizer. A nil config uses DefaultConfig.
func New(config *Config, logger *slog.Logger) (*Sanitizer, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]bool, len(config.AllowedTags))
	for _, t := range config.AllowedTags {
		allowed[t] = true
	}
	return &Sanitizer{
		config:  config,
		allowed: allowed,
		logger:  logger.With("component", "sanitizer"),
	}, nil
}

// Sanitize returns a cleaned deep copy of record. The input is never
// modified. Non-string scalars and timestamps pass through unchanged.
func (s *Sanitizer) Sanitize(record validation.Record, entityType string) (out validation.Record, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			err = &validation.SanitizationError{EntityType: entityType, Cause: validation.Recovered(rec)}
		}
	}()

	if record == nil {
		return nil, nil
	}
	v, err := s.walk(record, "", "", entityType, 0)
	if err != nil {
		return nil, err
	}
	return v.(validation.Record), nil
}

func (s *Sanitizer) walk(v any, path, key, entityType string, depth int) (any, error) {
	if depth > s.config.MaxDepth {
		return nil, &validation.SanitizationError{
			EntityType: entityType,
			Field:      path,
			Cause:      fmt.Errorf("nesting deeper than %d levels", s.config.MaxDepth),
		}
	}

	switch x := v.(type) {
	case string:
		return s.sanitizeString(x, path, key, entityType), nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, child := range x {
			cv, err := s.walk(child, joinPath(path, k), k, entityType, depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = cv
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, child := range x {
			cv, err := s.walk(child, indexPath(path, i), key, entityType, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	case []string:
		out := make([]string, len(x))
		for i, child := range x {
			out[i] = s.sanitizeString(child, indexPath(path, i), key, entityType)
		}
		return out, nil
	case []map[string]any:
		out := make([]map[string]any, len(x))
		for i, child := range x {
			cv, err := s.walk(child, indexPath(path, i), key, entityType, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = cv.(map[string]any)
		}
		return out, nil
	default:
		return x, nil
	}
}

// sanitizeString cleans one string. Plain fields are decoded from the
// escaped form, cleansed until the output stops changing, then entity
// escaped once; markup fields are re-rendered through the allow-list
// instead. Either way, sanitizing already-sanitized content is a no-op.
func (s *Sanitizer) sanitizeString(in, path, key, entityType string) string {
	markup := s.markupField(path, key)
	escape := s.config.StripXSS && !markup

	cur := in
	if escape {
		cur = unescaper.Replace(cur)
	}
	for i := 0; ; i++ {
		next := s.steps(cur, markup, path, key, entityType)
		if next == cur {
			break
		}
		cur = next
		if i == maxPasses-1 {
			s.logger.Warn("sanitization did not converge", "field", path, "entity_type", entityType)
			break
		}
	}
	if escape {
		cur = escaper.Replace(cur)
	}
	return cur
}

func (s *Sanitizer) steps(str string, markup bool, path, key, entityType string) string {
	if s.config.StripSQL {
		str = stripAll(str, sqlStrip)
		str = sqlTrailingComment.ReplaceAllString(str, "$1")
	}
	if s.config.StripXSS {
		str = stripAll(str, xssStrip)
		str = xssHandler.ReplaceAllString(str, "$1")
	}
	if s.config.StripScript {
		str = stripAll(str, scriptStrip)
	}
	if markup {
		str = sanitizeMarkup(str, s.allowed)
	}
	for _, r := range s.config.Custom {
		if r.EntityType != "" && r.EntityType != entityType {
			continue
		}
		if r.Field != key && r.Field != path {
			continue
		}
		str = r.re.ReplaceAllString(str, r.Replacement)
	}
	return str
}

func (s *Sanitizer) markupField(path, key string) bool {
	return slices.Contains(s.config.MarkupFields, key) || slices.Contains(s.config.MarkupFields, path)
}

// ValidateAndSanitize sanitizes record and reports detected threats and
// personal data as warnings. The result's SanitizedData holds the cleaned
// copy.
func (s *Sanitizer) ValidateAndSanitize(record validation.Record, entityType string) (*validation.Result, error) {
	result := validation.NewResult(entityType)

	cleaned, err := s.Sanitize(record, entityType)
	if err != nil {
		return nil, err
	}
	result.SanitizedData = cleaned

	for _, t := range s.DetectThreats(record) {
		result.AddWarning(validation.Warning{
			Field:          t.Field,
			Code:           t.Type.Code(),
			Message:        fmt.Sprintf("potential %s detected and neutralized (confidence %.2f)", t.Type, t.Confidence),
			Value:          t.Match,
			Recommendation: t.Type.Recommendation(),
		})
	}
	for _, m := range s.DetectPII(record) {
		result.AddWarning(validation.Warning{
			Field:          m.Field,
			Code:           validation.CodePIIDetected,
			Message:        fmt.Sprintf("%s detected (confidence %.2f)", m.Type, m.Confidence),
			Value:          m.Masked,
			Recommendation: "ensure the field is designated to hold personal data",
		})
	}

	changed := changedFields(record, cleaned, "")
	if len(changed) > 0 {
		s.logger.Debug("record sanitized", "entity_type", entityType, "fields", changed)
		result.Metadata.Extra = map[string]any{"sanitized_fields": changed}
	}
	return result, nil
}

func changedFields(before, after map[string]any, prefix string) []string {
	var out []string
	for k, bv := range before {
		path := joinPath(prefix, k)
		av := after[k]
		switch b := bv.(type) {
		case string:
			if a, ok := av.(string); ok && a != b {
				out = append(out, path)
			}
		case map[string]any:
			if a, ok := av.(map[string]any); ok {
				out = append(out, changedFields(b, a, path)...)
			}
		case []any:
			if a, ok := av.([]any); ok {
				for i := range b {
					if i >= len(a) {
						break
					}
					if bs, ok := b[i].(string); ok {
						if as, ok := a[i].(string); ok && as != bs {
							out = append(out, indexPath(path, i))
						}
					}
				}
			}
		}
	}
	slices.Sort(out)
	return out
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func indexPath(prefix string, i int) string {
	return prefix + "[" + strconv.Itoa(i) + "]"
}
