package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"recordguard-hq/recordguard/pkg/rules"
	"recordguard-hq/recordguard/pkg/validation"
)

func init() {
	gojsonschema.FormatCheckers.Add("timestamp", timestampChecker{})
}

// timestampChecker accepts the timestamp layouts understood by rules.AsTime.
type timestampChecker struct{}

func (timestampChecker) IsFormat(input any) bool {
	s, ok := input.(string)
	if !ok {
		return true
	}
	_, ok = rules.AsTime(s)
	return ok
}

// JSONSchema translates the field descriptions into a JSON Schema document.
// Required fields are not listed; Check enforces presence itself so that
// empty strings count as missing.
func (s *EntitySchema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		props[f.Name] = fieldSchema(f)
	}
	return map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"title":                s.EntityType,
		"type":                 "object",
		"properties":           props,
		"additionalProperties": s.AdditionalFields,
	}
}

func fieldSchema(f Field) map[string]any {
	m := map[string]any{}
	switch f.Kind {
	case KindTimestamp:
		m["type"] = "string"
		m["format"] = "timestamp"
	case KindAny:
	case KindArray:
		m["type"] = "array"
		if f.Items != "" && f.Items != KindAny {
			m["items"] = fieldSchema(Field{Kind: f.Items})
		}
	default:
		m["type"] = string(f.Kind)
	}
	if len(f.Enum) > 0 {
		m["enum"] = f.Enum
	}
	if f.Min != nil {
		m["minimum"] = *f.Min
	}
	if f.Max != nil {
		m["maximum"] = *f.Max
	}
	if f.MinLength != nil {
		m["minLength"] = *f.MinLength
	}
	if f.MaxLength != nil {
		m["maxLength"] = *f.MaxLength
	}
	if f.Pattern != "" {
		m["pattern"] = f.Pattern
	}
	if f.Format != "" && f.Kind != KindTimestamp {
		m["format"] = f.Format
	}
	if f.Description != "" {
		m["description"] = f.Description
	}
	return m
}

func (s *EntitySchema) compile() (*gojsonschema.Schema, error) {
	s.once.Do(func() {
		s.compiled, s.compErr = gojsonschema.NewSchema(gojsonschema.NewGoLoader(s.JSONSchema()))
	})
	return s.compiled, s.compErr
}

// requiresPresence reports whether required fields must be present for op.
func requiresPresence(op validation.Operation) bool {
	return op == "" || op == validation.OperationCreate || op == validation.OperationSave
}

// Check validates record against the schema's structural definition.
//
// Required fields must be present and non-blank on create and save. On
// update, required fields may be omitted but not blanked. Read and delete
// skip presence checks. Writes to read-only fields on update produce
// warnings.
func Check(s *EntitySchema, record validation.Record, op validation.Operation) *validation.Result {
	result := validation.NewResult(s.EntityType)
	if record == nil {
		result.AddError(validation.Error{
			Code:     validation.CodeSchemaViolation,
			Message:  "record is nil",
			Severity: validation.SeverityCritical,
			Category: validation.CategoryData,
		})
		return result
	}

	skip := make(map[string]bool)
	for _, name := range s.RequiredFields() {
		v, present := record[name]
		blank := present && !rules.IsPresent(v)
		missing := !present || v == nil
		if (missing && requiresPresence(op)) || (blank && op != validation.OperationRead && op != validation.OperationDelete) {
			result.AddError(validation.Error{
				Field:    name,
				Code:     validation.CodeRequiredFieldMissing,
				Message:  fmt.Sprintf("%s is required", name),
				Value:    v,
				Severity: validation.SeverityHigh,
				Category: validation.CategoryData,
			})
			skip[name] = true
		}
	}

	if op == validation.OperationUpdate {
		for _, name := range s.ReadOnlyFields() {
			if name == "id" {
				continue
			}
			if _, ok := record[name]; ok {
				result.AddWarning(validation.Warning{
					Field:          name,
					Code:           validation.CodeReadOnlyField,
					Message:        fmt.Sprintf("%s is read-only and will be ignored on update", name),
					Recommendation: "remove read-only fields from update payloads",
				})
			}
		}
	}

	doc := make(map[string]any, len(record))
	for k, v := range record {
		if v == nil || skip[k] {
			continue
		}
		doc[k] = v
	}

	compiled, err := s.compile()
	if err != nil {
		result.AddError(validation.Error{
			Code:     validation.CodeSchemaViolation,
			Message:  fmt.Sprintf("schema %s is unusable: %v", s.Key(), err),
			Severity: validation.SeverityCritical,
			Category: validation.CategoryData,
		})
		return result
	}

	res, err := compiled.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		result.AddError(validation.Error{
			Code:     validation.CodeSchemaViolation,
			Message:  fmt.Sprintf("record could not be checked: %v", err),
			Severity: validation.SeverityCritical,
			Category: validation.CategoryData,
		})
		return result
	}

	for _, re := range res.Errors() {
		code, severity := classify(re.Type())
		result.AddError(validation.Error{
			Field:    fieldOf(re),
			Code:     code,
			Message:  re.Description(),
			Value:    re.Value(),
			Severity: severity,
			Category: validation.CategoryData,
			Context:  map[string]any{"constraint": re.Type()},
		})
	}
	return result
}

// classify maps a gojsonschema error type to a finding code and severity.
func classify(t string) (string, validation.Severity) {
	switch {
	case t == "required":
		return validation.CodeRequiredFieldMissing, validation.SeverityHigh
	case t == "invalid_type":
		return validation.CodeInvalidType, validation.SeverityHigh
	case t == "enum" || t == "const":
		return validation.CodeInvalidEnumValue, validation.SeverityMedium
	case strings.HasPrefix(t, "number_"), t == "multiple_of":
		return validation.CodeValueOutOfRange, validation.SeverityMedium
	case t == "string_gte":
		return validation.CodeStringTooShort, validation.SeverityMedium
	case t == "string_lte":
		return validation.CodeStringTooLong, validation.SeverityMedium
	case t == "pattern":
		return validation.CodePatternMismatch, validation.SeverityMedium
	case t == "format":
		return validation.CodeInvalidFormat, validation.SeverityMedium
	case t == "additional_property_not_allowed":
		return validation.CodeUnknownField, validation.SeverityLow
	default:
		return validation.CodeSchemaViolation, validation.SeverityMedium
	}
}

func fieldOf(re gojsonschema.ResultError) string {
	field := re.Field()
	if field == "(root)" {
		if p, ok := re.Details()["property"].(string); ok {
			return p
		}
		return ""
	}
	return field
}
