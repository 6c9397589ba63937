package schema

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"recordguard-hq/recordguard/pkg/rules"
	"recordguard-hq/recordguard/pkg/validation"
)

// fileSchema is the YAML representation of an entity schema.
type fileSchema struct {
	EntityType       string     `yaml:"entity_type"`
	Version          string     `yaml:"version"`
	AdditionalFields bool       `yaml:"additional_fields"`
	Fields           []Field    `yaml:"fields"`
	BusinessRules    []fileRule `yaml:"business_rules"`
	SecurityRules    []fileRule `yaml:"security_rules"`
	ComplianceRules  []fileRule `yaml:"compliance_rules"`
	Metadata         Metadata   `yaml:"metadata"`
}

// fileRule is the YAML representation of a rule. Conditions are
// expressions in the closed rule language.
type fileRule struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	Field          string   `yaml:"field"`
	Expression     string   `yaml:"expression"`
	Severity       string   `yaml:"severity"`
	Priority       *int     `yaml:"priority"`
	Mandatory      *bool    `yaml:"mandatory"`
	Enabled        *bool    `yaml:"enabled"`
	Message        string   `yaml:"message"`
	Recommendation string   `yaml:"recommendation"`
	Operations     []string `yaml:"operations"`
}

func (fr fileRule) toRule(kind rules.Kind) (rules.Rule, error) {
	cond, err := rules.Expression(fr.Expression)
	if err != nil {
		return rules.Rule{}, fmt.Errorf("rule %s: %w", fr.ID, err)
	}
	name := fr.Name
	if name == "" {
		name = fr.ID
	}
	r := rules.New(fr.ID, name, cond).
		WithKind(kind).
		WithField(fr.Field).
		WithSeverity(validation.ParseSeverity(fr.Severity)).
		WithMessage(fr.Message).
		WithRecommendation(fr.Recommendation)
	if fr.Priority != nil {
		r = r.WithPriority(*fr.Priority)
	}
	if fr.Mandatory != nil && !*fr.Mandatory {
		r = r.Optional()
	}
	if fr.Enabled != nil && !*fr.Enabled {
		r = r.Disabled()
	}
	if len(fr.Operations) > 0 {
		ops := make([]validation.Operation, 0, len(fr.Operations))
		for _, op := range fr.Operations {
			o := validation.Operation(strings.ToLower(op))
			if !o.Valid() {
				return rules.Rule{}, fmt.Errorf("rule %s: unknown operation %q", fr.ID, op)
			}
			ops = append(ops, o)
		}
		r = r.ForOperations(ops...)
	}
	return r, nil
}

// Parse decodes a YAML schema definition.
func Parse(data []byte) (*EntitySchema, error) {
	var fs fileSchema
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	s := &EntitySchema{
		EntityType:       fs.EntityType,
		Version:          fs.Version,
		AdditionalFields: fs.AdditionalFields,
		Fields:           fs.Fields,
		Metadata:         fs.Metadata,
	}
	groups := []struct {
		in   []fileRule
		kind rules.Kind
		out  *[]rules.Rule
	}{
		{fs.BusinessRules, rules.KindBusiness, &s.BusinessRules},
		{fs.SecurityRules, rules.KindSecurity, &s.SecurityRules},
		{fs.ComplianceRules, rules.KindCompliance, &s.ComplianceRules},
	}
	for _, g := range groups {
		for _, fr := range g.in {
			r, err := fr.toRule(g.kind)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
			}
			*g.out = append(*g.out, r)
		}
	}

	if err := Validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadFile reads one YAML schema file.
func LoadFile(path string) (*EntitySchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}
	s, err := Parse(data)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}
	return s, nil
}

// LoadDir reads every *.yaml and *.yml file in dir, in name order. Files
// that fail to load are skipped and reported in the returned error.
func LoadDir(dir string) ([]*EntitySchema, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &LoadError{Path: dir, Cause: err}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var (
		schemas []*EntitySchema
		errs    []error
	)
	for _, name := range names {
		s, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		schemas = append(schemas, s)
	}
	if len(errs) > 0 {
		return schemas, errors.Join(errs...)
	}
	return schemas, nil
}
