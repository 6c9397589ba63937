package compliance

import (
	"fmt"
	"slices"
	"strings"

	"recordguard-hq/recordguard/pkg/rules"
	"recordguard-hq/recordguard/pkg/validation"
)

// Check selects a built-in deep check.
type Check uint8

const (
	// CheckLawfulBasis requires a recognized lawful basis for processing.
	CheckLawfulBasis Check = 1 << iota

	// CheckConsent requires valid opt-in consent when processing relies
	// on consent.
	CheckConsent

	// CheckOptOut rejects processing for subjects who opted out.
	CheckOptOut

	// CheckRetention enforces the storage limitation.
	CheckRetention

	// CheckCardData requires card data fields to be encrypted.
	CheckCardData
)

// Has reports whether c includes check.
func (c Check) Has(check Check) bool {
	return c&check != 0
}

// GlobalJurisdiction makes a framework apply everywhere.
const GlobalJurisdiction = "global"

// Framework is a regulatory framework: where it applies, which deep checks
// it requires and which declarative rules it adds.
type Framework struct {
	Name        string
	Description string

	// Jurisdictions are country or region codes. "US" also matches
	// sub-national codes such as "US-CA".
	Jurisdictions []string

	// Extend makes the framework apply outside its jurisdictions.
	Extend func(cc *validation.ComplianceContext) bool

	// Gate must hold for the framework to apply at all.
	Gate func(cc *validation.ComplianceContext) bool

	Checks Check
	Rules  []rules.Rule

	// Rights are the data-subject rights the framework grants.
	Rights []string
}

// Validate checks the framework definition.
func (f *Framework) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidFramework)
	}
	if len(f.Jurisdictions) == 0 && f.Extend == nil {
		return fmt.Errorf("%w: %s applies nowhere", ErrInvalidFramework, f.Name)
	}
	for _, r := range f.Rules {
		if r.ID == "" || r.Condition == nil {
			return fmt.Errorf("%w: %s rule %q needs an id and a condition", ErrInvalidFramework, f.Name, r.ID)
		}
	}
	return nil
}

// AppliesTo reports whether the framework governs a call with cc, which
// may be nil.
func (f *Framework) AppliesTo(cc *validation.ComplianceContext) bool {
	var jurisdiction string
	if cc != nil {
		jurisdiction = cc.Jurisdiction
	}
	applies := matchJurisdiction(f.Jurisdictions, jurisdiction) ||
		(f.Extend != nil && f.Extend(cc))
	if applies && f.Gate != nil {
		return f.Gate(cc)
	}
	return applies
}

func matchJurisdiction(list []string, jurisdiction string) bool {
	j := strings.ToUpper(strings.TrimSpace(jurisdiction))
	for _, entry := range list {
		if strings.EqualFold(entry, GlobalJurisdiction) {
			return true
		}
		if j == "" {
			continue
		}
		e := strings.ToUpper(entry)
		if j == e || strings.HasPrefix(j, e+"-") {
			return true
		}
	}
	return false
}

func (f Framework) clone() *Framework {
	f.Jurisdictions = slices.Clone(f.Jurisdictions)
	f.Rules = rules.Clone(f.Rules)
	f.Rights = slices.Clone(f.Rights)
	return &f
}

// Built-in framework names.
const (
	GDPR   = "GDPR"
	SOX    = "SOX"
	PCIDSS = "PCI-DSS"
	CCPA   = "CCPA"
	HIPAA  = "HIPAA"
)

// EEA member states plus the EU and EEA region codes.
var eeaJurisdictions = []string{
	"EU", "EEA",
	"AT", "BE", "BG", "HR", "CY", "CZ", "DK", "EE", "FI", "FR", "DE", "GR", "HU", "IE",
	"IT", "LV", "LT", "LU", "MT", "NL", "PL", "PT", "RO", "SK", "SI", "ES", "SE",
	"IS", "LI", "NO",
}

// BuiltinFrameworks returns fresh copies of the built-in frameworks.
func BuiltinFrameworks() []Framework {
	return []Framework{
		{
			Name:          GDPR,
			Description:   "EU General Data Protection Regulation",
			Jurisdictions: eeaJurisdictions,
			Extend: func(cc *validation.ComplianceContext) bool {
				return cc.PurposeMentions("personal data")
			},
			Checks: CheckLawfulBasis | CheckConsent | CheckRetention,
			Rules: []rules.Rule{
				rules.New("gdpr-subject-identified", "Personal data is linked to a data subject",
					rules.Check("data subject id is known", func(env *rules.Env) bool {
						return env.Context != nil && env.Context.Compliance != nil &&
							env.Context.Compliance.DataSubjectID != ""
					})).
					WithKind(rules.KindCompliance).
					Optional().
					WithMessage("record is processed without a data subject id").
					WithRecommendation("link personal data to a data subject so rights requests can be honoured"),
			},
			Rights: []string{"access", "rectification", "erasure", "restriction", "portability", "objection"},
		},
		{
			Name:          SOX,
			Description:   "Sarbanes-Oxley Act",
			Jurisdictions: []string{"US"},
			Extend: func(cc *validation.ComplianceContext) bool {
				return cc.PurposeMentions("financial")
			},
			Checks: CheckRetention,
			Rules: []rules.Rule{
				rules.New("sox-change-attribution", "Financial changes are attributed to a user",
					rules.MustExpression(`!(operation in ["create", "update", "save", "delete"]) || userId != ""`)).
					WithKind(rules.KindCompliance).
					WithSeverity(validation.SeverityHigh).
					WithMessage("changes to financial records must be attributed to a user").
					WithRecommendation("supply a user id with every write"),
			},
		},
		{
			Name:          PCIDSS,
			Description:   "Payment Card Industry Data Security Standard",
			Jurisdictions: []string{GlobalJurisdiction},
			Checks:        CheckCardData,
		},
		{
			Name:          CCPA,
			Description:   "California Consumer Privacy Act",
			Jurisdictions: []string{"US-CA"},
			Checks:        CheckOptOut | CheckRetention,
			Rights:        []string{"know", "delete", "correct", "opt_out", "non_discrimination"},
		},
		{
			Name:          HIPAA,
			Description:   "Health Insurance Portability and Accountability Act",
			Jurisdictions: []string{"US"},
			Gate: func(cc *validation.ComplianceContext) bool {
				return cc.PurposeMentions("health") || cc.PurposeMentions("medical")
			},
			Checks: CheckRetention,
			Rules: []rules.Rule{
				rules.New("hipaa-minimum-necessary", "Only necessary identifiers are processed",
					rules.Check("no social security number", func(env *rules.Env) bool {
						return !rules.IsPresent(env.Record["ssn"])
					})).
					WithKind(rules.KindCompliance).
					WithField("ssn").
					Optional().
					WithMessage("health records should not carry social security numbers").
					WithRecommendation("use a health plan member id instead"),
			},
			Rights: []string{"access", "amendment", "accounting_of_disclosures"},
		},
	}
}
