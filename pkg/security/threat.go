package security

import (
	"encoding/json"
	"fmt"
	"html"
	"slices"
	"strings"
	"unicode"

	"github.com/mssola/useragent"

	"recordguard-hq/recordguard/pkg/sanitizer"
	"recordguard-hq/recordguard/pkg/validation"
)

// ThreatKind classifies a threat finding.
type ThreatKind string

const (
	ThreatInjection           ThreatKind = "injection"
	ThreatXSS                 ThreatKind = "xss"
	ThreatSensitiveExposure   ThreatKind = "sensitive_data_exposure"
	ThreatPrivilegeEscalation ThreatKind = "privilege_escalation"
	ThreatOversizedPayload    ThreatKind = "oversized_payload"
	ThreatSpecialCharacters   ThreatKind = "abnormal_special_characters"
	ThreatAutomatedClient     ThreatKind = "automated_client"
)

// ThreatFinding is one threat signal.
type ThreatFinding struct {
	Kind           ThreatKind
	Field          string
	Severity       validation.Severity
	Confidence     float64
	Description    string
	Recommendation string
}

// ThreatAnalysis aggregates the threat findings for one record.
type ThreatAnalysis struct {
	Findings []ThreatFinding

	// Risk is the highest finding severity, empty when nothing was found.
	Risk validation.Severity

	// Recommendations are the distinct recommendations of all findings.
	Recommendations []string
}

// privilegeFieldHints mark fields that grant authority.
var privilegeFieldHints = []string{"role", "permission", "privilege", "isadmin", "superuser"}

// AnalyzeThreat scans the record and context for threat signals.
func (v *Validator) AnalyzeThreat(record validation.Record, vctx *validation.Context) ThreatAnalysis {
	p := v.policy(vctx.EntityType)
	return v.analyze(record, vctx, designatedFields(p, v.schema(vctx.EntityType)))
}

func (v *Validator) analyze(record validation.Record, vctx *validation.Context, designated []string) ThreatAnalysis {
	var a ThreatAnalysis
	add := func(f ThreatFinding) {
		a.Findings = append(a.Findings, f)
		a.Risk = validation.MaxSeverity(a.Risk, f.Severity)
		if f.Recommendation != "" && !slices.Contains(a.Recommendations, f.Recommendation) {
			a.Recommendations = append(a.Recommendations, f.Recommendation)
		}
	}

	for _, t := range sanitizer.DetectThreats(record) {
		kind := ThreatInjection
		if t.Type == sanitizer.ThreatXSS {
			kind = ThreatXSS
		}
		add(ThreatFinding{
			Kind:           kind,
			Field:          t.Field,
			Severity:       t.Severity,
			Confidence:     t.Confidence,
			Description:    fmt.Sprintf("%s pattern %q", t.Type, t.Match),
			Recommendation: t.Type.Recommendation(),
		})
	}

	for field, value := range record {
		s, ok := value.(string)
		if !ok {
			continue
		}
		if !slices.Contains(designated, field) && !IsEncrypted(s) {
			for _, m := range sanitizer.ClassifyPII(field, s) {
				sev := validation.SeverityLow
				switch m.Type {
				case sanitizer.PIISSN, sanitizer.PIICreditCard:
					sev = validation.SeverityHigh
				case sanitizer.PIIEmail:
				default:
					continue
				}
				add(ThreatFinding{
					Kind:           ThreatSensitiveExposure,
					Field:          field,
					Severity:       sev,
					Confidence:     m.Confidence,
					Description:    fmt.Sprintf("%s value %s in a field not designated for personal data", m.Type, m.Masked),
					Recommendation: "store personal data only in designated fields",
				})
			}
		}
		if len(s) >= v.config.SpecialCharMinLength {
			if ratio := specialRatio(s); ratio > v.config.SpecialCharRatio {
				add(ThreatFinding{
					Kind:           ThreatSpecialCharacters,
					Field:          field,
					Severity:       validation.SeverityLow,
					Confidence:     0.5,
					Description:    fmt.Sprintf("%.0f%% special characters", ratio*100),
					Recommendation: "review unusually encoded input",
				})
			}
		}
	}

	if vctx.Operation.Writes() && !v.isAdmin(vctx.Security) {
		for field := range record {
			if privilegeField(field) {
				add(ThreatFinding{
					Kind:           ThreatPrivilegeEscalation,
					Field:          field,
					Severity:       validation.SeverityHigh,
					Confidence:     0.8,
					Description:    "write to an authority field without admin permission",
					Recommendation: "route role and permission changes through an administrative workflow",
				})
			}
		}
	}

	if b, err := json.Marshal(record); err == nil && len(b) > v.config.MaxPayloadBytes {
		add(ThreatFinding{
			Kind:           ThreatOversizedPayload,
			Severity:       validation.SeverityMedium,
			Confidence:     0.6,
			Description:    fmt.Sprintf("payload of %d bytes exceeds %d", len(b), v.config.MaxPayloadBytes),
			Recommendation: "reject or page oversized payloads",
		})
	}

	if sc := vctx.Security; sc != nil && sc.UserAgent != "" {
		ua := useragent.New(sc.UserAgent)
		name, _ := ua.Browser()
		switch {
		case ua.Bot():
			add(ThreatFinding{
				Kind:           ThreatAutomatedClient,
				Severity:       validation.SeverityMedium,
				Confidence:     0.7,
				Description:    "request from automated client " + name,
				Recommendation: "verify automated clients use service credentials",
			})
		case name == "" || ua.OS() == "":
			add(ThreatFinding{
				Kind:           ThreatAutomatedClient,
				Severity:       validation.SeverityLow,
				Confidence:     0.4,
				Description:    "unrecognized user agent",
				Recommendation: "verify automated clients use service credentials",
			})
		}
	}

	slices.SortStableFunc(a.Findings, func(x, y ThreatFinding) int {
		return strings.Compare(x.Field, y.Field)
	})
	return a
}

func (v *Validator) isAdmin(sc *validation.SecurityContext) bool {
	if sc == nil {
		return false
	}
	for _, p := range v.config.AdminPermissions {
		if sc.HasPermission(p) || sc.HasRole(p) {
			return true
		}
	}
	return false
}

func privilegeField(field string) bool {
	f := strings.ToLower(field)
	for _, h := range privilegeFieldHints {
		if strings.Contains(f, h) {
			return true
		}
	}
	return false
}

// specialRatio measures the decoded text so entity-escaped output from the
// sanitizer is not penalized.
func specialRatio(s string) float64 {
	var special, total int
	for _, r := range html.UnescapeString(s) {
		total++
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			special++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(special) / float64(total)
}
