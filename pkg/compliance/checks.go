package compliance

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"recordguard-hq/recordguard/pkg/rules"
	"recordguard-hq/recordguard/pkg/security"
	"recordguard-hq/recordguard/pkg/validation"
)

// Violation is a blocking compliance finding. Violations are kept in the
// compliance audit trail and aggregated by GenerateReport.
type Violation struct {
	Frameworks   []string            `json:"frameworks"`
	Code         string              `json:"code"`
	Field        string              `json:"field,omitempty"`
	Message      string              `json:"message"`
	Remediation  string              `json:"remediation,omitempty"`
	Severity     validation.Severity `json:"severity"`
	DataCategory string              `json:"data_category,omitempty"`
}

// finding is the outcome of one deep check. Non-blocking findings become
// warnings.
type finding struct {
	Violation
	warning bool
	context map[string]any
}

var lawfulBases = []string{
	"consent", "contract", "legal_obligation", "vital_interests", "public_task", "legitimate_interests",
}

func normalizeBasis(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// hasConsentInfo reports whether the call says anything about consent.
func (v *Validator) hasConsentInfo(cc *validation.ComplianceContext) bool {
	if cc.ConsentStatus != validation.ConsentUnknown {
		return true
	}
	if cc.DataSubjectID == "" {
		return false
	}
	_, ok := v.consents.Get(cc.DataSubjectID)
	return ok
}

func (v *Validator) checkLawfulBasis(cc *validation.ComplianceContext, frameworks []string) []finding {
	basis := normalizeBasis(cc.LawfulBasis)
	switch {
	case basis == "" && v.hasConsentInfo(cc):
		// Consent is the implied basis; checkConsent validates it.
		return nil
	case basis == "":
		return []finding{{Violation: Violation{
			Frameworks:  frameworks,
			Code:        validation.CodeLawfulBasisMissing,
			Message:     "no lawful basis for processing personal data",
			Remediation: "record the lawful basis, such as contract or consent, with the request",
			Severity:    validation.SeverityHigh,
		}}}
	case !slices.Contains(lawfulBases, basis):
		return []finding{{
			Violation: Violation{
				Frameworks:  frameworks,
				Code:        validation.CodeLawfulBasisMissing,
				Message:     fmt.Sprintf("unrecognized lawful basis %q", cc.LawfulBasis),
				Remediation: "use one of: " + strings.Join(lawfulBases, ", "),
				Severity:    validation.SeverityHigh,
			},
			context: map[string]any{"lawful_basis": cc.LawfulBasis},
		}}
	}
	return nil
}

// checkConsent validates consent against the registry and the call. With
// optIn false only a withdrawal is reported.
func (v *Validator) checkConsent(cc *validation.ComplianceContext, frameworks []string, optIn bool, now time.Time) []finding {
	var (
		c        Consent
		recorded bool
	)
	if cc.DataSubjectID != "" {
		c, recorded = v.consents.Get(cc.DataSubjectID)
	}

	if cc.ConsentStatus == validation.ConsentWithdrawn || (recorded && c.Status == validation.ConsentWithdrawn) {
		return []finding{{
			Violation: Violation{
				Frameworks:  frameworks,
				Code:        validation.CodeConsentWithdrawn,
				Message:     "data subject has withdrawn consent",
				Remediation: "stop processing and honour the withdrawal",
				Severity:    validation.SeverityCritical,
			},
			context: map[string]any{"data_subject_id": cc.DataSubjectID},
		}}
	}
	if !optIn {
		return nil
	}
	basis := normalizeBasis(cc.LawfulBasis)
	if basis != "" && basis != "consent" {
		return nil
	}
	if basis == "" && !recorded && cc.ConsentStatus == validation.ConsentUnknown {
		// Nothing relies on consent; checkLawfulBasis reports the gap.
		return nil
	}

	if recorded {
		switch {
		case c.Expired(now):
			return []finding{{
				Violation: Violation{
					Frameworks:  frameworks,
					Code:        validation.CodeConsentExpired,
					Message:     fmt.Sprintf("consent expired at %s", c.ExpiresAt.Format(time.RFC3339)),
					Remediation: "renew consent before processing",
					Severity:    validation.SeverityHigh,
				},
				context: map[string]any{"data_subject_id": cc.DataSubjectID},
			}}
		case !c.Covers(cc.ProcessingPurposes):
			var missing []string
			for _, p := range cc.ProcessingPurposes {
				if !c.Covers([]string{p}) {
					missing = append(missing, p)
				}
			}
			return []finding{{
				Violation: Violation{
					Frameworks:  frameworks,
					Code:        validation.CodeConsentPurposeMismatch,
					Message:     "consent does not cover purposes: " + strings.Join(missing, ", "),
					Remediation: "obtain consent for every processing purpose",
					Severity:    validation.SeverityHigh,
				},
				context: map[string]any{"data_subject_id": cc.DataSubjectID, "missing_purposes": missing},
			}}
		}
		return nil
	}

	switch cc.ConsentStatus {
	case validation.ConsentGiven:
		return nil
	case validation.ConsentPending:
		return []finding{{
			Violation: Violation{
				Frameworks:  frameworks,
				Code:        validation.CodeConsentMissing,
				Message:     "consent is pending",
				Remediation: "defer processing until consent is given",
				Severity:    validation.SeverityMedium,
			},
			warning: true,
		}}
	}
	return []finding{{Violation: Violation{
		Frameworks:  frameworks,
		Code:        validation.CodeConsentMissing,
		Message:     "processing relies on consent but none is recorded",
		Remediation: "record consent for the data subject",
		Severity:    validation.SeverityHigh,
	}}}
}

// retentionPeriod resolves the period in days and its data category.
func (v *Validator) retentionPeriod(cc *validation.ComplianceContext) (int, string) {
	rp := cc.RetentionPolicy
	if rp == nil {
		return 0, ""
	}
	if rp.PeriodDays > 0 {
		return rp.PeriodDays, rp.DataCategory
	}
	return v.config.Retention[rp.DataCategory], rp.DataCategory
}

func (v *Validator) checkRetention(record validation.Record, cc *validation.ComplianceContext, frameworks []string, now time.Time) []finding {
	period, category := v.retentionPeriod(cc)
	if period <= 0 {
		return nil
	}

	var (
		created time.Time
		field   string
	)
	for _, f := range v.config.TimestampFields {
		if t, ok := rules.AsTime(record[f]); ok {
			created, field = t, f
			break
		}
	}
	if field == "" {
		return nil
	}

	age := now.Sub(created).Hours() / 24
	ctx := map[string]any{"age_days": int(age), "period_days": period, "data_category": category}
	switch {
	case age > float64(period):
		sev := validation.SeverityHigh
		if age > float64(period)*v.config.SevereRatio {
			sev = validation.SeverityCritical
		}
		return []finding{{
			Violation: Violation{
				Frameworks:   frameworks,
				Code:         validation.CodeRetentionExceeded,
				Field:        field,
				Message:      fmt.Sprintf("record is %d days old, retention period is %d days", int(age), period),
				Remediation:  "delete or anonymize the record",
				Severity:     sev,
				DataCategory: category,
			},
			context: ctx,
		}}
	case age > float64(period)*v.config.ApproachingRatio:
		return []finding{{
			Violation: Violation{
				Frameworks:   frameworks,
				Code:         validation.CodeRetentionApproaching,
				Field:        field,
				Message:      fmt.Sprintf("record is %d days old, retention period of %d days is approaching", int(age), period),
				Remediation:  "schedule deletion or anonymization",
				Severity:     validation.SeverityLow,
				DataCategory: category,
			},
			warning: true,
			context: ctx,
		}}
	}
	return nil
}

// Normalized field names holding card data. Sensitive authentication data
// must never be stored in the clear.
var (
	cardNumberHints = []string{"cardnumber", "creditcard", "ccnumber", "primaryaccountnumber"}
	cardExactNames  = []string{"pan", "ccn"}
	cardAuthNames   = []string{"cvv", "cvv2", "cvc", "cvc2", "cid", "securitycode", "cardverificationcode", "cardverificationvalue"}
)

// cardField classifies a field name. It returns false for fields that do
// not hold card data, and whether the field holds authentication data.
func cardField(name string) (card, auth bool) {
	n := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(name))
	if slices.Contains(cardAuthNames, n) {
		return true, true
	}
	if slices.Contains(cardExactNames, n) {
		return true, false
	}
	for _, h := range cardNumberHints {
		if strings.Contains(n, h) {
			return true, false
		}
	}
	return false, false
}

// masked reports whether s shows at most four digits, such as
// "************1234".
func masked(s string) bool {
	if !strings.ContainsAny(s, "*xX•") {
		return false
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits <= 4
}

func (v *Validator) checkCardData(record validation.Record, frameworks []string) []finding {
	var out []finding
	for _, field := range slices.Sorted(maps.Keys(record)) {
		card, auth := cardField(field)
		if !card || !rules.IsPresent(record[field]) {
			continue
		}
		if s, ok := record[field].(string); ok && (security.IsEncrypted(s) || masked(s)) {
			continue
		}
		sev := validation.SeverityHigh
		msg := fmt.Sprintf("card data field %s is not encrypted", field)
		if auth {
			sev = validation.SeverityCritical
			msg = fmt.Sprintf("card verification data in %s must not be stored in the clear", field)
		}
		out = append(out, finding{Violation: Violation{
			Frameworks:  frameworks,
			Code:        validation.CodeCardDataUnencrypted,
			Field:       field,
			Message:     msg,
			Remediation: "encrypt or tokenize card data before storage",
			Severity:    sev,
		}})
	}
	return out
}
