package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordguard-hq/recordguard/pkg/rules"
	"recordguard-hq/recordguard/pkg/schema"
	"recordguard-hq/recordguard/pkg/validation"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestValidator(t *testing.T, config *Config, opts ...Option) *Validator {
	t.Helper()
	consents := NewConsentRegistry()
	consents.now = func() time.Time { return testNow }
	opts = append([]Option{
		WithClock(func() time.Time { return testNow }),
		WithConsents(consents),
	}, opts...)
	v, err := NewValidator(config, nil, opts...)
	require.NoError(t, err)
	return v
}

func call(cc *validation.ComplianceContext) *validation.Context {
	return &validation.Context{
		Operation:  validation.OperationUpdate,
		EntityType: "Contact",
		EntityID:   "c-1",
		UserID:     "u1",
		Compliance: cc,
	}
}

func daysAgo(d int) string {
	return testNow.Add(-time.Duration(d) * 24 * time.Hour).Format(time.RFC3339)
}

func errorCodes(r *validation.Result) []string {
	var out []string
	for _, e := range r.Errors {
		out = append(out, e.Code)
	}
	return out
}

func severityOf(t *testing.T, r *validation.Result, code string) validation.Severity {
	t.Helper()
	for _, e := range r.Errors {
		if e.Code == code {
			return e.Severity
		}
	}
	t.Fatalf("no %s error in %v", code, errorCodes(r))
	return ""
}

func TestApplicable(t *testing.T) {
	tests := []struct {
		name string
		cc   *validation.ComplianceContext
		want []string
	}{
		{"no context", nil, []string{PCIDSS}},
		{"eu member", &validation.ComplianceContext{Jurisdiction: "DE"}, []string{GDPR, PCIDSS}},
		{"eu lower case", &validation.ComplianceContext{Jurisdiction: "fr"}, []string{GDPR, PCIDSS}},
		{"us", &validation.ComplianceContext{Jurisdiction: "US"}, []string{SOX, PCIDSS}},
		{"california", &validation.ComplianceContext{Jurisdiction: "US-CA"}, []string{SOX, PCIDSS, CCPA}},
		{
			"us health",
			&validation.ComplianceContext{Jurisdiction: "US", ProcessingPurposes: []string{"Health care operations"}},
			[]string{SOX, PCIDSS, HIPAA},
		},
		{
			"health outside us",
			&validation.ComplianceContext{Jurisdiction: "JP", ProcessingPurposes: []string{"health"}},
			[]string{PCIDSS},
		},
		{
			"personal data purpose",
			&validation.ComplianceContext{Jurisdiction: "JP", ProcessingPurposes: []string{"personal data analytics"}},
			[]string{GDPR, PCIDSS},
		},
		{
			"financial purpose",
			&validation.ComplianceContext{Jurisdiction: "JP", ProcessingPurposes: []string{"financial reporting"}},
			[]string{SOX, PCIDSS},
		},
	}

	v := newTestValidator(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Applicable(tt.cc))
		})
	}
}

func TestValidate_Retention(t *testing.T) {
	tests := []struct {
		name     string
		age      int
		wantCode string
		wantSev  validation.Severity
		wantWarn bool
	}{
		{name: "exceeded", age: 400, wantCode: validation.CodeRetentionExceeded, wantSev: validation.SeverityHigh},
		{name: "far exceeded", age: 600, wantCode: validation.CodeRetentionExceeded, wantSev: validation.SeverityCritical},
		{name: "approaching", age: 330, wantWarn: true},
		{name: "fresh", age: 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestValidator(t, nil)
			cc := &validation.ComplianceContext{
				Jurisdiction:    "DE",
				LawfulBasis:     "contract",
				DataSubjectID:   "ds-1",
				RetentionPolicy: &validation.RetentionPolicy{PeriodDays: 365, DataCategory: "customer"},
			}

			result, err := v.Validate(context.Background(), validation.Record{"createdAt": daysAgo(tt.age)}, call(cc))
			require.NoError(t, err)

			if tt.wantCode != "" {
				require.Len(t, result.Errors, 1)
				assert.Equal(t, tt.wantSev, severityOf(t, result, tt.wantCode))
				assert.Equal(t, validation.CategoryCompliance, result.Errors[0].Category)
				return
			}
			assert.True(t, result.Valid(), "errors: %v", errorCodes(result))
			assert.Equal(t, tt.wantWarn, result.HasWarningCode(validation.CodeRetentionApproaching))
		})
	}
}

func TestValidate_RetentionFromCategory(t *testing.T) {
	v := newTestValidator(t, nil)
	cc := &validation.ComplianceContext{
		Jurisdiction:    "DE",
		LawfulBasis:     "contract",
		DataSubjectID:   "ds-1",
		RetentionPolicy: &validation.RetentionPolicy{DataCategory: "marketing"},
	}

	result, err := v.Validate(context.Background(), validation.Record{"created_at": daysAgo(800)}, call(cc))
	require.NoError(t, err)
	assert.True(t, result.HasErrorCode(validation.CodeRetentionExceeded))
}

func TestValidate_Consent(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *ConsentRegistry)
		cc       validation.ComplianceContext
		wantCode string
		wantSev  validation.Severity
		wantWarn string
	}{
		{
			name: "withdrawn in registry",
			setup: func(r *ConsentRegistry) {
				_, _ = r.Grant("ds-1", []string{"marketing"}, 0)
				_ = r.Withdraw("ds-1")
			},
			cc:       validation.ComplianceContext{ProcessingPurposes: []string{"marketing"}},
			wantCode: validation.CodeConsentWithdrawn,
			wantSev:  validation.SeverityCritical,
		},
		{
			name:     "withdrawn by caller despite other basis",
			cc:       validation.ComplianceContext{LawfulBasis: "contract", ConsentStatus: validation.ConsentWithdrawn},
			wantCode: validation.CodeConsentWithdrawn,
			wantSev:  validation.SeverityCritical,
		},
		{
			name: "expired",
			setup: func(r *ConsentRegistry) {
				r.now = func() time.Time { return testNow.Add(-2 * time.Hour) }
				_, _ = r.Grant("ds-1", []string{"marketing"}, time.Hour)
			},
			cc:       validation.ComplianceContext{ProcessingPurposes: []string{"marketing"}},
			wantCode: validation.CodeConsentExpired,
			wantSev:  validation.SeverityHigh,
		},
		{
			name: "purpose not covered",
			setup: func(r *ConsentRegistry) {
				_, _ = r.Grant("ds-1", []string{"newsletter"}, 0)
			},
			cc:       validation.ComplianceContext{ProcessingPurposes: []string{"Newsletter", "profiling"}},
			wantCode: validation.CodeConsentPurposeMismatch,
			wantSev:  validation.SeverityHigh,
		},
		{
			name: "granted",
			setup: func(r *ConsentRegistry) {
				_, _ = r.Grant("ds-1", []string{"newsletter"}, 0)
			},
			cc: validation.ComplianceContext{ProcessingPurposes: []string{"newsletter"}},
		},
		{
			name: "declared by caller",
			cc:   validation.ComplianceContext{ConsentStatus: validation.ConsentGiven},
		},
		{
			name:     "pending",
			cc:       validation.ComplianceContext{ConsentStatus: validation.ConsentPending},
			wantWarn: validation.CodeConsentMissing,
		},
		{
			name:     "consent basis without consent",
			cc:       validation.ComplianceContext{LawfulBasis: "consent"},
			wantCode: validation.CodeConsentMissing,
			wantSev:  validation.SeverityHigh,
		},
		{
			name:     "no basis",
			cc:       validation.ComplianceContext{},
			wantCode: validation.CodeLawfulBasisMissing,
			wantSev:  validation.SeverityHigh,
		},
		{
			name:     "unknown basis",
			cc:       validation.ComplianceContext{LawfulBasis: "because"},
			wantCode: validation.CodeLawfulBasisMissing,
			wantSev:  validation.SeverityHigh,
		},
		{
			name: "basis with spaces",
			cc:   validation.ComplianceContext{LawfulBasis: "Legitimate Interests"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestValidator(t, nil)
			if tt.setup != nil {
				tt.setup(v.Consents())
			}
			cc := tt.cc
			cc.Jurisdiction = "DE"
			cc.DataSubjectID = "ds-1"

			result, err := v.Validate(context.Background(), validation.Record{"firstName": "Ann"}, call(&cc))
			require.NoError(t, err)

			if tt.wantCode == "" {
				assert.True(t, result.Valid(), "errors: %v", errorCodes(result))
			} else {
				assert.Equal(t, []string{tt.wantCode}, errorCodes(result))
				assert.Equal(t, tt.wantSev, severityOf(t, result, tt.wantCode))
			}
			if tt.wantWarn != "" {
				assert.True(t, result.HasWarningCode(tt.wantWarn))
			}
		})
	}
}

func TestValidate_OptOut(t *testing.T) {
	v := newTestValidator(t, nil)

	cc := &validation.ComplianceContext{Jurisdiction: "US-CA", ConsentStatus: validation.ConsentWithdrawn}
	result, err := v.Validate(context.Background(), validation.Record{"firstName": "Ann"}, call(cc))
	require.NoError(t, err)
	assert.Equal(t, validation.SeverityCritical, severityOf(t, result, validation.CodeConsentWithdrawn))

	// Opt-out regimes do not require opt-in consent.
	cc = &validation.ComplianceContext{Jurisdiction: "US-CA"}
	result, err = v.Validate(context.Background(), validation.Record{"firstName": "Ann"}, call(cc))
	require.NoError(t, err)
	assert.True(t, result.Valid(), "errors: %v", errorCodes(result))
}

func TestValidate_CardData(t *testing.T) {
	v := newTestValidator(t, nil)
	record := validation.Record{
		"cardNumber":       "4111111111111111",
		"cvv":              "123",
		"creditCardMasked": "************1111",
		"card_token":       "tok_123",
		"pan":              "enc:AAAA",
		"name":             "Ann",
	}

	result, err := v.Validate(context.Background(), record, call(nil))
	require.NoError(t, err)
	require.Len(t, result.Errors, 2, "errors: %v", errorCodes(result))

	assert.Equal(t, "cardNumber", result.Errors[0].Field)
	assert.Equal(t, validation.SeverityHigh, result.Errors[0].Severity)
	assert.Equal(t, "cvv", result.Errors[1].Field)
	assert.Equal(t, validation.SeverityCritical, result.Errors[1].Severity)
	assert.Equal(t, []string{PCIDSS}, result.Errors[0].Context["frameworks"])
}

func TestCardField(t *testing.T) {
	tests := []struct {
		name       string
		card, auth bool
	}{
		{"cardNumber", true, false},
		{"credit_card_number", true, false},
		{"PAN", true, false},
		{"CVV2", true, true},
		{"security-code", true, true},
		{"company", false, false},
		{"panel", false, false},
		{"card_token", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card, auth := cardField(tt.name)
			assert.Equal(t, tt.card, card)
			assert.Equal(t, tt.auth, auth)
		})
	}
}

func TestValidate_FrameworkRules(t *testing.T) {
	v := newTestValidator(t, nil)

	vctx := &validation.Context{
		Operation:  validation.OperationCreate,
		EntityType: "Account",
		Compliance: &validation.ComplianceContext{Jurisdiction: "US"},
	}
	result, err := v.Validate(context.Background(), validation.Record{"accountName": "Acme"}, vctx)
	require.NoError(t, err)
	assert.Equal(t, []string{validation.CodeComplianceRuleFailed}, errorCodes(result))
	assert.Equal(t, 1, result.Metadata.Performance.RuleExecutions)

	vctx.UserID = "u1"
	result, err = v.Validate(context.Background(), validation.Record{"accountName": "Acme"}, vctx)
	require.NoError(t, err)
	assert.True(t, result.Valid())
}

func TestValidate_OptionalFrameworkRule(t *testing.T) {
	v := newTestValidator(t, nil)
	cc := &validation.ComplianceContext{
		Jurisdiction:       "US",
		ProcessingPurposes: []string{"medical billing"},
	}

	result, err := v.Validate(context.Background(), validation.Record{"ssn": "123-45-6789"}, call(cc))
	require.NoError(t, err)
	assert.True(t, result.Valid(), "errors: %v", errorCodes(result))
	assert.True(t, result.HasWarningCode(validation.CodeComplianceRuleFailed))
}

func TestValidate_SchemaComplianceRules(t *testing.T) {
	reg, err := schema.NewRegistry(schema.DefaultRegistryConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, reg.Register(schema.New("Lead", "1.0.0").
		String("email").
		String("source").
		ComplianceRule(rules.New("lead-source-recorded", "Lead source is recorded",
			rules.MustExpression(`present(source)`)).
			WithField("source").
			WithSeverity(validation.SeverityHigh).
			WithMessage("the origin of personal data must be recorded")).
		MustBuild()))

	v := newTestValidator(t, nil, WithSchemas(reg))
	vctx := &validation.Context{Operation: validation.OperationCreate, EntityType: "Lead", UserID: "u1"}

	result, err := v.Validate(context.Background(), validation.Record{"email": "a@example.com"}, vctx)
	require.NoError(t, err)
	assert.Equal(t, []string{validation.CodeComplianceRuleFailed}, errorCodes(result))
	assert.Equal(t, "source", result.Errors[0].Field)
}

func TestValidate_RequireContext(t *testing.T) {
	config := DefaultConfig()
	config.RequireContext = true
	v := newTestValidator(t, config)

	result, err := v.Validate(context.Background(), validation.Record{"name": "Ann"}, call(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{validation.CodeMissingComplianceContext}, errorCodes(result))

	_, err = v.Validate(context.Background(), validation.Record{}, nil)
	assert.ErrorIs(t, err, validation.ErrInvalidContext)
}

func TestValidate_PanicBecomesViolation(t *testing.T) {
	v := newTestValidator(t, nil)
	require.NoError(t, v.AddFramework(Framework{
		Name:          "Broken",
		Jurisdictions: []string{GlobalJurisdiction},
		Gate:          func(*validation.ComplianceContext) bool { panic("gate failed") },
	}))

	cc := &validation.ComplianceContext{Jurisdiction: "DE"}
	result, err := v.Validate(context.Background(), validation.Record{}, call(cc))
	assert.Nil(t, result)

	var cv *validation.ComplianceViolationError
	require.ErrorAs(t, err, &cv)
	assert.Equal(t, "internal", cv.Kind)
	assert.Equal(t, "DE", cv.Jurisdiction)
	assert.Equal(t, "c-1", cv.EntityID)
}

func TestAddFramework(t *testing.T) {
	v := newTestValidator(t, nil)

	assert.ErrorIs(t, v.AddFramework(Framework{Name: GDPR, Jurisdictions: []string{"EU"}}), ErrFrameworkExists)
	assert.ErrorIs(t, v.AddFramework(Framework{Jurisdictions: []string{"EU"}}), ErrInvalidFramework)
	assert.ErrorIs(t, v.AddFramework(Framework{Name: "Nowhere"}), ErrInvalidFramework)
	assert.ErrorIs(t, v.AddFramework(Framework{
		Name:          "BadRule",
		Jurisdictions: []string{"BR"},
		Rules:         []rules.Rule{{ID: "no-condition"}},
	}), ErrInvalidFramework)

	require.NoError(t, v.AddFramework(Framework{Name: "LGPD", Jurisdictions: []string{"BR"}, Checks: CheckLawfulBasis}))
	assert.Equal(t, []string{PCIDSS, "LGPD"}, v.Applicable(&validation.ComplianceContext{Jurisdiction: "BR"}))
}

func TestConfig(t *testing.T) {
	config := DefaultConfig()
	config.Frameworks = []string{PCIDSS}
	v := newTestValidator(t, config)
	assert.Equal(t, []string{PCIDSS}, v.Frameworks())

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"unknown framework", func(c *Config) { c.Frameworks = []string{"FERPA"} }},
		{"approaching ratio", func(c *Config) { c.ApproachingRatio = 1 }},
		{"severe ratio", func(c *Config) { c.SevereRatio = 1 }},
		{"retention", func(c *Config) { c.Retention["customer"] = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(c)
			_, err := NewValidator(c, nil)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestConsentRegistry(t *testing.T) {
	r := NewConsentRegistry()
	r.now = func() time.Time { return testNow }

	_, err := r.Grant("", nil, 0)
	assert.Error(t, err)
	assert.ErrorIs(t, r.Withdraw("nobody"), ErrConsentNotFound)

	c, err := r.Grant("ds-1", []string{"marketing"}, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, validation.ConsentGiven, c.Status)
	assert.Equal(t, testNow.Add(24*time.Hour), c.ExpiresAt)
	assert.False(t, c.Expired(testNow))
	assert.True(t, c.Expired(testNow.Add(24*time.Hour)))
	assert.True(t, c.Covers([]string{"MARKETING"}))
	assert.True(t, c.Covers(nil))
	assert.False(t, c.Covers([]string{"marketing", "profiling"}))

	require.NoError(t, r.Withdraw("ds-1"))
	got, ok := r.Get("ds-1")
	require.True(t, ok)
	assert.Equal(t, validation.ConsentWithdrawn, got.Status)
	assert.Equal(t, testNow, got.WithdrawnAt)

	// Granting again replaces the withdrawal.
	_, err = r.Grant("ds-1", []string{"marketing"}, 0)
	require.NoError(t, err)
	got, _ = r.Get("ds-1")
	assert.Equal(t, validation.ConsentGiven, got.Status)
	assert.Equal(t, 1, r.Len())
}

func TestGenerateReport(t *testing.T) {
	v := newTestValidator(t, nil)
	ctx := context.Background()

	report := v.GenerateReport("Contact", "DE")
	assert.Equal(t, StatusCompliant, report.Status)
	assert.Equal(t, 0, report.Evaluations)
	assert.Equal(t, []string{GDPR, PCIDSS}, report.Frameworks)

	ok := &validation.ComplianceContext{Jurisdiction: "DE", LawfulBasis: "contract", DataSubjectID: "ds-1"}
	_, err := v.Validate(ctx, validation.Record{"firstName": "Ann"}, call(ok))
	require.NoError(t, err)

	overdue := &validation.ComplianceContext{
		Jurisdiction:    "DE",
		LawfulBasis:     "contract",
		DataSubjectID:   "ds-2",
		RetentionPolicy: &validation.RetentionPolicy{PeriodDays: 365, DataCategory: "customer"},
	}
	_, err = v.Validate(ctx, validation.Record{"createdAt": daysAgo(400)}, call(overdue))
	require.NoError(t, err)

	report = v.GenerateReport("Contact", "DE")
	assert.Equal(t, StatusPartial, report.Status)
	assert.Equal(t, 2, report.Evaluations)
	require.Len(t, report.Violations, 1)
	vi := report.Violations[0]
	assert.Equal(t, validation.CodeRetentionExceeded, vi.Code)
	assert.Equal(t, testNow.Add(7*24*time.Hour), vi.DueBy)
	assert.Equal(t, "c-1", vi.EntityID)

	var customer RetentionStatus
	for _, s := range report.Retention {
		if s.Category == "customer" {
			customer = s
		}
	}
	assert.Equal(t, 1, customer.Exceeded)
	assert.Equal(t, "overdue", customer.Status)

	var rights []string
	for _, r := range report.Rights {
		rights = append(rights, r.Right)
		assert.Equal(t, []string{GDPR}, r.Frameworks)
	}
	assert.Contains(t, rights, "erasure")
	assert.Contains(t, rights, "portability")

	withdrawn := &validation.ComplianceContext{Jurisdiction: "DE", ConsentStatus: validation.ConsentWithdrawn}
	_, err = v.Validate(ctx, validation.Record{"firstName": "Ann"}, call(withdrawn))
	require.NoError(t, err)
	assert.Equal(t, StatusNonCompliant, v.GenerateReport("Contact", "DE").Status)

	// Other jurisdictions and entity types are not affected.
	assert.Equal(t, StatusCompliant, v.GenerateReport("Contact", "US").Status)
	assert.Equal(t, 0, v.GenerateReport("Account", "").Evaluations)
	assert.Len(t, v.AuditLog(), 3)
}
