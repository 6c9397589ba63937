package schema

import (
	"strings"

	"recordguard-hq/recordguard/pkg/rules"
	"recordguard-hq/recordguard/pkg/validation"
)

// CoreVersion is the version of the built-in schemas.
const CoreVersion = "1.0.0"

// Account types accepted by the core Account schema.
const (
	AccountTypeCustomer = 1
	AccountTypePartner  = 2
	AccountTypeVendor   = 3
	AccountTypeInternal = 4
)

// CoreSchemas returns fresh copies of the built-in schemas.
func CoreSchemas() []*EntitySchema {
	return []*EntitySchema{accountSchema(), contactSchema()}
}

func accountSchema() *EntitySchema {
	return New("Account", CoreVersion).
		Describe("Customer, partner or vendor organisation").
		String("id", ReadOnly()).
		String("accountName", Required(), MaxLength(255)).
		Integer("accountType", Required(), Enum(AccountTypeCustomer, AccountTypePartner, AccountTypeVendor, AccountTypeInternal)).
		String("status", Enum("active", "inactive", "prospect")).
		String("email", Format("email"), PII()).
		String("phone", PII(), MaxLength(32)).
		String("website", Format("uri")).
		Number("annualRevenue", Min(0)).
		Integer("numberOfEmployees", Min(0)).
		String("industry", MaxLength(128)).
		Object("billingAddress").
		Timestamp("createdAt", ReadOnly()).
		Timestamp("modifiedAt", ReadOnly()).
		AllowAdditionalFields().
		BusinessRule(
			rules.New("account-vendor-revenue", "Vendor accounts declare revenue",
				rules.MustExpression(`accountType != 3 || present(annualRevenue)`)).
				WithField("annualRevenue").
				Optional().
				WithPriority(rules.PriorityLow).
				WithMessage("vendor accounts should declare annual revenue").
				WithRecommendation("set annualRevenue for vendor accounts"),
			rules.New("account-name-not-placeholder", "Account name is not a placeholder",
				rules.Check("accountName is not a placeholder", func(env *rules.Env) bool {
					name, _ := env.Record["accountName"].(string)
					switch strings.ToLower(strings.TrimSpace(name)) {
					case "test", "n/a", "tbd", "unknown":
						return false
					}
					return true
				})).
				WithField("accountName").
				WithPriority(rules.PriorityHigh).
				WithSeverity(validation.SeverityMedium).
				WithMessage("accountName must not be a placeholder value"),
		).
		Relationship(Relationship{Name: "contacts", Target: "Contact", Cardinality: "one-to-many", Field: "accountId"}).
		Tags("core", "crm").
		MustBuild()
}

func contactSchema() *EntitySchema {
	return New("Contact", CoreVersion).
		Describe("Person associated with an account").
		String("id", ReadOnly()).
		String("firstName", Required(), MaxLength(100)).
		String("lastName", Required(), MaxLength(100)).
		String("email", Format("email"), PII()).
		String("phone", PII(), MaxLength(32)).
		Timestamp("birthDate", PII()).
		String("ssn", PII(), Pattern(`^\d{3}-?\d{2}-?\d{4}$`)).
		String("accountId").
		String("title", MaxLength(128)).
		Timestamp("createdAt", ReadOnly()).
		Timestamp("modifiedAt", ReadOnly()).
		AllowAdditionalFields().
		BusinessRule(
			rules.New("contact-reachable", "Contact is reachable",
				rules.MustExpression(`present(email) || present(phone)`)).
				WithField("email").
				WithPriority(rules.PriorityMedium).
				WithMessage("contact must have an email address or a phone number").
				ForOperations(validation.OperationCreate, validation.OperationSave),
		).
		Relationship(Relationship{Name: "account", Target: "Account", Cardinality: "many-to-one", Field: "accountId"}).
		Tags("core", "crm", "personal-data").
		MustBuild()
}

// Permissive synthesizes a schema for an unregistered entity type: an
// optional identifier and any other fields.
func Permissive(entityType, version string) *EntitySchema {
	if version == "" {
		version = GeneratedVersion
	}
	return &EntitySchema{
		EntityType:       entityType,
		Version:          version,
		Fields:           []Field{{Name: "id", Kind: KindAny}},
		AdditionalFields: true,
		Generated:        true,
		Metadata:         Metadata{Description: "generated permissive schema", Tags: []string{"generated"}},
	}
}

// GeneratedVersion is the version assigned to synthesized schemas.
const GeneratedVersion = "0.0.0-generated"
