package validation

// Machine-readable finding codes.
const (
	// Structural
	CodeRequiredFieldMissing = "REQUIRED_FIELD_MISSING"
	CodeInvalidType          = "INVALID_TYPE"
	CodeInvalidEnumValue     = "INVALID_ENUM_VALUE"
	CodeValueOutOfRange      = "VALUE_OUT_OF_RANGE"
	CodeStringTooShort       = "STRING_TOO_SHORT"
	CodeStringTooLong        = "STRING_TOO_LONG"
	CodePatternMismatch      = "PATTERN_MISMATCH"
	CodeInvalidFormat        = "INVALID_FORMAT"
	CodeUnknownField         = "UNKNOWN_FIELD"
	CodeReadOnlyField        = "READ_ONLY_FIELD"
	CodeSchemaViolation      = "SCHEMA_VIOLATION"

	// Rules
	CodeBusinessRuleFailed  = "BUSINESS_RULE_FAILED"
	CodeRuleEvaluationError = "RULE_EVALUATION_FAILED"

	// Sanitizer
	CodeSQLInjection    = "SQL_INJECTION_DETECTED"
	CodeXSS             = "XSS_DETECTED"
	CodeScriptInjection = "SCRIPT_INJECTION_DETECTED"
	CodePIIDetected     = "PII_DETECTED"
	CodeDataSanitized   = "DATA_SANITIZED"

	// Security
	CodeMissingSecurityContext = "MISSING_SECURITY_CONTEXT"
	CodeInvalidCredentials     = "INVALID_CREDENTIALS"
	CodeWeakCredentials        = "WEAK_CREDENTIALS"
	CodeAccessDenied           = "ACCESS_DENIED"
	CodeSecurityThreat         = "SECURITY_THREAT"
	CodeFieldAccessDenied      = "FIELD_ACCESS_DENIED"
	CodeEncryptionRequired     = "ENCRYPTION_REQUIRED"
	CodeEncryptionUnavailable  = "ENCRYPTION_UNAVAILABLE"
	CodeFieldEncrypted         = "FIELD_ENCRYPTED"
	CodeSuspiciousActivity     = "SUSPICIOUS_ACTIVITY"
	CodeSecurityRuleFailed     = "SECURITY_RULE_FAILED"

	// Compliance
	CodeMissingComplianceContext = "MISSING_COMPLIANCE_CONTEXT"
	CodeLawfulBasisMissing       = "LAWFUL_BASIS_MISSING"
	CodeConsentMissing           = "CONSENT_MISSING"
	CodeConsentWithdrawn         = "CONSENT_WITHDRAWN"
	CodeConsentExpired           = "CONSENT_EXPIRED"
	CodeConsentPurposeMismatch   = "CONSENT_PURPOSE_MISMATCH"
	CodeRetentionExceeded        = "RETENTION_PERIOD_EXCEEDED"
	CodeRetentionApproaching     = "RETENTION_PERIOD_APPROACHING"
	CodeCardDataUnencrypted      = "CARD_DATA_UNENCRYPTED"
	CodeComplianceRuleFailed     = "COMPLIANCE_RULE_FAILED"

	// Quality
	CodeQualityBelowThreshold = "QUALITY_BELOW_THRESHOLD"
	CodeQualityWarning        = "QUALITY_WARNING"

	// Engine
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodePerformanceWarning = "PERFORMANCE_WARNING"
)
