/*
Package compliance is the regulatory stage of the validation pipeline.

A Validator holds a registry of frameworks. A framework applies to a call
when its jurisdictions contain the call's jurisdiction or "global"; some
frameworks also apply by processing purpose (GDPR for purposes mentioning
personal data, SOX for financial purposes) or are further gated by it
(HIPAA requires a health purpose).

Applicable frameworks select deep checks:

  - lawful basis for processing
  - consent: withdrawn, expired, purpose mismatch or missing
  - storage limitation against the record's creation time
  - encryption of card data fields

and add declarative rules evaluated the same way as schema business rules.
A withdrawn consent is always a critical error.

# Consent

Consent is kept in a ConsentRegistry keyed by data subject id:

	v.Consents().Grant("subject-42", []string{"marketing"}, 365*24*time.Hour)
	v.Consents().Withdraw("subject-42")

# Reports

Every call is recorded in the compliance audit trail. GenerateReport
aggregates the retained violations of an entity type with remediation
deadlines, the data-subject rights granted by the applicable frameworks and
the retention status per data category.
*/
package compliance
