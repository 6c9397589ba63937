/*
Package security is the security stage of the validation pipeline.

A Validator checks who is calling and what they are sending: credential
strength, operation permissions, authorization rules, threat signals in
the record, access to protected fields, field encryption and the security
rules of the entity's schema. Every call is written to an audit ring, and
repeated denials by one actor raise a SUSPICIOUS_ACTIVITY warning.

# Policies

Each entity type may carry a Policy:

	v, err := security.NewValidator(security.DefaultConfig(), logger,
		security.WithSchemas(registry),
	)
	if err != nil {
		return err
	}

	err = v.AddPolicy(security.Policy{
		EntityType:      "Contact",
		PIIFields:       []string{"email", "phone"},
		EncryptedFields: []string{"ssn"},
	})

Operations require both "<type>.<operation>" and "<operation>"
permissions, for example "contact.update" and "update". The "*"
permission grants everything.

# Field Encryption

When Config.EncryptionKey is set, plaintext values of encrypted fields are
encrypted on create, update and save. The result's SanitizedData holds the
encrypted copy; the input record is never modified. Values are sealed with
XChaCha20-Poly1305 under a key derived with Argon2id, and bound to the
entity type and field name:

	plain, err := v.Decrypt("Contact", "ssn", record["ssn"].(string))

Reads and deletes of records holding plaintext in an encrypted field fail
with ENCRYPTION_REQUIRED.
*/
package security
