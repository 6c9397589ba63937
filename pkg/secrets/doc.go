// Package secrets resolves ${secret:name} references in configuration.
//
// Values come from providers tried in order: environment variables
// (RECORDGUARD_SECRET_<NAME>) and a directory holding one file per secret.
// The field encryption key and API keys are the usual references:
//
//	security:
//	  encryption_key: ${secret:field-key}
//	server:
//	  auth:
//	    keys:
//	      - key: ${secret:ingest-api-key}
//	        user_id: ingest
//
// Secret files must be mode 0600 or 0400. A watched directory drops cached
// values when files change, so rotated keys are read on the next lookup.
package secrets
