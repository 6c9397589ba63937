// Package auth provides API key authentication for the RecordGuard HTTP
// API.
//
// Each configured key maps to a Principal. The middleware stores the
// principal in the request context, and the validation handlers use it as
// the security context's user, roles and permissions, so a caller cannot
// claim more access than its key grants.
//
// Configuration:
//
//	server:
//	  auth:
//	    enabled: true
//	    keys:
//	      - key: "${secret:ops-api-key}"
//	        user_id: ops-bot
//	        roles: [admin]
//	        permissions: [account.create, account.update]
//	    sources:
//	      - type: header
//	        name: Authorization
//	        scheme: Bearer
package auth
