// Recordguard validates business records against entity schemas, security
// policies, compliance frameworks and data quality profiles.
//
// Usage:
//
//	# Validate records from a file
//	recordguard validate --file accounts.json --entity-type Account --user u1
//
//	# Validate NDJSON from stdin and print CSV
//	cat contacts.ndjson | recordguard validate -t Contact -u u1 -o csv
//
//	# Quality report and field profile for a data set
//	recordguard report quality --file accounts.json --entity-type Account
//	recordguard profile --file accounts.json --entity-type Account
//
//	# Check schema files before deploying them
//	recordguard schemas lint --dir schemas/
//
//	# Serve the HTTP API
//	recordguard serve --config /etc/recordguard/config.yaml
package main

import "os"

func main() {
	os.Exit(Execute())
}
