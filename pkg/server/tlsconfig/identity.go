package tlsconfig

import (
	"crypto/x509"
	"net/http"
)

// ClientIdentity returns the identity of the verified client certificate
// on r, or "" when there is none.
func ClientIdentity(r *http.Request, source string) string {
	if r.TLS == nil || len(r.TLS.VerifiedChains) == 0 || len(r.TLS.VerifiedChains[0]) == 0 {
		return ""
	}
	return identity(r.TLS.VerifiedChains[0][0], source)
}

func identity(cert *x509.Certificate, source string) string {
	switch source {
	case "subject.CN", "":
		return cert.Subject.CommonName
	case "subject.OU":
		if len(cert.Subject.OrganizationalUnit) > 0 {
			return cert.Subject.OrganizationalUnit[0]
		}
	case "subject.O":
		if len(cert.Subject.Organization) > 0 {
			return cert.Subject.Organization[0]
		}
	case "SAN":
		if len(cert.DNSNames) > 0 {
			return cert.DNSNames[0]
		}
	}
	return ""
}
