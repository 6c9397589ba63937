package sanitizer

import "strings"

// MaskEmail keeps the first and last character of the local part and the
// domain: "john@example.com" becomes "j***n@example.com".
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return MaskGeneric(email)
	}
	local, domain := email[:at], email[at+1:]
	if len(local) <= 2 {
		return local[:1] + "***@" + domain
	}
	return local[:1] + "***" + local[len(local)-1:] + "@" + domain
}

// MaskCard replaces every digit but the last four with asterisks and drops
// separators.
func MaskCard(card string) string {
	d := digitsOf(card)
	if len(d) <= 4 {
		return strings.Repeat("*", len(d))
	}
	return strings.Repeat("*", len(d)-4) + d[len(d)-4:]
}

// MaskSSN keeps the last four digits.
func MaskSSN(ssn string) string {
	d := digitsOf(ssn)
	if len(d) < 4 {
		return "***-**-****"
	}
	return "***-**-" + d[len(d)-4:]
}

// MaskPhone keeps the last four digits.
func MaskPhone(phone string) string {
	d := digitsOf(phone)
	if len(d) <= 4 {
		return strings.Repeat("*", len(d))
	}
	return strings.Repeat("*", len(d)-4) + d[len(d)-4:]
}

// MaskGeneric keeps the first two and last two characters.
func MaskGeneric(v string) string {
	r := []rune(v)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return string(r[:2]) + strings.Repeat("*", len(r)-4) + string(r[len(r)-2:])
}
