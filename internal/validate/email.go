// Package validate holds the pure contact-signal validators: email syntax
// checks and Instagram handle extraction. No network access.
package validate

import (
	"regexp"
	"strings"
)

// emailScanRe is the permissive pattern used to pull email-shaped strings out
// of free text. Matches are then tightened by IsValidEmail.
var emailScanRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

// basicShapeRe enforces the local@domain.tld shape with no whitespace and no
// stray @.
var basicShapeRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// localPartRe is the conservative character class allowed before the @.
var localPartRe = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+$")

// IsValidEmail performs a syntactic check on an email address. It accepts the
// local@domain.tld shape with length in [5,254], rejects consecutive dots and
// dots adjacent to the @, restricts the local part to a conservative character
// class, and requires the last domain label to be at least two characters.
func IsValidEmail(email string) bool {
	if email == "" {
		return false
	}
	if !basicShapeRe.MatchString(email) {
		return false
	}
	if len(email) < 5 || len(email) > 254 {
		return false
	}
	parts := strings.Split(email, ".")
	if len(parts) < 2 || len(parts[len(parts)-1]) < 2 {
		return false
	}
	if strings.Contains(email, "..") || strings.Contains(email, "@.") || strings.Contains(email, ".@") {
		return false
	}
	local := email[:strings.Index(email, "@")]
	return localPartRe.MatchString(local)
}

// ExtractEmail scans free text for email-shaped strings and returns the first
// one that passes IsValidEmail, or "" when none qualifies.
func ExtractEmail(text string) string {
	for _, m := range emailScanRe.FindAllString(text, -1) {
		if IsValidEmail(m) {
			return m
		}
	}
	return ""
}
