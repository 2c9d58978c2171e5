package domain

import (
	"regexp"
	"strings"
)

// emailRe accepts local-part "@" domain-with-dot. Deliberately syntactic:
// no DNS, no mailbox probe. The dispatcher uses this as a cheap pre-send
// filter; anything that passes may still bounce at the provider.
var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidEmail reports whether addr is a syntactically plausible address.
// Empty and whitespace-only strings are rejected. Surrounding whitespace
// is not tolerated; callers normalize before validating.
func ValidEmail(addr string) bool {
	if strings.TrimSpace(addr) == "" {
		return false
	}
	return emailRe.MatchString(addr)
}

// EmailDomain returns the lowercased domain part of an address, or ""
// if the address has no "@".
func EmailDomain(addr string) string {
	parts := strings.Split(addr, "@")
	if len(parts) == 2 {
		return strings.ToLower(parts[1])
	}
	return ""
}
