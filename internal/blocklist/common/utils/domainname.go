package utils

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// CanonicalDomain returns a domain in canonical form:
// - Lowercased
// - Trimmed of surrounding whitespace
// - No trailing dots
func CanonicalDomain(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	for strings.HasSuffix(name, ".") {
		name = strings.TrimSuffix(name, ".")
	}
	return name
}

// ApexDomain returns the registrable domain (eTLD+1) of name, falling back to
// the canonical name when the public suffix list cannot resolve it.
func ApexDomain(name string) string {
	name = CanonicalDomain(name)
	apex, err := publicsuffix.EffectiveTLDPlusOne(name)
	if err != nil {
		return name
	}
	return apex
}
