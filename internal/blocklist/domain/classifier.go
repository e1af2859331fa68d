package domain

import (
	"fmt"
	"regexp"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// ErrUnknownDialect is returned by ParseDialect for an unrecognised name.
var ErrUnknownDialect = errors.Base("unsupported dialect")

// hostsPrefix matches a hosts-file style line: an IPv4 address followed by whitespace.
var hostsPrefix = regexp.MustCompile(`^[0-9]+\.[0-9]+\.[0-9]+\.[0-9]+\s+`)

// IsCommentOrBlank reports whether a line carries no blocking rule.
// After trimming, a line is a comment when it is empty, starts with '!', '#'
// or "//", or is a section header of the form ":name:".
func IsCommentOrBlank(line string) bool {
	s := strings.TrimSpace(line)
	switch {
	case s == "":
		return true
	case strings.HasPrefix(s, "!"), strings.HasPrefix(s, "#"), strings.HasPrefix(s, "//"):
		return true
	case len(s) >= 2 && strings.HasPrefix(s, ":") && strings.HasSuffix(s, ":"):
		return true
	}
	return false
}

// ToPiHole converts an AdGuard rule ("||ads.example.com^$third-party") to a
// bare PiHole domain ("ads.example.com"). The second return is false when the
// line does not yield a domain.
func ToPiHole(line string) (string, bool) {
	s := strings.TrimSpace(line)
	if s == "" || strings.HasPrefix(s, "!") {
		return "", false
	}

	s = strings.TrimPrefix(s, "||")
	s = strings.TrimSuffix(s, "^")
	if i := strings.Index(s, "^$"); i >= 0 {
		s = s[:i]
	}

	if !startsAlphaNumeric(s) || !strings.Contains(s, ".") {
		return "", false
	}
	return s, true
}

// ToAdGuard converts a PiHole entry, either a bare domain or a hosts line
// ("0.0.0.0 ads.example.com"), to an AdGuard rule ("||ads.example.com^").
// Lines already in "||...^" form are returned unchanged.
func ToAdGuard(line string) (string, bool) {
	s := strings.TrimSpace(line)
	if s == "" || strings.HasPrefix(s, "#") || strings.HasPrefix(s, "!") || strings.HasPrefix(s, "//") {
		return "", false
	}

	if hostsPrefix.MatchString(s) {
		fields := strings.Fields(s)
		s = fields[len(fields)-1]
	} else if strings.Contains(s, " ") {
		return "", false
	}

	if strings.HasPrefix(s, "||") && strings.HasSuffix(s, "^") {
		return s, true
	}

	if !startsAlphaNumeric(s) || !strings.Contains(s, ".") || !isDomainChars(s) {
		return "", false
	}
	return "||" + s + "^", true
}

func startsAlphaNumeric(s string) bool {
	return s != "" && isASCIIAlphaNumeric(s[0])
}

func isASCIIAlphaNumeric(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// isDomainChars reports whether s consists only of letters, digits, '.', '-' and '_'.
func isDomainChars(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isASCIIAlphaNumeric(c) || c == '.' || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

// Dialect names one of the two supported blocklist syntaxes.
//
// pihole  - bare domains or hosts-file lines
// adguard - "||domain^" patterns with optional modifiers
type Dialect uint8

const (
	// DialectPiHole is the bare-domain / hosts-file syntax.
	DialectPiHole Dialect = iota
	// DialectAdGuard is the "||domain^" pattern syntax.
	DialectAdGuard
)

// String returns a stable string representation of the dialect.
func (d Dialect) String() string {
	switch d {
	case DialectPiHole:
		return "pihole"
	case DialectAdGuard:
		return "adguard"
	default:
		return fmt.Sprintf("Dialect(%d)", d)
	}
}

// ParseDialect converts a string into a Dialect.
// Accepts: "pihole", "adguard" (case-insensitive).
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pihole":
		return DialectPiHole, nil
	case "adguard":
		return DialectAdGuard, nil
	default:
		return 0, errors.Errorf("%w: %q", ErrUnknownDialect, s)
	}
}

// ConverterFor returns the line converter that produces the target dialect.
func ConverterFor(target Dialect) func(string) (string, bool) {
	if target == DialectAdGuard {
		return ToAdGuard
	}
	return ToPiHole
}
