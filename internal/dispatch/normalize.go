// Package dispatch reconciles the SIP provider's trunk and dispatch-rule
// configuration so that each phone number routes to exactly one agent.
// The provider API is the system of record: every operation re-reads live
// state, acts, and keeps no local copy.
package dispatch

import "strings"

// nanpNumberLen is the national significant number length in the North
// American Numbering Plan.
const nanpNumberLen = 10

// NormalizeNumber canonicalizes a phone number to E.164 form: strip every
// character except digits and a leading "+", translate the international
// "00" prefix to "+", take a bare ten-digit number as a national NANP
// number under country code 1, and prepend "+" otherwise. So
// "555-123-0000" yields "+15551230000". Beyond the NANP default, length
// and country-code validation is deliberately not performed; an invalid
// number passes through normalized and fails later at the provider.
func NormalizeNumber(input string) string {
	var b strings.Builder
	b.Grow(len(input) + 2)
	for i, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	s := b.String()

	switch {
	case strings.HasPrefix(s, "+"):
		return s
	case strings.HasPrefix(s, "00"):
		return "+" + s[2:]
	case len(s) == nanpNumberLen:
		return "+1" + s
	default:
		return "+" + s
	}
}
