package phone

import (
	"strings"
)

// InternationalPrefix is the marker re-added in front of the digits-only form.
const InternationalPrefix = "+"

// Candidates canonicalizes a raw caller identifier into ordered lookup candidates:
// the trimmed raw string, the digits-only form, and the digits re-prefixed with "+".
// Duplicates and empty forms are skipped. Blank input yields nil.
func Candidates(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	digits := Digits(trimmed)

	candidates := make([]string, 0, 3)
	for _, c := range []string{trimmed, digits, prefixed(digits)} {
		if c == "" || contains(candidates, c) {
			continue
		}
		candidates = append(candidates, c)
	}

	return candidates
}

// Digits strips everything except ASCII digits.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValidE164 checks if a phone number is in E.164 format
func IsValidE164(phone string) bool {
	if len(phone) < 3 || len(phone) > 16 {
		return false
	}
	if phone[0] != '+' {
		return false
	}
	for _, c := range phone[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func prefixed(digits string) string {
	if digits == "" {
		return ""
	}
	return InternationalPrefix + digits
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
