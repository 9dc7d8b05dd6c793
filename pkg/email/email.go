// Package email holds address validation and the normalization policy used to
// decide when two addresses are the same subscriber.
package email

import (
	"fmt"
	"net/mail"
	"strings"
)

// MaxLength is the longest address accepted (RFC 5321 path limit).
const MaxLength = 254

// CasePolicy controls how addresses are compared for uniqueness.
type CasePolicy string

const (
	// CaseLower folds the whole address to lower case.
	CaseLower CasePolicy = "lower"
	// CasePreserve keeps the address exactly as submitted.
	CasePreserve CasePolicy = "preserve"
)

// ParseCasePolicy maps a config value to a CasePolicy. Empty means CaseLower.
func ParseCasePolicy(raw string) (CasePolicy, error) {
	switch CasePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", CaseLower:
		return CaseLower, nil
	case CasePreserve:
		return CasePreserve, nil
	default:
		return "", fmt.Errorf("unknown email case policy %q", raw)
	}
}

// Normalize trims surrounding whitespace and applies the policy.
func (p CasePolicy) Normalize(addr string) string {
	addr = strings.TrimSpace(addr)
	if p == CasePreserve {
		return addr
	}
	return strings.ToLower(addr)
}

// Validate checks that addr is a single bare address such as "a@example.com".
// Display names ("Ann <a@example.com>") are rejected.
func Validate(addr string) error {
	if addr == "" {
		return fmt.Errorf("email is required")
	}
	if len(addr) > MaxLength {
		return fmt.Errorf("email must be at most %d characters", MaxLength)
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Name != "" || parsed.Address != addr {
		return fmt.Errorf("email %q is not a valid address", addr)
	}
	at := strings.LastIndexByte(addr, '@')
	if at <= 0 || at == len(addr)-1 {
		return fmt.Errorf("email %q is not a valid address", addr)
	}
	return nil
}
