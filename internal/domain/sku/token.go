// Package sku centralizes parsing of the combined SKU-lot tokens used by the
// fulfillment provider. A raw token is either a bare base SKU ("4711") or a
// base SKU with a lot suffix appended after a hyphen ("4711-L23"). The lot
// suffix is an uppercase 'L' followed by digits. Base SKUs may themselves
// contain hyphens; only a trailing segment matching the lot pattern is
// treated as a lot.
package sku

import (
	"fmt"
	"strings"
)

// Token is the decomposed form of a raw provider SKU token.
type Token struct {
	// Raw is the token exactly as the provider understands it
	Raw string
	// BaseSKU is the product identifier with any lot suffix removed
	BaseSKU string
	// LotNumber is the lot suffix without the separator, e.g. "L23".
	// Empty when the token carries no lot.
	LotNumber string
}

// HasLot reports whether the token carries a lot suffix.
func (t Token) HasLot() bool {
	return t.LotNumber != ""
}

// String returns the raw token.
func (t Token) String() string {
	return t.Raw
}

// Parse decomposes a raw provider token into its base SKU and lot number.
// The input is trimmed of surrounding whitespace first. An empty or
// separator-only token is rejected.
func Parse(raw string) (Token, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Token{}, fmt.Errorf("sku: empty token")
	}

	idx := strings.LastIndex(trimmed, "-")
	if idx <= 0 || idx == len(trimmed)-1 {
		// No separator, leading separator, or trailing separator:
		// the whole token is the base SKU.
		if strings.HasPrefix(trimmed, "-") || strings.HasSuffix(trimmed, "-") {
			return Token{}, fmt.Errorf("sku: malformed token %q", raw)
		}
		return Token{Raw: trimmed, BaseSKU: trimmed}, nil
	}

	suffix := trimmed[idx+1:]
	if !isLotCode(suffix) {
		return Token{Raw: trimmed, BaseSKU: trimmed}, nil
	}

	return Token{
		Raw:       trimmed,
		BaseSKU:   trimmed[:idx],
		LotNumber: suffix,
	}, nil
}

// Compose builds the raw provider token for a base SKU and lot number.
// An empty lot number yields the bare base SKU.
func Compose(baseSKU, lotNumber string) string {
	if lotNumber == "" {
		return baseSKU
	}
	return baseSKU + "-" + lotNumber
}

// isLotCode reports whether s matches the lot suffix pattern: an uppercase
// 'L' followed by one or more digits.
func isLotCode(s string) bool {
	if len(s) < 2 || s[0] != 'L' {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
