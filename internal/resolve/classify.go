// Package resolve turns a computation graph into an ordered list of calls with
// classified, deterministically ordered arguments.
package resolve

import (
	"errors"
	"strconv"
	"strings"
)

// TokenKind classifies an argument token.
type TokenKind string

const (
	NumericLiteral TokenKind = "NUMERIC_LITERAL"
	Identifier     TokenKind = "IDENTIFIER"
)

// Classify reports whether token is a numeric literal or an identifier.
//
// The numeric grammar is a decimal float with optional sign and exponent,
// or inf/infinity/nan in any case. Surrounding whitespace is ignored and a
// single underscore may separate two digits ("1_000"). Hexadecimal floats
// ("0x1p4") are identifiers. Values that overflow float64 ("1e400") are
// still numeric. Everything else is an Identifier, whether or not it names
// a binding. The token itself is rendered unchanged.
func Classify(token string) TokenKind {
	t := strings.TrimSpace(token)
	if hasHexPrefix(t) {
		return Identifier
	}
	if strings.Contains(t, "_") {
		if !underscoresBetweenDigits(t) {
			return Identifier
		}
		t = strings.ReplaceAll(t, "_", "")
	}
	if _, err := strconv.ParseFloat(t, 64); err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return NumericLiteral
		}
		return Identifier
	}
	return NumericLiteral
}

func hasHexPrefix(t string) bool {
	t = strings.TrimLeft(t, "+-")
	return len(t) >= 2 && t[0] == '0' && (t[1] == 'x' || t[1] == 'X')
}

func underscoresBetweenDigits(t string) bool {
	for i := 0; i < len(t); i++ {
		if t[i] != '_' {
			continue
		}
		if i == 0 || i == len(t)-1 || !isDigit(t[i-1]) || !isDigit(t[i+1]) {
			return false
		}
	}
	return true
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }
