package ir

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxCallerLength bounds caller identities in bytes after normalisation.
const MaxCallerLength = 256

// ErrInvalidCaller is returned for empty, oversized, or control-character
// caller identities.
var ErrInvalidCaller = errors.New("invalid caller identity")

// Caller identifies a participant. Two callers are the same participant
// exactly when their normalised forms are byte-equal.
type Caller string

// NormalizeCaller trims surrounding whitespace and applies Unicode NFC so that
// composed and decomposed spellings of the same name map to one caller.
func NormalizeCaller(raw string) (Caller, error) {
	s := norm.NFC.String(strings.TrimSpace(raw))
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidCaller)
	}
	if len(s) > MaxCallerLength {
		return "", fmt.Errorf("%w: longer than %d bytes", ErrInvalidCaller, MaxCallerLength)
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: contains control character %U", ErrInvalidCaller, r)
		}
	}
	return Caller(s), nil
}

// MustCaller is like NormalizeCaller but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustCaller(raw string) Caller {
	c, err := NormalizeCaller(raw)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Caller) String() string { return string(c) }
