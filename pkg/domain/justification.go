package domain

import (
	"strings"
	"unicode/utf8"

	dErrors "vigil/pkg/domain-errors"
)

// MinJustificationLength is the shortest accepted override justification,
// counted in characters after trimming.
const MinJustificationLength = 20

// NormalizeJustification trims s and enforces the minimum length. An empty
// justification and a short one are both CodeValidation errors with
// distinct messages.
func NormalizeJustification(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "override justification required")
	}
	if utf8.RuneCountInString(s) < MinJustificationLength {
		return "", dErrors.New(dErrors.CodeValidation, "override justification too short")
	}
	return s, nil
}
