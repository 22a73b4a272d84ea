package criteria

import (
	"fmt"
	"strings"
)

// TextMatchMode selects how a like pattern is built from a search value.
type TextMatchMode string

const (
	Equals     TextMatchMode = "EQUALS"
	Contains   TextMatchMode = "CONTAINS"
	StartsWith TextMatchMode = "STARTS_WITH"
	EndsWith   TextMatchMode = "ENDS_WITH"
)

func ParseTextMatchMode(s string) (TextMatchMode, error) {
	mode := TextMatchMode(strings.ToUpper(strings.TrimSpace(s)))
	switch mode {
	case Equals, Contains, StartsWith, EndsWith:
		return mode, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMatchMode, s)
}

func (m TextMatchMode) Pattern(value string) (string, error) {
	switch m {
	case Equals:
		return value, nil
	case Contains:
		return "%" + value + "%", nil
	case StartsWith:
		return value + "%", nil
	case EndsWith:
		return "%" + value, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMatchMode, string(m))
}
