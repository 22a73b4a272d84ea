package models

import "strings"

// AccessLevel is ordered: a user holding a level is granted every lower one.
type AccessLevel int

const (
	AccessNone AccessLevel = iota
	AccessView
	AccessEdit
	AccessDevelop
	AccessAdmin
)

var accessLevelNames = []string{"none", "view", "edit", "develop", "admin"}

func (l AccessLevel) String() string {
	if l < AccessNone || int(l) >= len(accessLevelNames) {
		return "none"
	}
	return accessLevelNames[l]
}

func ParseAccessLevel(s string) AccessLevel {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range accessLevelNames {
		if name == s {
			return AccessLevel(i)
		}
	}
	return AccessNone
}

func (l AccessLevel) Allows(required AccessLevel) bool {
	return l >= required
}
