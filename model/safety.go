package model

import (
	"strconv"
	"strings"
)

// Safety levels as stored by the server.
const (
	SafetyPublic   = 1
	SafetyFriendly = 2
	SafetyPrivate  = 3
)

var safetyNames = map[int]string{
	SafetyPublic:   "public",
	SafetyFriendly: "friendly",
	SafetyPrivate:  "private",
}

// SafetyLevelName maps a numeric level (as decoded from JSON or given
// as text) to its symbolic name.
func SafetyLevelName(v any) (string, bool) {
	var n int
	switch x := v.(type) {
	case int:
		n = x
	case int64:
		n = int(x)
	case float64:
		n = int(x)
	case string:
		var err error
		if n, err = strconv.Atoi(strings.TrimSpace(x)); err != nil {
			return "", false
		}
	default:
		return "", false
	}
	name, ok := safetyNames[n]
	return name, ok
}

// SafetyLevelNumber maps a symbolic or numeric level to the server's
// number. Anything unrecognised is private.
func SafetyLevelNumber(v any) int {
	switch x := v.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		return int(x)
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		switch s {
		case "public":
			return SafetyPublic
		case "friendly":
			return SafetyFriendly
		}
	}
	return SafetyPrivate
}
