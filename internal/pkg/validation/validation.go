package validation

import (
	"strings"

	"github.com/google/uuid"
)

// ParseID parses a path or body identifier. Empty and nil UUIDs are rejected.
func ParseID(raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// IsValidShares reports whether a requested share count is a positive whole number.
func IsValidShares(n int64) bool {
	return n > 0
}

// OneOf reports whether v is empty or one of the allowed values.
// Used for optional status filters on list endpoints.
func OneOf(v string, allowed ...string) bool {
	if v == "" {
		return true
	}
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
