package validation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestParseID(t *testing.T) {
	id := uuid.New()
	got, ok := ParseID(" " + id.String() + " ")
	assert.True(t, ok)
	assert.Equal(t, id, got)

	for _, raw := range []string{"", "abc", uuid.Nil.String()} {
		_, ok := ParseID(raw)
		assert.False(t, ok, raw)
	}
}

func TestIsValidShares(t *testing.T) {
	assert.True(t, IsValidShares(1))
	assert.False(t, IsValidShares(0))
	assert.False(t, IsValidShares(-3))
}

func TestOneOf(t *testing.T) {
	assert.True(t, OneOf("", "pending"))
	assert.True(t, OneOf("pending", "pending", "accepted"))
	assert.False(t, OneOf("sold", "pending", "accepted"))
}
