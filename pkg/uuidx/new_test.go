package uuidx

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	id := New()
	assert.Equal(t, uuid.Version(7), id.Version(), "UUID should be version 7")
	assert.Equal(t, uuid.RFC4122, id.Variant(), "UUID should have RFC4122 variant")
	assert.NotEqual(t, id, New(), "Generated UUIDs should be unique")
}

func TestNewString(t *testing.T) {
	idStr := NewString()
	id, err := uuid.Parse(idStr)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.Regexp(t, "^[0-9a-f]{8}-[0-9a-f]{4}-7[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$", idStr)
}

func TestCompact(t *testing.T) {
	c := Compact()
	assert.Regexp(t, "^[0-9a-f]{32}$", c)

	id, err := uuid.Parse(c)
	require.NoError(t, err, "compact form should still parse as a UUID")
	assert.Equal(t, uuid.Version(4), id.Version())

	seen := make(map[string]struct{}, 100)
	for range 100 {
		seen[Compact()] = struct{}{}
	}
	assert.Len(t, seen, 100)
}
