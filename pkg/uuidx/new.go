package uuidx

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// New generates a new UUID using the version 7 format and returns it.
// It panics if the UUID generation fails.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString generates a new version 7 UUID in its canonical dashed form.
func NewString() string {
	return New().String()
}

// Compact returns a new random (version 4) UUID as 32 lowercase hex characters.
// Ephemeral reply topics travel inside every fragment, so they use this
// dash-free form to keep envelope overhead down.
func Compact() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
