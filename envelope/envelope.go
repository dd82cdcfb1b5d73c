package envelope

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// MaxFragments is the largest number of fragments a message may span.
const MaxFragments = 1 << 16

// ErrMalformedEnvelope is returned when a raw transport message is not a valid envelope.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Envelope is one transport-sized fragment of a logical message.
// Index ranges over [0, LastIndex] and LastIndex is the same for every
// fragment of a message.
type Envelope struct {
	Topic     string `json:"id"`
	ReplyTo   string `json:"requesterId"`
	Chunk     string `json:"value"`
	Index     uint   `json:"i"`
	LastIndex uint   `json:"t"`
}

// Count returns the number of fragments of the message this envelope belongs to.
func (e Envelope) Count() int {
	return int(e.LastIndex) + 1
}

// Validate checks the fragment bounds: LastIndex below MaxFragments and
// Index within [0, LastIndex].
func (e Envelope) Validate() error {
	if e.LastIndex >= MaxFragments {
		return fmt.Errorf("%w: last index %d exceeds %d fragments", ErrMalformedEnvelope, e.LastIndex, MaxFragments)
	}
	if e.Index > e.LastIndex {
		return fmt.Errorf("%w: index %d beyond last index %d", ErrMalformedEnvelope, e.Index, e.LastIndex)
	}
	return nil
}

// Marshal renders the envelope in its wire form.
func Marshal(e Envelope) (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Unmarshal parses a wire message into an Envelope.
func Unmarshal(raw string) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	if e.Topic == "" {
		return Envelope{}, fmt.Errorf("%w: missing topic", ErrMalformedEnvelope)
	}
	if err := e.Validate(); err != nil {
		return Envelope{}, err
	}
	return e, nil
}
