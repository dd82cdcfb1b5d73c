package envelope

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

const (
	// ReservedIndexWidth is the number of digits reserved for the index and
	// last index fields when computing the chunk budget.
	ReservedIndexWidth = 3

	// worst case size of a single escaped rune inside a JSON string (\uXXXX).
	maxEscapedRune = 6
)

var (
	// ErrMalformedPayload is returned when concatenated chunks do not form a valid payload.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrBudgetTooSmall is returned when the transport limit leaves no room for a chunk.
	ErrBudgetTooSmall = errors.New("transport message size too small for envelope")
	// ErrPayloadTooLarge is returned when a value needs more than MaxFragments fragments.
	ErrPayloadTooLarge = errors.New("payload needs too many fragments")
)

type payload struct {
	V any `json:"v"`
}

// Overhead returns the serialized size of an envelope for topic and replyTo
// with an empty chunk and index fields occupying width digits.
func Overhead(topic, replyTo string, width int) int {
	if width < 1 {
		width = 1
	}
	placeholder, _ := strconv.ParseUint(strings.Repeat("9", width), 10, 64)
	raw, err := Marshal(Envelope{
		Topic:     topic,
		ReplyTo:   replyTo,
		Index:     uint(placeholder),
		LastIndex: uint(placeholder),
	})
	if err != nil {
		// strings and unsigned ints always marshal
		panic(err)
	}
	return len(raw)
}

// ChunkBudget returns the number of bytes available to the serialized chunk of
// an envelope for topic and replyTo when the transport accepts at most maxSize bytes.
// The result is negative when the envelope does not fit at all.
func ChunkBudget(topic, replyTo string, maxSize int) int {
	return maxSize - Overhead(topic, replyTo, ReservedIndexWidth)
}

// Encode serializes value and splits it into envelopes that each marshal to
// at most maxSize bytes. At least one envelope is always returned.
func Encode(topic, replyTo string, value any, maxSize int) ([]Envelope, error) {
	data, err := json.Marshal(payload{V: value})
	if err != nil {
		return nil, fmt.Errorf("serialize payload for %q: %w", topic, err)
	}

	width := ReservedIndexWidth
	var chunks []string
	for {
		budget := maxSize - Overhead(topic, replyTo, width)
		chunks, err = split(string(data), budget)
		if err != nil {
			return nil, fmt.Errorf("%w: topic %q, limit %d", err, topic, maxSize)
		}
		if len(chunks) > MaxFragments {
			return nil, fmt.Errorf("%w: topic %q needs %d fragments at limit %d", ErrPayloadTooLarge, topic, len(chunks), maxSize)
		}
		needed := digits(len(chunks) - 1)
		if needed <= width {
			break
		}
		width = needed
	}

	last := uint(len(chunks) - 1)
	envelopes := make([]Envelope, len(chunks))
	for i, chunk := range chunks {
		envelopes[i] = Envelope{
			Topic:     topic,
			ReplyTo:   replyTo,
			Chunk:     chunk,
			Index:     uint(i),
			LastIndex: last,
		}
	}
	return envelopes, nil
}

// Decode joins chunks in order and returns the raw JSON value they carry.
func Decode(chunks []string) (json.RawMessage, error) {
	joined := strings.Join(chunks, "")
	if !gjson.Valid(joined) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedPayload)
	}
	root := gjson.Parse(joined)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected object", ErrMalformedPayload)
	}
	v := root.Get("v")
	if !v.Exists() {
		return nil, fmt.Errorf("%w: missing value", ErrMalformedPayload)
	}
	return json.RawMessage(v.Raw), nil
}

// split cuts s at rune boundaries into pieces whose escaped size fits budget.
func split(s string, budget int) ([]string, error) {
	if s == "" {
		return []string{""}, nil
	}
	var (
		chunks []string
		start  int
		used   int
	)
	for i, r := range s {
		c := escapedSize(r)
		if c > budget {
			return nil, ErrBudgetTooSmall
		}
		if used+c > budget {
			chunks = append(chunks, s[start:i])
			start = i
			used = 0
		}
		used += c
	}
	return append(chunks, s[start:]), nil
}

func escapedSize(r rune) int {
	switch {
	case r == '"' || r == '\\':
		return 2
	case r < 0x20, r == '<', r == '>', r == '&', r == '\u2028', r == '\u2029', r == utf8.RuneError:
		return maxEscapedRune
	default:
		return utf8.RuneLen(r)
	}
}

func digits(n int) int {
	if n <= 0 {
		return 1
	}
	return len(strconv.Itoa(n))
}
