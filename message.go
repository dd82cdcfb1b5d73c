package signalbus

import (
	"context"

	"github.com/casualjim/signalbus/internal/correlator"
	"github.com/casualjim/signalbus/internal/registry"
	"github.com/go-openapi/strfmt"
	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// Message is a fully reassembled message delivered to subscribers and to
// waiting requests.
type Message struct {
	Topic      string          `json:"topic"`
	ReplyTo    string          `json:"reply_to,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt strfmt.DateTime `json:"received_at"`
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// Get looks up a value in the payload using a gjson path.
func (m Message) Get(path string) gjson.Result {
	return gjson.GetBytes(m.Payload, path)
}

// IsRequest reports whether the sender is waiting for a reply.
func (m Message) IsRequest() bool {
	return m.ReplyTo != ""
}

func (m Message) String() string {
	return string(m.Payload)
}

// Handler receives messages published on a subscribed topic.
type Handler = registry.Handler[Message]

// HandlerFunc adapts a function to a Handler. Function handlers can't be
// compared, so subscribing the same function twice registers it twice.
type HandlerFunc func(context.Context, Message) error

func (f HandlerFunc) OnMessage(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Future resolves with the reply to a request.
type Future = correlator.Future[Message]
