package signalbus

import (
	"context"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage(t *testing.T) {
	msg := Message{
		Topic:   "weather",
		ReplyTo: "4f0c8e7d",
		Payload: json.RawMessage(`{"city":"ghent","temps":[11,14]}`),
	}

	assert.True(t, msg.IsRequest())
	assert.Equal(t, "ghent", msg.Get("city").String())
	assert.EqualValues(t, 14, msg.Get("temps.1").Int())
	assert.False(t, msg.Get("missing").Exists())

	var decoded struct {
		City  string `json:"city"`
		Temps []int  `json:"temps"`
	}
	require.NoError(t, msg.Decode(&decoded))
	assert.Equal(t, "ghent", decoded.City)
	assert.Equal(t, []int{11, 14}, decoded.Temps)

	assert.False(t, Message{Topic: "chat"}.IsRequest())
	assert.Equal(t, `{"city":"ghent","temps":[11,14]}`, msg.String())
}

func TestHandlerFunc(t *testing.T) {
	var got Message
	var h Handler = HandlerFunc(func(_ context.Context, m Message) error {
		got = m
		return nil
	})
	require.NoError(t, h.OnMessage(context.Background(), Message{Topic: "chat"}))
	assert.Equal(t, "chat", got.Topic)
}
