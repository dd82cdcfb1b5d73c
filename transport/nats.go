package transport

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/casualjim/signalbus/pkg/slogx"
	"github.com/casualjim/signalbus/pkg/uuidx"
	"github.com/fogfish/opts"
	"github.com/nats-io/nats.go"
)

// HeaderSource carries the source kind of a message sent over NATS.
const HeaderSource = "Signal-Source"

var _ Transport = (*NATSTransport)(nil)

// NATSTransport carries messages over NATS core subjects. A channel id
// "namespace:signal" is published on the subject "namespace.signal" and a
// namespace listener subscribes to "namespace.>".
type NATSTransport struct {
	client *nats.Conn
	cfg    Config
	logger *slog.Logger
}

// NATS creates a transport on top of an established connection.
func NATS(client *nats.Conn, options ...opts.Option[Config]) *NATSTransport {
	return &NATSTransport{
		client: client,
		cfg:    newConfig(options),
		logger: slogx.Component(nil, "transport.nats"),
	}
}

// MaxMessageSize returns the configured limit, capped by the server's max payload.
func (t *NATSTransport) MaxMessageSize() int {
	limit := t.cfg.maxMessageSize
	if server := int(t.client.MaxPayload()); server > 0 && server < limit {
		return server
	}
	return limit
}

func (t *NATSTransport) Send(ctx context.Context, channelID, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateChannelID(channelID); err != nil {
		return err
	}
	if err := checkSize(body, t.MaxMessageSize()); err != nil {
		return err
	}
	if t.client.IsClosed() {
		return ErrClosed
	}

	msg := nats.NewMsg(subjectFor(channelID))
	msg.Header.Set(HeaderSource, string(t.cfg.source))
	msg.Data = []byte(body)
	return t.client.PublishMsg(msg)
}

func (t *NATSTransport) Listen(ctx context.Context, namespace string, recv Receiver) (Listener, error) {
	if recv == nil {
		return nil, fmt.Errorf("receiver is required")
	}
	if err := ValidateNamespace(namespace); err != nil {
		return nil, err
	}

	nsub, err := t.client.Subscribe(namespace+".>", func(msg *nats.Msg) {
		recv(ctx, Inbound{
			ChannelID: channelFor(msg.Subject),
			Body:      string(msg.Data),
			Source:    Source(msg.Header.Get(HeaderSource)),
		})
	})
	if err != nil {
		return nil, err
	}

	ln := &natsListener{
		id:     uuidx.NewString(),
		sub:    nsub,
		logger: t.logger,
	}
	ln.stop = context.AfterFunc(ctx, ln.Close)
	return ln, nil
}

type natsListener struct {
	id     string
	sub    *nats.Subscription
	stop   func() bool
	logger *slog.Logger
}

func (n *natsListener) ID() string {
	return n.id
}

func (n *natsListener) Close() {
	if n.stop != nil {
		n.stop()
	}
	if !n.sub.IsValid() {
		return
	}
	if err := n.sub.Unsubscribe(); err != nil {
		n.logger.Error("failed to unsubscribe", slogx.Error(err), slog.String("listener", n.id))
	}
}

func subjectFor(channelID string) string {
	return strings.Replace(channelID, ":", ".", 1)
}

func channelFor(subject string) string {
	return strings.Replace(subject, ".", ":", 1)
}
