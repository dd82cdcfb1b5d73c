package signalbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/casualjim/signalbus/envelope"
	"github.com/casualjim/signalbus/internal/correlator"
	"github.com/casualjim/signalbus/internal/reassembly"
	"github.com/casualjim/signalbus/internal/registry"
	"github.com/casualjim/signalbus/pkg/slogx"
	"github.com/casualjim/signalbus/transport"
	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
)

// Bus publishes values on topics over a size-limited transport, delivers
// reassembled messages to subscribers and correlates request replies.
//
// Thread Safety:
// All methods are safe for concurrent use. Handlers run off the transport's
// delivery goroutine: messages of one topic are handled one at a time in
// arrival order, different topics concurrently. A handler may publish, reply
// and wait on a Request to another topic.
type Bus struct {
	transport         transport.Transport
	namespace         string
	signal            string
	channelID         string
	source            transport.Source
	maxMessageSize    int
	reassemblyTimeout time.Duration
	requestTimeout    time.Duration
	logger            *slog.Logger

	reassembler *reassembly.Reassembler
	registry    *registry.Registry[Message]
	correlator  *correlator.Correlator[Message]
	listener    transport.Listener
}

// New creates a bus on tr and starts listening on its namespace. The bus
// stops listening when ctx is done or Close is called.
func New(ctx context.Context, tr transport.Transport, options ...opts.Option[Bus]) (*Bus, error) {
	if tr == nil {
		return nil, errors.New("transport is required")
	}

	b := &Bus{
		transport:         tr,
		namespace:         DefaultNamespace,
		signal:            DefaultSignal,
		source:            transport.SourceServer,
		reassemblyTimeout: DefaultTimeout,
		requestTimeout:    DefaultTimeout,
	}
	if err := opts.Apply(b, options); err != nil {
		return nil, err
	}
	if err := b.validate(); err != nil {
		return nil, err
	}

	b.logger = slogx.Component(b.logger, "signalbus").With(slog.String("channel", b.channelID))

	var err error
	b.reassembler, err = reassembly.New(
		reassembly.WithTimeout(b.reassemblyTimeout),
		reassembly.WithLogger(b.logger),
	)
	if err != nil {
		return nil, err
	}
	b.registry = registry.New[Message](b.logger)
	b.correlator = correlator.New[Message]()

	b.listener, err = tr.Listen(ctx, b.namespace, b.receive)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", b.namespace, err)
	}
	return b, nil
}

func (b *Bus) validate() error {
	var err error
	b.channelID = transport.ChannelID(b.namespace, b.signal)
	if verr := transport.ValidateChannelID(b.channelID); verr != nil {
		err = errors.Join(err, verr)
	}

	limit := b.transport.MaxMessageSize()
	switch {
	case b.maxMessageSize == 0:
		b.maxMessageSize = limit
	case b.maxMessageSize < 0:
		err = errors.Join(err, fmt.Errorf("max message size must be positive, got %d", b.maxMessageSize))
	case b.maxMessageSize > limit:
		err = errors.Join(err, fmt.Errorf("max message size %d exceeds the transport limit %d", b.maxMessageSize, limit))
	}
	if b.reassemblyTimeout <= 0 {
		err = errors.Join(err, errors.New("reassembly timeout must be positive"))
	}
	if b.requestTimeout <= 0 {
		err = errors.Join(err, errors.New("request timeout must be positive"))
	}
	return err
}

// ChannelID returns the transport channel the bus sends and receives on.
func (b *Bus) ChannelID() string {
	return b.channelID
}

// Publish sends value on topic. Fragments are sent in order; when the
// transport rejects one, the remaining fragments are not sent and the ones
// already sent are not retracted.
func (b *Bus) Publish(ctx context.Context, topic string, value any) error {
	return b.publish(ctx, topic, "", value)
}

// Subscribe adds h to topic and reports whether it is the topic's first subscriber.
func (b *Bus) Subscribe(topic string, h Handler) bool {
	return b.registry.Subscribe(topic, h)
}

// SubscribeFunc is Subscribe for a plain function.
func (b *Bus) SubscribeFunc(topic string, fn func(context.Context, Message) error) bool {
	return b.registry.Subscribe(topic, HandlerFunc(fn))
}

// Unsubscribe removes every handler of topic and reports whether there were any.
func (b *Bus) Unsubscribe(topic string) bool {
	return b.registry.Unsubscribe(topic)
}

// Request publishes value on topic with a fresh reply topic and returns a
// future for the first message published on that reply topic. A timeout of
// zero or less uses the bus default. A handler of topic itself must not wait
// on the future: its own topic is busy until the handler returns.
func (b *Bus) Request(ctx context.Context, topic string, value any, timeout time.Duration) Future {
	if topic == "" {
		return correlator.Failed[Message](ErrEmptyTopic)
	}
	if timeout <= 0 {
		timeout = b.requestTimeout
	}
	replyTo, fut := b.correlator.Register(topic, timeout)
	if err := b.publish(ctx, topic, replyTo, value); err != nil {
		b.correlator.Reject(replyTo, err)
	}
	return fut
}

// Reply answers a request message by publishing value on its reply topic.
func (b *Bus) Reply(ctx context.Context, msg Message, value any) error {
	if !msg.IsRequest() {
		return fmt.Errorf("%w: topic %q", ErrNoReplyTo, msg.Topic)
	}
	return b.publish(ctx, msg.ReplyTo, "", value)
}

// Close stops receiving messages. Handlers already queued still run and
// pending requests still time out normally.
func (b *Bus) Close() {
	b.listener.Close()
}

func (b *Bus) publish(ctx context.Context, topic, replyTo string, value any) error {
	if topic == "" {
		return ErrEmptyTopic
	}
	fragments, err := envelope.Encode(topic, replyTo, value, b.maxMessageSize)
	if err != nil {
		return err
	}
	for _, f := range fragments {
		raw, err := envelope.Marshal(f)
		if err != nil {
			return err
		}
		if err := b.transport.Send(ctx, b.channelID, raw); err != nil {
			return fmt.Errorf("%w: fragment %d of %d on topic %q: %w",
				ErrTransportRejected, f.Index+1, f.Count(), topic, err)
		}
	}
	return nil
}

func (b *Bus) receive(ctx context.Context, in transport.Inbound) {
	if in.ChannelID != b.channelID || in.Source != b.source {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			b.logger.ErrorContext(ctx, "dropping fragment", slog.Any("panic", p))
		}
	}()

	env, err := envelope.Unmarshal(in.Body)
	if err != nil {
		b.logger.WarnContext(ctx, "dropping undecodable fragment", slogx.Error(err))
		return
	}

	done, err := b.reassembler.Accept(env)
	if err != nil {
		b.logger.WarnContext(ctx, "discarding transmission",
			slogx.Topic(env.Topic),
			slogx.Fragment(env.Index, env.LastIndex),
			slogx.Error(err),
		)
		return
	}
	if done == nil {
		return
	}

	msg := Message{
		Topic:      done.Topic,
		ReplyTo:    done.ReplyTo,
		Payload:    done.Payload,
		ReceivedAt: strfmt.DateTime(time.Now()),
	}
	if b.correlator.Resolve(done.Topic, msg) {
		return
	}
	b.registry.Post(ctx, done.Topic, msg)
}
