/*
Package signalbus provides a topic based publish/subscribe and request/response
bus on top of transports that only carry small, size-limited string messages
tagged with a channel id.

Payloads routinely exceed the transport limit, so the bus serializes every
value, cuts it into ordered fragments that each fit the limit, and reassembles
them on the receiving side before delivering the message to subscribers.

The package is built from a few small parts:

  - envelope: the wire record of one fragment and the codec that splits and joins payloads
  - reassembly: per-topic accumulation of fragments with timeout based eviction
  - registry: subscriber sets per topic and best-effort broadcast
  - correlator: pending requests keyed by their ephemeral reply topic
  - transport: the adapter contract plus in-process and NATS implementations

# Basic Usage

	tr := transport.NewLocal()
	bus, err := signalbus.New(ctx, tr, signalbus.WithNamespace("dz"))
	if err != nil {
		return err
	}
	defer bus.Close()

	bus.SubscribeFunc("greeting", func(ctx context.Context, msg signalbus.Message) error {
		var name string
		if err := msg.Decode(&name); err != nil {
			return err
		}
		slog.Info("hello", slog.String("name", name))
		return nil
	})

	if err := bus.Publish(ctx, "greeting", "steve"); err != nil {
		return err
	}

# Requests

A request publishes on a persistent topic and carries a freshly generated reply
topic. The responder answers by publishing on that reply topic, which is used
exactly once:

	bus.SubscribeFunc("weather", func(ctx context.Context, msg signalbus.Message) error {
		return bus.Reply(ctx, msg, map[string]string{"sky": "clear"})
	})

	reply, err := bus.Request(ctx, "weather", nil, 2*time.Second).Get()

A message completing on a reply topic that a request is waiting for resolves
that request and is not dispatched to subscribers.

# Limitations

Delivery is best effort. Only one transmission per topic is reassembled at a
time: interleaved transmissions on the same topic corrupt or starve each
other, and an incomplete transmission is dropped silently once its timeout
elapses. A message may span at most envelope.MaxFragments fragments.

Handlers of one topic run one message at a time, in arrival order, on a
goroutine of their own; handlers of different topics run concurrently. A
handler can call Request on another topic and wait for the reply.
*/
package signalbus
