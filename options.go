package signalbus

import (
	"log/slog"
	"time"

	"github.com/casualjim/signalbus/transport"
	"github.com/fogfish/opts"
)

const (
	DefaultNamespace = "dz"
	DefaultSignal    = "signal"
	// DefaultTimeout applies to both reassembly and requests: 100 ticks at 20 ticks per second.
	DefaultTimeout = 5 * time.Second
)

var (
	// WithNamespace sets the namespace the bus listens on.
	//
	// Example:
	//  signalbus.New(ctx, tr, signalbus.WithNamespace("dz"))
	WithNamespace = opts.ForName[Bus, string]("namespace")

	// WithSignal sets the signal name; together with the namespace it forms
	// the channel id "namespace:signal" all fragments travel on.
	WithSignal = opts.ForName[Bus, string]("signal")

	// WithMaxMessageSize limits the size of a single serialized fragment.
	// It defaults to, and may not exceed, the transport's limit.
	WithMaxMessageSize = opts.ForName[Bus, int]("maxMessageSize")

	// WithReassemblyTimeout sets how long an incomplete message is kept.
	WithReassemblyTimeout = opts.ForName[Bus, time.Duration]("reassemblyTimeout")

	// WithRequestTimeout sets the default time a request waits for its reply.
	WithRequestTimeout = opts.ForName[Bus, time.Duration]("requestTimeout")

	// WithSource sets the peer class inbound messages must come from.
	WithSource = opts.ForName[Bus, transport.Source]("source")

	// WithLogger sets the logger; slog.Default is used otherwise.
	WithLogger = opts.ForName[Bus, *slog.Logger]("logger")
)
