package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fogfish/opts"
)

// DefaultMaxMessageSize is the largest message a transport accepts unless
// configured otherwise.
const DefaultMaxMessageSize = 512

var (
	// ErrMessageTooLarge is returned when a message exceeds the transport limit.
	ErrMessageTooLarge = errors.New("message exceeds transport size limit")
	// ErrInvalidChannel is returned for malformed channel ids and namespaces.
	ErrInvalidChannel = errors.New("invalid channel id")
	// ErrClosed is returned when using a closed transport.
	ErrClosed = errors.New("transport closed")
)

// Source identifies the class of peer that sent a message.
type Source string

const (
	SourceServer   Source = "server"
	SourceEntity   Source = "entity"
	SourceBlock    Source = "block"
	SourceDialogue Source = "dialogue"
)

// Inbound is a message delivered by a transport.
type Inbound struct {
	ChannelID string
	Body      string
	Source    Source
}

// Receiver handles inbound messages. A transport calls it sequentially for a
// given listener, in the order messages arrived.
type Receiver func(context.Context, Inbound)

// Transport sends bounded-size tagged string messages and delivers inbound
// ones to listeners filtered by namespace.
type Transport interface {
	Send(ctx context.Context, channelID, body string) error
	Listen(ctx context.Context, namespace string, recv Receiver) (Listener, error)
	MaxMessageSize() int
}

// Listener is an active registration with a transport.
type Listener interface {
	ID() string
	Close()
}

// Config holds the settings shared by transport implementations.
type Config struct {
	maxMessageSize      int
	source              Source
	slowListenerTimeout time.Duration
}

var (
	// WithMaxMessageSize sets the largest message body the transport accepts.
	WithMaxMessageSize = opts.ForName[Config, int]("maxMessageSize")
	// WithSource sets the source kind stamped on outgoing messages.
	WithSource = opts.ForName[Config, Source]("source")
	// WithSlowListenerTimeout sets how long the local transport waits on a
	// full listener before dropping a message for it.
	WithSlowListenerTimeout = opts.ForName[Config, time.Duration]("slowListenerTimeout")
)

func newConfig(options []opts.Option[Config]) Config {
	cfg := Config{
		maxMessageSize:      DefaultMaxMessageSize,
		source:              SourceServer,
		slowListenerTimeout: defaultSlowListenerTimeout,
	}
	if err := opts.Apply(&cfg, options); err != nil {
		panic(err)
	}
	return cfg
}

// ChannelID joins a namespace and a signal name.
func ChannelID(namespace, signal string) string {
	return namespace + ":" + signal
}

// Namespace returns the namespace part of a channel id.
func Namespace(channelID string) string {
	ns, _, _ := strings.Cut(channelID, ":")
	return ns
}

// ValidateChannelID checks that id has the form namespace:signal and only
// uses characters every transport can carry.
func ValidateChannelID(id string) error {
	ns, signal, ok := strings.Cut(id, ":")
	if !ok {
		return fmt.Errorf("%w: %q must have the form namespace:signal", ErrInvalidChannel, id)
	}
	if err := validatePart(ns); err != nil {
		return fmt.Errorf("%w: namespace of %q: %w", ErrInvalidChannel, id, err)
	}
	if err := validatePart(signal); err != nil {
		return fmt.Errorf("%w: signal of %q: %w", ErrInvalidChannel, id, err)
	}
	return nil
}

// ValidateNamespace checks a namespace filter.
func ValidateNamespace(ns string) error {
	if err := validatePart(ns); err != nil {
		return fmt.Errorf("%w: namespace %q: %w", ErrInvalidChannel, ns, err)
	}
	return nil
}

func validatePart(s string) error {
	if s == "" {
		return errors.New("empty")
	}
	if strings.ContainsAny(s, ".*>: \t\r\n") {
		return errors.New("contains a reserved character")
	}
	return nil
}

func checkSize(body string, limit int) error {
	if len(body) > limit {
		return fmt.Errorf("%w: %d > %d bytes", ErrMessageTooLarge, len(body), limit)
	}
	return nil
}
