package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/signalbus/pkg/slogx"
	"github.com/casualjim/signalbus/pkg/uuidx"
	"github.com/fogfish/opts"
)

const defaultSlowListenerTimeout = 100 * time.Millisecond

var _ Transport = (*Local)(nil)

// Local is an in-process transport. Every listener gets its own buffered
// queue and goroutine so delivery order is preserved per listener.
type Local struct {
	cfg       Config
	listeners *haxmap.Map[string, *localListener]
	logger    *slog.Logger
}

// NewLocal creates an in-process transport.
func NewLocal(options ...opts.Option[Config]) *Local {
	return &Local{
		cfg:       newConfig(options),
		listeners: haxmap.New[string, *localListener](),
		logger:    slogx.Component(nil, "transport.local"),
	}
}

func (l *Local) MaxMessageSize() int {
	return l.cfg.maxMessageSize
}

// Send delivers body to every listener of the channel's namespace, stamped
// with the configured source.
func (l *Local) Send(ctx context.Context, channelID, body string) error {
	return l.SendAs(ctx, l.cfg.source, channelID, body)
}

// SendAs is like Send with an explicit source kind.
func (l *Local) SendAs(ctx context.Context, source Source, channelID, body string) error {
	if err := ValidateChannelID(channelID); err != nil {
		return err
	}
	if err := checkSize(body, l.cfg.maxMessageSize); err != nil {
		return err
	}

	msg := Inbound{ChannelID: channelID, Body: body, Source: source}
	ns := Namespace(channelID)

	var sendErr error
	l.listeners.ForEach(func(_ string, ln *localListener) bool {
		if ln == nil || ln.namespace != ns {
			return true
		}
		select {
		case <-ctx.Done():
			sendErr = ctx.Err()
			return false
		case <-ln.done:
		case ln.queue <- msg:
		case <-time.After(l.cfg.slowListenerTimeout):
			l.logger.WarnContext(ctx, "dropping message for slow listener",
				slog.String("listener", ln.id),
				slog.String("channel", channelID),
			)
		}
		return true
	})
	return sendErr
}

// Listen registers recv for messages whose channel id belongs to namespace.
// The listener stops when ctx is done or Close is called.
func (l *Local) Listen(ctx context.Context, namespace string, recv Receiver) (Listener, error) {
	if recv == nil {
		return nil, fmt.Errorf("receiver is required")
	}
	if err := ValidateNamespace(namespace); err != nil {
		return nil, err
	}

	id := uuidx.NewString()
	ln := &localListener{
		id:        id,
		namespace: namespace,
		queue:     make(chan Inbound, 64),
		done:      make(chan struct{}),
		onClose:   func() { l.listeners.Del(id) },
	}
	l.listeners.Set(id, ln)
	go ln.forward(ctx, recv)
	return ln, nil
}

type localListener struct {
	id        string
	namespace string
	queue     chan Inbound
	done      chan struct{}
	closeOnce sync.Once
	onClose   func()
}

func (ln *localListener) ID() string {
	return ln.id
}

func (ln *localListener) Close() {
	ln.closeOnce.Do(func() {
		ln.onClose()
		close(ln.done)
	})
}

func (ln *localListener) forward(ctx context.Context, recv Receiver) {
	defer ln.Close()
	for {
		select {
		case msg := <-ln.queue:
			recv(ctx, msg)
		case <-ln.done:
			return
		case <-ctx.Done():
			return
		}
	}
}
