package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/casualjim/signalbus"
	"github.com/casualjim/signalbus/pkg/retry"
	"github.com/casualjim/signalbus/pkg/slogx"
	"github.com/fogfish/opts"
)

const (
	// Topic carries reload broadcasts between stores.
	Topic = "setting"
	// Reload is the only payload stores react to on Topic.
	Reload = "reload"
	// DefaultBusyBudget bounds how long a backend call is retried while the
	// backend reports retry.ErrBusy.
	DefaultBusyBudget = 10 * time.Second
)

var (
	// ErrNotReady is returned by mutations before Start completed.
	ErrNotReady = errors.New("settings store is not ready")
	// ErrInvalidKey is returned for empty keys.
	ErrInvalidKey = errors.New("invalid settings key")
)

// Backend persists settings. Transient contention is reported by wrapping
// retry.ErrBusy; the store retries such calls.
type Backend interface {
	Load(ctx context.Context) (map[string]string, error)
	Put(ctx context.Context, id, value string) error
	Delete(ctx context.Context, id string) error
}

var (
	// WithTopic overrides the reload topic.
	WithTopic = opts.ForName[Store, string]("topic")
	// WithLogger sets the logger.
	WithLogger = opts.ForName[Store, *slog.Logger]("logger")
	// WithBusyBudget sets how long a busy backend is retried; negative means retry.DefaultBudget.
	WithBusyBudget = opts.ForName[Store, time.Duration]("busyBudget")
)

// Store serves reads from an in-memory snapshot of its backend.
type Store struct {
	bus        *signalbus.Bus
	backend    Backend
	topic      string
	busyBudget time.Duration
	logger     *slog.Logger

	mu   sync.RWMutex
	data map[string]string

	ready   atomic.Bool
	started atomic.Bool

	cbMu      sync.Mutex
	callbacks []func()
}

// New creates a store. It does nothing until Start is called.
func New(bus *signalbus.Bus, backend Backend, options ...opts.Option[Store]) *Store {
	s := &Store{
		bus:        bus,
		backend:    backend,
		topic:      Topic,
		busyBudget: DefaultBusyBudget,
		data:       map[string]string{},
	}
	if err := opts.Apply(s, options); err != nil {
		panic(err)
	}
	s.logger = slogx.Component(s.logger, "settings").With(slogx.Topic(s.topic))
	return s
}

// Start loads the backend, marks the store ready, runs the ready callbacks
// and starts following reload broadcasts. Calling it again is a no-op.
func (s *Store) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.reload(ctx); err != nil {
		s.started.Store(false)
		return err
	}
	s.ready.Store(true)
	s.runCallbacks()

	s.bus.SubscribeFunc(s.topic, s.onBroadcast)
	return nil
}

func (s *Store) onBroadcast(ctx context.Context, msg signalbus.Message) error {
	var v string
	if err := msg.Decode(&v); err != nil || v != Reload {
		return nil
	}
	if err := s.reload(ctx); err != nil {
		s.logger.WarnContext(ctx, "reloading settings", slogx.Error(err))
		return err
	}
	s.runCallbacks()
	return nil
}

// OnReady registers fn to run once the store is ready and again after every
// reload broadcast. When the store is already ready fn also runs right away.
func (s *Store) OnReady(fn func()) {
	s.cbMu.Lock()
	s.callbacks = append(s.callbacks, fn)
	s.cbMu.Unlock()
	if s.ready.Load() {
		fn()
	}
}

// IsReady reports whether Start completed.
func (s *Store) IsReady() bool {
	return s.ready.Load()
}

// Get returns the value of id, or "" when it is not set.
func (s *Store) Get(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[id]
}

// Has reports whether id holds a non-empty value.
func (s *Store) Has(id string) bool {
	return s.Get(id) != ""
}

// All returns a copy of the current snapshot.
func (s *Store) All() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Set stores value under id and tells every peer to reload.
func (s *Store) Set(ctx context.Context, id, value string) error {
	if err := s.checkMutation(id); err != nil {
		return err
	}
	err := s.whileBusy(ctx, func(ctx context.Context) error {
		return s.backend.Put(ctx, id, value)
	})
	if err != nil {
		return fmt.Errorf("put %q: %w", id, err)
	}
	return s.afterMutation(ctx)
}

// Delete removes id and tells every peer to reload. Deleting a missing key
// is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.checkMutation(id); err != nil {
		return err
	}
	err := s.whileBusy(ctx, func(ctx context.Context) error {
		return s.backend.Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete %q: %w", id, err)
	}
	return s.afterMutation(ctx)
}

func (s *Store) checkMutation(id string) error {
	if !s.ready.Load() {
		return ErrNotReady
	}
	if id == "" {
		return ErrInvalidKey
	}
	return nil
}

func (s *Store) afterMutation(ctx context.Context) error {
	if err := s.reload(ctx); err != nil {
		return err
	}
	return s.bus.Publish(ctx, s.topic, Reload)
}

func (s *Store) reload(ctx context.Context) error {
	data, err := retry.WhileBusy(ctx, s.busyBudget, s.backend.Load)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if data == nil {
		data = map[string]string{}
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

func (s *Store) runCallbacks() {
	s.cbMu.Lock()
	callbacks := append([]func(){}, s.callbacks...)
	s.cbMu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

func (s *Store) whileBusy(ctx context.Context, fn func(context.Context) error) error {
	_, err := retry.WhileBusy(ctx, s.busyBudget, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
