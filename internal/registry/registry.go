package registry

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/signalbus/pkg/slogx"
	"github.com/casualjim/signalbus/pkg/uuidx"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Handler receives messages dispatched on a topic.
type Handler[T any] interface {
	OnMessage(context.Context, T) error
}

// HandlerError wraps a failure raised by a single handler during dispatch.
type HandlerError struct {
	Topic string
	Err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler for topic %q failed: %v", e.Topic, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

type subscribers[T any] struct {
	mu       sync.RWMutex
	handlers *orderedmap.OrderedMap[string, Handler[T]]
}

func (s *subscribers[T]) add(h Handler[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if isComparable(h) {
		for pair := s.handlers.Oldest(); pair != nil; pair = pair.Next() {
			if isComparable(pair.Value) && pair.Value == h {
				return
			}
		}
	}
	s.handlers.Set(uuidx.NewString(), h)
}

func (s *subscribers[T]) snapshot() []Handler[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Handler[T], 0, s.handlers.Len())
	for pair := s.handlers.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Registry maps topics to ordered sets of handlers. Reads on the dispatch
// path are lock free; subscribe and unsubscribe are serialized.
type Registry[T any] struct {
	mu     sync.Mutex
	topics *haxmap.Map[string, *subscribers[T]]
	logger *slog.Logger

	laneMu   sync.Mutex
	lanes    map[string]*lane[T]
	inflight sync.WaitGroup
}

// New creates an empty registry. A nil logger falls back to slog.Default.
func New[T any](logger *slog.Logger) *Registry[T] {
	return &Registry[T]{
		topics: haxmap.New[string, *subscribers[T]](),
		lanes:  make(map[string]*lane[T]),
		logger: slogx.Component(logger, "registry"),
	}
}

// Subscribe adds h to the handlers of topic. Adding the same comparable
// handler twice is a no-op. It reports whether topic had no subscribers before.
func (r *Registry[T]) Subscribe(topic string, h Handler[T]) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, existed := r.topics.Get(topic)
	if !existed {
		subs = &subscribers[T]{handlers: orderedmap.New[string, Handler[T]]()}
		r.topics.Set(topic, subs)
	}
	subs.add(h)
	return !existed
}

// Unsubscribe removes every handler of topic and reports whether there were any.
func (r *Registry[T]) Unsubscribe(topic string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.topics.Get(topic); !ok {
		return false
	}
	r.topics.Del(topic)
	return true
}

// Len returns the number of handlers subscribed to topic.
func (r *Registry[T]) Len(topic string) int {
	subs, ok := r.topics.Get(topic)
	if !ok {
		return 0
	}
	subs.mu.RLock()
	defer subs.mu.RUnlock()
	return subs.handlers.Len()
}

// Topics returns the topics that currently have subscribers.
func (r *Registry[T]) Topics() []string {
	var out []string
	r.topics.ForEach(func(topic string, _ *subscribers[T]) bool {
		out = append(out, topic)
		return true
	})
	return out
}

// Dispatch delivers msg to every handler of topic in subscription order and
// returns the number of handlers invoked. A failing handler is logged and
// never stops delivery to the others.
func (r *Registry[T]) Dispatch(ctx context.Context, topic string, msg T) int {
	subs, ok := r.topics.Get(topic)
	if !ok {
		return 0
	}
	handlers := subs.snapshot()
	for _, h := range handlers {
		if err := invoke(ctx, h, msg); err != nil {
			herr := &HandlerError{Topic: topic, Err: err}
			r.logger.ErrorContext(ctx, "handler failed", slogx.Topic(topic), slogx.Error(herr))
		}
	}
	return len(handlers)
}

func invoke[T any](ctx context.Context, h Handler[T], msg T) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return h.OnMessage(ctx, msg)
}

// isComparable reports whether h can be compared with ==. Function adapters
// cannot, so each of their registrations is kept.
func isComparable(h any) bool {
	return h != nil && reflect.TypeOf(h).Comparable()
}
