package reassembly

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/casualjim/signalbus/envelope"
	"github.com/casualjim/signalbus/pkg/slogx"
	"github.com/fogfish/opts"
	"github.com/goccy/go-json"
)

// DefaultTimeout is how long an incomplete transmission is kept.
const DefaultTimeout = 5 * time.Second

// ErrInconsistentFragmentSet is returned when a fragment disagrees with the
// in-flight transmission for its topic.
var ErrInconsistentFragmentSet = errors.New("inconsistent fragment set")

// Completed is a fully reassembled message.
type Completed struct {
	Topic   string
	ReplyTo string
	Payload json.RawMessage
}

type entry struct {
	lastIndex uint
	replyTo   string
	slots     []string
	received  []bool
	count     int
	timer     *time.Timer
}

// Reassembler accumulates fragments per topic.
type Reassembler struct {
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

var (
	// WithTimeout sets the eviction timeout for incomplete transmissions.
	WithTimeout = opts.ForName[Reassembler, time.Duration]("timeout")
	// WithLogger sets the logger used for eviction and error records.
	WithLogger = opts.ForName[Reassembler, *slog.Logger]("logger")
)

// New creates an empty Reassembler.
func New(options ...opts.Option[Reassembler]) (*Reassembler, error) {
	r := &Reassembler{
		timeout: DefaultTimeout,
		entries: make(map[string]*entry),
	}
	if err := opts.Apply(r, options); err != nil {
		return nil, err
	}
	if r.timeout <= 0 {
		return nil, fmt.Errorf("reassembly timeout must be positive, got %s", r.timeout)
	}
	r.logger = slogx.Component(r.logger, "reassembly")
	return r, nil
}

// Accept records a fragment. It returns a nil result while the transmission
// for the fragment's topic is still incomplete. A fragment claiming more than
// envelope.MaxFragments is rejected without touching the topic's state; any
// other error discards the transmission for that topic.
func (r *Reassembler) Accept(env envelope.Envelope) (*Completed, error) {
	if env.LastIndex >= envelope.MaxFragments {
		return nil, fmt.Errorf("%w: topic %q last index %d",
			envelope.ErrMalformedEnvelope, env.Topic, env.LastIndex)
	}

	r.mu.Lock()

	e, ok := r.entries[env.Topic]
	if !ok {
		e = r.track(env)
	}

	if env.LastIndex != e.lastIndex || env.Index > e.lastIndex {
		r.dropLocked(env.Topic, e)
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: topic %q fragment %d/%d, in flight last index %d",
			ErrInconsistentFragmentSet, env.Topic, env.Index, env.LastIndex, e.lastIndex)
	}

	e.slots[env.Index] = env.Chunk
	if !e.received[env.Index] {
		e.received[env.Index] = true
		e.count++
	}

	if e.count < len(e.slots) {
		r.mu.Unlock()
		return nil, nil
	}

	r.dropLocked(env.Topic, e)
	r.mu.Unlock()

	payload, err := envelope.Decode(e.slots)
	if err != nil {
		return nil, fmt.Errorf("topic %q: %w", env.Topic, err)
	}
	return &Completed{
		Topic:   env.Topic,
		ReplyTo: e.replyTo,
		Payload: payload,
	}, nil
}

// Pending returns the number of incomplete transmissions being tracked.
func (r *Reassembler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Reassembler) track(env envelope.Envelope) *entry {
	size := env.Count()
	e := &entry{
		lastIndex: env.LastIndex,
		replyTo:   env.ReplyTo,
		slots:     make([]string, size),
		received:  make([]bool, size),
	}
	topic := env.Topic
	e.timer = time.AfterFunc(r.timeout, func() { r.evict(topic, e) })
	r.entries[topic] = e
	return e
}

func (r *Reassembler) evict(topic string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// the topic may already track a newer transmission
	if r.entries[topic] != e {
		return
	}
	delete(r.entries, topic)
	r.logger.Debug("evicted incomplete transmission",
		slogx.Topic(topic),
		slog.Int("received", e.count),
		slog.Int("expected", len(e.slots)),
	)
}

func (r *Reassembler) dropLocked(topic string, e *entry) {
	e.timer.Stop()
	if r.entries[topic] == e {
		delete(r.entries, topic)
	}
}
