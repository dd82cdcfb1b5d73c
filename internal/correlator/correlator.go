package correlator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/casualjim/signalbus/pkg/uuidx"
)

// ErrTimeout is returned when a request is not answered in time.
var ErrTimeout = errors.New("request timed out")

// TimeoutError reports the topic of the request that was not answered.
type TimeoutError struct {
	Topic   string
	ReplyTo string
	After   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("signal timeout: %s (no reply on %s after %s)", e.Topic, e.ReplyTo, e.After)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

type pending[T any] struct {
	promise Promise[T]
	timer   *time.Timer
}

// Correlator tracks requests waiting for a reply on their ephemeral topic.
type Correlator[T any] struct {
	mu      sync.Mutex
	pending map[string]*pending[T]
	newID   func() string
}

// New creates an empty correlator.
func New[T any]() *Correlator[T] {
	return &Correlator[T]{
		pending: make(map[string]*pending[T]),
		newID:   uuidx.Compact,
	}
}

// Register creates a pending request for topic and returns the reply topic the
// responder must publish on. The future fails with a TimeoutError once
// timeout elapses without a reply.
func (c *Correlator[T]) Register(topic string, timeout time.Duration) (string, Future[T]) {
	replyTo := c.newID()
	fut := NewFuture[T]()
	p := &pending[T]{promise: fut}

	c.mu.Lock()
	defer c.mu.Unlock()
	p.timer = time.AfterFunc(timeout, func() {
		if c.take(replyTo, p) {
			fut.Error(&TimeoutError{Topic: topic, ReplyTo: replyTo, After: timeout})
		}
	})
	c.pending[replyTo] = p
	return replyTo, fut
}

// Resolve completes the request waiting on topic with value. It returns false
// when no request owns that topic.
func (c *Correlator[T]) Resolve(topic string, value T) bool {
	p := c.takeAny(topic)
	if p == nil {
		return false
	}
	p.timer.Stop()
	p.promise.Complete(value)
	return true
}

// Reject fails the request waiting on replyTo with err.
func (c *Correlator[T]) Reject(replyTo string, err error) bool {
	p := c.takeAny(replyTo)
	if p == nil {
		return false
	}
	p.timer.Stop()
	p.promise.Error(err)
	return true
}

// Len returns the number of pending requests.
func (c *Correlator[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Correlator[T]) takeAny(key string) *pending[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[key]
	if !ok {
		return nil
	}
	delete(c.pending, key)
	return p
}

// take removes key only while it still maps to p.
func (c *Correlator[T]) take(key string, p *pending[T]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending[key] != p {
		return false
	}
	delete(c.pending, key)
	return true
}
