package registry

import "context"

// lane is the pending queue of one topic. It exists while a goroutine is
// draining it.
type lane[T any] struct {
	queue []T
}

// Post queues msg for delivery to the handlers of topic on another goroutine
// and reports whether it was queued. Messages of one topic are delivered one
// at a time in posting order while different topics are delivered
// concurrently, so a handler may block on a message of another topic. Posting
// to a topic without subscribers drops the message.
func (r *Registry[T]) Post(ctx context.Context, topic string, msg T) bool {
	if r.Len(topic) == 0 {
		return false
	}

	r.laneMu.Lock()
	l, draining := r.lanes[topic]
	if !draining {
		l = &lane[T]{}
		r.lanes[topic] = l
		r.inflight.Add(1)
	}
	l.queue = append(l.queue, msg)
	r.laneMu.Unlock()

	if !draining {
		go r.drain(ctx, topic, l)
	}
	return true
}

func (r *Registry[T]) drain(ctx context.Context, topic string, l *lane[T]) {
	defer r.inflight.Done()

	var zero T
	for {
		r.laneMu.Lock()
		if len(l.queue) == 0 {
			delete(r.lanes, topic)
			r.laneMu.Unlock()
			return
		}
		msg := l.queue[0]
		l.queue[0] = zero
		l.queue = l.queue[1:]
		r.laneMu.Unlock()

		r.Dispatch(ctx, topic, msg)
	}
}

// Wait blocks until every posted message has been delivered. Callers must
// stop posting first.
func (r *Registry[T]) Wait() {
	r.inflight.Wait()
}
