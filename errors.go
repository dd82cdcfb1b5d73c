package signalbus

import (
	"errors"

	"github.com/casualjim/signalbus/envelope"
	"github.com/casualjim/signalbus/internal/correlator"
	"github.com/casualjim/signalbus/internal/reassembly"
	"github.com/casualjim/signalbus/internal/registry"
)

var (
	// ErrTimeout is returned by a request future when no reply arrived in time.
	ErrTimeout = correlator.ErrTimeout
	// ErrMalformedPayload is reported when reassembled chunks do not decode.
	ErrMalformedPayload = envelope.ErrMalformedPayload
	// ErrInconsistentFragmentSet is reported when fragments of a topic disagree.
	ErrInconsistentFragmentSet = reassembly.ErrInconsistentFragmentSet
	// ErrTransportRejected is returned when the transport fails to send a fragment.
	ErrTransportRejected = errors.New("transport rejected fragment")
	// ErrNoReplyTo is returned when replying to a message that expects no reply.
	ErrNoReplyTo = errors.New("message has no reply topic")
	// ErrEmptyTopic is returned when publishing without a topic.
	ErrEmptyTopic = errors.New("topic is required")
)

type (
	// TimeoutError carries the topic of an unanswered request.
	TimeoutError = correlator.TimeoutError
	// HandlerError wraps a failure raised by a subscriber.
	HandlerError = registry.HandlerError
)
