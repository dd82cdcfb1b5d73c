package reassembly

import (
	"strings"
	"testing"
	"time"

	"github.com/casualjim/signalbus/envelope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReassembler(t *testing.T, timeout time.Duration) *Reassembler {
	t.Helper()
	r, err := New(WithTimeout(timeout))
	require.NoError(t, err)
	return r
}

func encode(t *testing.T, topic, replyTo string, value any, fragments int) []envelope.Envelope {
	t.Helper()
	// search for a limit that yields exactly the requested number of fragments
	for size := 4096; size > 40; size-- {
		envs, err := envelope.Encode(topic, replyTo, value, size)
		if err != nil {
			break
		}
		if len(envs) == fragments {
			return envs
		}
	}
	t.Fatalf("could not split payload into %d fragments", fragments)
	return nil
}

func TestReassemblerInOrder(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		r := newReassembler(t, time.Second)
		envs := encode(t, "chat", "reply", strings.Repeat("payload ", 40), n)

		for i, e := range envs {
			done, err := r.Accept(e)
			require.NoError(t, err)
			if i < len(envs)-1 {
				assert.Nil(t, done)
				assert.Equal(t, 1, r.Pending())
				continue
			}
			require.NotNil(t, done)
			assert.Equal(t, "chat", done.Topic)
			assert.Equal(t, "reply", done.ReplyTo)
			assert.Equal(t, `"`+strings.Repeat("payload ", 40)+`"`, string(done.Payload))
		}
		assert.Zero(t, r.Pending())
	}
}

func TestReassemblerOutOfOrder(t *testing.T) {
	r := newReassembler(t, time.Second)
	envs := encode(t, "chat", "", map[string]int{"a": 1, "b": 2, "c": 3}, 5)

	order := []int{4, 1, 3, 0, 2}
	var done *Completed
	for i, idx := range order {
		var err error
		done, err = r.Accept(envs[idx])
		require.NoError(t, err)
		if i < len(order)-1 {
			require.Nil(t, done)
		}
	}
	require.NotNil(t, done)
	assert.JSONEq(t, `{"a":1,"b":2,"c":3}`, string(done.Payload))
}

func TestReassemblerDuplicatesDoNotComplete(t *testing.T) {
	r := newReassembler(t, time.Second)
	envs := encode(t, "chat", "", strings.Repeat("x", 300), 5)

	for range 5 {
		done, err := r.Accept(envs[0])
		require.NoError(t, err)
		assert.Nil(t, done)
	}
	for _, e := range envs[1:4] {
		done, err := r.Accept(e)
		require.NoError(t, err)
		assert.Nil(t, done)
	}
	done, err := r.Accept(envs[2])
	require.NoError(t, err)
	assert.Nil(t, done, "a duplicate must not count as the missing fragment")

	done, err = r.Accept(envs[4])
	require.NoError(t, err)
	require.NotNil(t, done)
	assert.Equal(t, `"`+strings.Repeat("x", 300)+`"`, string(done.Payload))
}

func TestReassemblerEmptyChunkCountsAsReceived(t *testing.T) {
	r := newReassembler(t, time.Second)
	frags := []envelope.Envelope{
		{Topic: "t", Chunk: `{"v":`, Index: 0, LastIndex: 2},
		{Topic: "t", Chunk: "", Index: 1, LastIndex: 2},
		{Topic: "t", Chunk: `7}`, Index: 2, LastIndex: 2},
	}
	var done *Completed
	for _, f := range frags {
		var err error
		done, err = r.Accept(f)
		require.NoError(t, err)
	}
	require.NotNil(t, done)
	assert.Equal(t, "7", string(done.Payload))
}

func TestReassemblerEvictsIncomplete(t *testing.T) {
	r := newReassembler(t, 30*time.Millisecond)
	envs := encode(t, "chat", "", strings.Repeat("y", 300), 2)

	done, err := r.Accept(envs[0])
	require.NoError(t, err)
	require.Nil(t, done)
	require.Equal(t, 1, r.Pending())

	require.Eventually(t, func() bool { return r.Pending() == 0 }, time.Second, 5*time.Millisecond)

	// the late fragment starts a fresh transmission and never completes the old one
	done, err = r.Accept(envs[1])
	require.NoError(t, err)
	assert.Nil(t, done)
	assert.Equal(t, 1, r.Pending())
}

func TestReassemblerCompletionStopsEviction(t *testing.T) {
	r := newReassembler(t, 40*time.Millisecond)
	first := encode(t, "chat", "", strings.Repeat("a", 200), 2)
	second := encode(t, "chat", "", strings.Repeat("b", 200), 2)

	for _, e := range first {
		_, err := r.Accept(e)
		require.NoError(t, err)
	}
	_, err := r.Accept(second[0])
	require.NoError(t, err)

	// the first entry's timer must not evict the second transmission
	time.Sleep(20 * time.Millisecond)
	done, err := r.Accept(second[1])
	require.NoError(t, err)
	require.NotNil(t, done)
	assert.Equal(t, `"`+strings.Repeat("b", 200)+`"`, string(done.Payload))
}

func TestReassemblerInconsistentFragmentSet(t *testing.T) {
	t.Run("conflicting last index", func(t *testing.T) {
		r := newReassembler(t, time.Second)
		_, err := r.Accept(envelope.Envelope{Topic: "t", Chunk: "a", Index: 0, LastIndex: 2})
		require.NoError(t, err)

		done, err := r.Accept(envelope.Envelope{Topic: "t", Chunk: "b", Index: 1, LastIndex: 3})
		require.ErrorIs(t, err, ErrInconsistentFragmentSet)
		assert.Nil(t, done)
		assert.Zero(t, r.Pending(), "the conflicting entry is discarded")
	})

	t.Run("index out of range", func(t *testing.T) {
		r := newReassembler(t, time.Second)
		_, err := r.Accept(envelope.Envelope{Topic: "t", Chunk: "a", Index: 5, LastIndex: 2})
		require.ErrorIs(t, err, ErrInconsistentFragmentSet)
		assert.Zero(t, r.Pending())
	})
}

func TestReassemblerRejectsOversizedLastIndex(t *testing.T) {
	tests := []struct {
		name string
		last uint
	}{
		{name: "max uint", last: ^uint(0)},
		{name: "2^40", last: 1 << 40},
		{name: "just over the limit", last: envelope.MaxFragments},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newReassembler(t, time.Second)
			_, err := r.Accept(envelope.Envelope{Topic: "chat", Chunk: `{"v":`, Index: 0, LastIndex: 1})
			require.NoError(t, err)

			done, err := r.Accept(envelope.Envelope{Topic: "chat", Chunk: "x", Index: 0, LastIndex: tt.last})
			require.ErrorIs(t, err, envelope.ErrMalformedEnvelope)
			assert.Nil(t, done)
			assert.Equal(t, 1, r.Pending(), "the in-flight transmission is untouched")

			done, err = r.Accept(envelope.Envelope{Topic: "chat", Chunk: `1}`, Index: 1, LastIndex: 1})
			require.NoError(t, err)
			require.NotNil(t, done)
			assert.Equal(t, "1", string(done.Payload))
		})
	}

	r := newReassembler(t, time.Second)
	done, err := r.Accept(envelope.Envelope{Topic: "chat", Chunk: `{"v":1}`, Index: 0, LastIndex: envelope.MaxFragments - 1})
	require.NoError(t, err)
	assert.Nil(t, done)
	assert.Equal(t, 1, r.Pending())
}

func TestReassemblerMalformedPayload(t *testing.T) {
	r := newReassembler(t, time.Second)
	_, err := r.Accept(envelope.Envelope{Topic: "t", Chunk: `{"v":`, Index: 0, LastIndex: 1})
	require.NoError(t, err)
	done, err := r.Accept(envelope.Envelope{Topic: "t", Chunk: `oops`, Index: 1, LastIndex: 1})
	require.ErrorIs(t, err, envelope.ErrMalformedPayload)
	assert.Nil(t, done)
	assert.Zero(t, r.Pending())
}

// Interleaved transmissions on one topic share a single entry, so the first
// message is corrupted. This is a known limitation of the protocol.
func TestReassemblerInterleavedSameTopicCorrupts(t *testing.T) {
	r := newReassembler(t, time.Second)
	first := encode(t, "chat", "", strings.Repeat("a", 200), 2)
	second := encode(t, "chat", "", strings.Repeat("b", 200), 2)
	require.Equal(t, first[0].LastIndex, second[0].LastIndex)

	_, err := r.Accept(first[0])
	require.NoError(t, err)
	_, err = r.Accept(second[0])
	require.NoError(t, err)

	done, err := r.Accept(first[1])
	if err != nil {
		assert.ErrorIs(t, err, envelope.ErrMalformedPayload)
		return
	}
	require.NotNil(t, done)
	assert.NotEqual(t, `"`+strings.Repeat("a", 200)+`"`, string(done.Payload),
		"the first message must not survive an interleaved transmission intact")
}

func TestReassemblerIndependentTopics(t *testing.T) {
	r := newReassembler(t, time.Second)
	a := encode(t, "a", "", strings.Repeat("a", 200), 2)
	b := encode(t, "b", "", strings.Repeat("b", 200), 2)

	for _, e := range []envelope.Envelope{a[0], b[0], b[1], a[1]} {
		done, err := r.Accept(e)
		require.NoError(t, err)
		if done != nil {
			assert.Equal(t, `"`+strings.Repeat(done.Topic, 200)+`"`, string(done.Payload))
		}
	}
	assert.Zero(t, r.Pending())
}

func TestNewValidatesTimeout(t *testing.T) {
	_, err := New(WithTimeout(0))
	require.Error(t, err)
}
