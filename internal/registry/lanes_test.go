package registry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostKeepsTopicOrder(t *testing.T) {
	r := New[string](nil)
	h := &recordingHandler{name: "h"}
	r.Subscribe("a", h)

	var want []string
	for i := range 100 {
		msg := fmt.Sprintf("m%d", i)
		want = append(want, msg)
		assert.True(t, r.Post(context.Background(), "a", msg))
	}
	r.Wait()

	assert.Equal(t, want, h.messages())

	r.laneMu.Lock()
	defer r.laneMu.Unlock()
	assert.Empty(t, r.lanes, "drained lanes are removed")
}

func TestPostWithoutSubscribers(t *testing.T) {
	r := New[string](nil)
	assert.False(t, r.Post(context.Background(), "nobody", "m"))
	r.Wait()
}

type blockingHandler struct {
	release <-chan struct{}
	done    chan<- string
}

func (b *blockingHandler) OnMessage(_ context.Context, msg string) error {
	<-b.release
	b.done <- msg
	return nil
}

type releasingHandler struct {
	release chan<- struct{}
}

func (r *releasingHandler) OnMessage(context.Context, string) error {
	close(r.release)
	return nil
}

func TestPostTopicsRunConcurrently(t *testing.T) {
	r := New[string](nil)
	release := make(chan struct{})
	done := make(chan string, 1)
	r.Subscribe("outer", &blockingHandler{release: release, done: done})
	r.Subscribe("inner", &releasingHandler{release: release})

	r.Post(context.Background(), "outer", "waiting")
	r.Post(context.Background(), "inner", "go")

	select {
	case msg := <-done:
		assert.Equal(t, "waiting", msg)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "a blocked topic held up another topic")
	}
	r.Wait()
}
