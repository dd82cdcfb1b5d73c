package settings

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/casualjim/signalbus/pkg/retry"
	"github.com/casualjim/signalbus/transport"
	"github.com/mattn/go-sqlite3"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// busyBackend reports busy for the first busyLoads loads and busyPuts puts.
type busyBackend struct {
	*MemoryBackend
	busyLoads, busyPuts int32
	loads, puts         atomic.Int32
}

func (b *busyBackend) Load(ctx context.Context) (map[string]string, error) {
	if b.loads.Add(1) <= b.busyLoads {
		return nil, retry.ErrBusy
	}
	return b.MemoryBackend.Load(ctx)
}

func (b *busyBackend) Put(ctx context.Context, id, value string) error {
	if b.puts.Add(1) <= b.busyPuts {
		return retry.ErrBusy
	}
	return b.MemoryBackend.Put(ctx, id, value)
}

func TestStoreRetriesBusyBackend(t *testing.T) {
	ctx := context.Background()
	backend := &busyBackend{MemoryBackend: Memory(), busyLoads: 2, busyPuts: 2}
	s := New(newBus(t, transport.NewLocal()), backend, WithBusyBudget(5*time.Second))

	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsReady())
	assert.EqualValues(t, 3, backend.loads.Load())

	require.NoError(t, s.Set(ctx, "weather", "rain"))
	assert.EqualValues(t, 3, backend.puts.Load())
	assert.Equal(t, "rain", s.Get("weather"))
}

func TestStoreBusyBudgetExhausted(t *testing.T) {
	backend := &busyBackend{MemoryBackend: Memory(), busyLoads: 1 << 30}
	s := New(newBus(t, transport.NewLocal()), backend, WithBusyBudget(60*time.Millisecond))

	err := s.Start(context.Background())
	var terr *retry.TimeoutError
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, err, retry.ErrBusy)
	assert.False(t, s.IsReady())
}

func TestSQLiteBusyErrors(t *testing.T) {
	assert.NoError(t, busy(nil))
	assert.ErrorIs(t, busy(sqlite3.Error{Code: sqlite3.ErrBusy}), retry.ErrBusy)
	assert.ErrorIs(t, busy(sqlite3.Error{Code: sqlite3.ErrLocked}), retry.ErrBusy)

	constraint := sqlite3.Error{Code: sqlite3.ErrConstraint}
	err := busy(constraint)
	assert.NotErrorIs(t, err, retry.ErrBusy)
	assert.Equal(t, error(constraint), err)
}

func TestKVUnavailableErrors(t *testing.T) {
	assert.NoError(t, unavailable(nil))
	assert.ErrorIs(t, unavailable(nats.ErrNoResponders), retry.ErrBusy)
	assert.ErrorIs(t, unavailable(nats.ErrTimeout), retry.ErrBusy)

	err := unavailable(jetstream.ErrKeyNotFound)
	assert.NotErrorIs(t, err, retry.ErrBusy)
	assert.True(t, errors.Is(err, jetstream.ErrKeyNotFound))
}
