package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/casualjim/signalbus/pkg/retry"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// DefaultBucket is the KeyValue bucket used when none is given.
const DefaultBucket = "signalbus_settings"

var _ Backend = (*KVBackend)(nil)

// KVBackend stores settings in a NATS JetStream KeyValue bucket. Keys must
// be valid KeyValue keys. Missing responders and request timeouts are
// reported as retry.ErrBusy.
type KVBackend struct {
	kv jetstream.KeyValue
}

// NATSKV opens bucket, creating it when missing.
func NATSKV(ctx context.Context, js jetstream.JetStream, bucket string) (*KVBackend, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "signalbus settings",
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucket, err)
	}
	return &KVBackend{kv: kv}, nil
}

func (b *KVBackend) Load(ctx context.Context) (map[string]string, error) {
	w, err := b.kv.WatchAll(ctx, jetstream.IgnoreDeletes())
	if err != nil {
		return nil, unavailable(err)
	}
	defer func() { _ = w.Stop() }()

	out := map[string]string{}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case e, ok := <-w.Updates():
			// a nil entry marks the end of the initial values
			if !ok || e == nil {
				return out, nil
			}
			out[e.Key()] = string(e.Value())
		}
	}
}

func (b *KVBackend) Put(ctx context.Context, id, value string) error {
	_, err := b.kv.PutString(ctx, id, value)
	return unavailable(err)
}

func (b *KVBackend) Delete(ctx context.Context, id string) error {
	return unavailable(b.kv.Delete(ctx, id))
}

func unavailable(err error) error {
	if errors.Is(err, nats.ErrNoResponders) || errors.Is(err, nats.ErrTimeout) {
		return fmt.Errorf("%w: %w", retry.ErrBusy, err)
	}
	return err
}
