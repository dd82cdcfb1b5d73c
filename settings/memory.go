package settings

import (
	"context"

	"github.com/alphadose/haxmap"
)

var _ Backend = (*MemoryBackend)(nil)

// MemoryBackend keeps settings in process. Stores sharing one MemoryBackend
// behave like peers sharing a persistent backend.
type MemoryBackend struct {
	values *haxmap.Map[string, string]
}

func Memory() *MemoryBackend {
	return &MemoryBackend{values: haxmap.New[string, string]()}
}

func (m *MemoryBackend) Load(context.Context) (map[string]string, error) {
	out := make(map[string]string, m.values.Len())
	m.values.ForEach(func(k, v string) bool {
		out[k] = v
		return true
	})
	return out, nil
}

func (m *MemoryBackend) Put(_ context.Context, id, value string) error {
	m.values.Set(id, value)
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, id string) error {
	m.values.Del(id)
	return nil
}
