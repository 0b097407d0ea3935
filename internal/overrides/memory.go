package overrides

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryKV is an in-process KV for local development and tests. Err, when
// set, is returned by every call to simulate an unreachable backend.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string]Entry
	now  func() time.Time

	Err error
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]Entry), now: time.Now}
}

func (m *MemoryKV) SetErr(err error) {
	m.mu.Lock()
	m.Err = err
	m.mu.Unlock()
}

func (m *MemoryKV) Get(_ context.Context, key string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	e, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	e.Value = append([]byte(nil), e.Value...)
	return &e, nil
}

func (m *MemoryKV) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.data[key] = Entry{Key: key, Value: append([]byte(nil), value...), UpdatedAt: m.now().UTC()}
	return nil
}

func (m *MemoryKV) Create(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.data[key]; ok {
		return ErrExists
	}
	m.data[key] = Entry{Key: key, Value: append([]byte(nil), value...), UpdatedAt: m.now().UTC()}
	return nil
}

func (m *MemoryKV) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := []string{}
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryKV) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Err
}
