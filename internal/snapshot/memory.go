package snapshot

import (
	"context"
	"sync"

	"leadetl/internal/table"
)

func init() {
	Register("memory", func(context.Context, Config) (Store, error) { return NewMemory(), nil })
}

// Memory is an in-process Store. It keeps deep copies, so callers may modify
// saved and loaded tables freely.
type Memory struct {
	mu     sync.Mutex
	tables map[string]*table.Table
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tables: map[string]*table.Table{}}
}

func (m *Memory) Save(_ context.Context, name string, t *table.Table) error {
	if err := ValidName(name); err != nil {
		return err
	}
	c := t.Clone()
	c.Name = name
	m.mu.Lock()
	m.tables[name] = c
	m.mu.Unlock()
	return nil
}

func (m *Memory) Load(_ context.Context, name string) (*table.Table, error) {
	m.mu.Lock()
	t, ok := m.tables[name]
	m.mu.Unlock()
	if !ok {
		return nil, &NotFoundError{Kind: "memory", Name: name}
	}
	return t.Clone(), nil
}

// Names returns the saved snapshot names in no particular order.
func (m *Memory) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.tables))
	for k := range m.tables {
		out = append(out, k)
	}
	return out
}

func (m *Memory) Close() error { return nil }
