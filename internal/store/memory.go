package store

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process DocumentStore used for local runs and tests.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]*memoryDoc
	seq         int64
	now         func() time.Time
	newID       func() string
}

type memoryDoc struct {
	seq    int64
	fields Fields
}

// MemoryOption customises a Memory store.
type MemoryOption func(*Memory)

// WithClock overrides the clock used for server timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// WithIDGenerator overrides document id generation.
func WithIDGenerator(newID func() string) MemoryOption {
	return func(m *Memory) { m.newID = newID }
}

// NewMemory returns an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		collections: make(map[string]map[string]*memoryDoc),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create stores a new document and returns its generated id.
func (m *Memory) Create(ctx context.Context, collection string, fields Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if collection == "" {
		return "", fmt.Errorf("create: %w: collection is required", ErrUnsupportedQuery)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string]*memoryDoc)
		m.collections[collection] = docs
	}

	id := m.newID()
	if _, exists := docs[id]; exists {
		return "", fmt.Errorf("create: duplicate document id %q", id)
	}

	m.seq++
	docs[id] = &memoryDoc{seq: m.seq, fields: m.resolve(fields)}
	return id, nil
}

// Query returns matching documents ordered and limited as requested.
func (m *Memory) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type match struct {
		id  string
		doc *memoryDoc
	}

	var matches []match
	for id, doc := range m.collections[q.Collection] {
		if matchesFilters(doc.fields, q.Filters) {
			matches = append(matches, match{id: id, doc: doc})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		c := 0
		if q.OrderBy != "" {
			c = compareValues(a.doc.fields[q.OrderBy], b.doc.fields[q.OrderBy])
		}
		if c == 0 {
			c = compareInt64(a.doc.seq, b.doc.seq)
		}
		if q.Descending {
			return c > 0
		}
		return c < 0
	})

	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}

	result := make([]Document, 0, len(matches))
	for _, mt := range matches {
		result = append(result, Document{ID: mt.id, Fields: cloneFields(mt.doc.fields)})
	}
	return result, nil
}

// Get returns a single document.
func (m *Memory) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.collections[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Fields: cloneFields(doc.fields)}, nil
}

// Delete removes a document permanently.
func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[collection][id]; !ok {
		return ErrNotFound
	}
	delete(m.collections[collection], id)
	return nil
}

// Update merges fields into an existing document.
func (m *Memory) Update(ctx context.Context, collection, id string, fields Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range m.resolve(fields) {
		doc.fields[k] = v
	}
	return nil
}

// Len reports how many documents a collection holds.
func (m *Memory) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection])
}

// resolve copies fields, replacing ServerTimestamp sentinels with the store clock.
func (m *Memory) resolve(fields Fields) Fields {
	out := cloneFields(fields)
	for k, v := range out {
		if IsServerTimestamp(v) {
			out[k] = m.now()
		}
	}
	return out
}

func matchesFilters(fields Fields, filters []Filter) bool {
	for _, f := range filters {
		v, ok := fields[f.Field]
		if !ok {
			return false
		}
		if !equalValues(v, f.Value) {
			return false
		}
	}
	return true
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if c, ok := orderedCompare(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders nil first, then numbers, strings and times by value.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if c, ok := orderedCompare(a, b); ok {
		return c
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func orderedCompare(a, b any) (int, bool) {
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return at.Compare(bt), true
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(as, bs), true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
