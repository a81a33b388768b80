package kvstore

import (
	"context"
	"fmt"
	"sync"

	"alertdesk/core"
)

// MemoryStore implements RecordStore in memory for testing. Writes and
// fetches can be made to fail on selected keys to exercise the per-record
// error paths of the mutation protocol.
type MemoryStore struct {
	mu        sync.Mutex
	records   map[string]*core.AlertRecord
	nextKey   int
	FailGet   map[string]error
	FailPut   map[string]error
	GetCount  int
	PutCount  int
}

// NewMemoryStore creates an empty in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*core.AlertRecord),
		FailGet: make(map[string]error),
		FailPut: make(map[string]error),
	}
}

// Seed stores a record under a fixed key.
func (m *MemoryStore) Seed(key string, record *core.AlertRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = cloneRecord(record)
}

func (m *MemoryStore) Get(ctx context.Context, key string) (*core.AlertRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCount++
	if err, ok := m.FailGet[key]; ok {
		return nil, err
	}
	record, ok := m.records[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, key)
	}
	return cloneRecord(record), nil
}

func (m *MemoryStore) Put(ctx context.Context, key string, record *core.AlertRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutCount++
	if err, ok := m.FailPut[key]; ok {
		return err
	}
	if _, ok := m.records[key]; !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, key)
	}
	m.records[key] = cloneRecord(record)
	return nil
}

func (m *MemoryStore) Insert(ctx context.Context, record *core.AlertRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextKey++
	key := fmt.Sprintf("key-%d", m.nextKey)
	m.records[key] = cloneRecord(record)
	return key, nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[key]; !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, key)
	}
	delete(m.records, key)
	return nil
}

// Stored returns a copy of the record currently stored under key, or nil.
func (m *MemoryStore) Stored(key string) *core.AlertRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[key]
	if !ok {
		return nil
	}
	return cloneRecord(record)
}

func cloneRecord(record *core.AlertRecord) *core.AlertRecord {
	clone := *record
	clone.WorkLog = append([]core.WorkLogEntry(nil), record.WorkLog...)
	if record.Analyst != nil {
		analyst := *record.Analyst
		clone.Analyst = &analyst
	}
	if record.Data != nil {
		data := make(map[string]interface{}, len(record.Data))
		for k, v := range record.Data {
			data[k] = v
		}
		clone.Data = data
	}
	return &clone
}
