package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// memStore is an in-memory Inserter and QuarantineWriter. The first field of
// each record is its unique key.
type memStore struct {
	mu          sync.Mutex
	rows        map[string][]Record
	keys        map[string]map[string]bool
	quarantined []QuarantineEntry
	writes      int
	failOn      map[string]error // key value -> error returned by InsertOne
	quarErr     error
}

func newMemStore() *memStore {
	return &memStore{
		rows: make(map[string][]Record),
		keys: make(map[string]map[string]bool),
	}
}

func (m *memStore) InsertOne(_ context.Context, table string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := fmt.Sprint(rec.Values()[0])
	if err, ok := m.failOn[key]; ok {
		return err
	}
	if m.keys[table] == nil {
		m.keys[table] = make(map[string]bool)
	}
	if m.keys[table][key] {
		return NewStoreError(UniqueViolation, table,
			fmt.Errorf("duplicate key value violates unique constraint %q", table+"_pkey"))
	}
	m.keys[table][key] = true
	m.rows[table] = append(m.rows[table], rec)
	return nil
}

func (m *memStore) InsertQuarantine(_ context.Context, entries []QuarantineEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.quarErr != nil {
		return m.quarErr
	}
	m.quarantined = append(m.quarantined, entries...)
	return nil
}

func (m *memStore) count(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows[table])
}

// fakeQueue is a Consumer and Publisher backed by slices.
type fakeQueue struct {
	mu        sync.Mutex
	pending   []*Message
	pollErrs  []error
	committed int
	published []publishedBatch
	pubErr    error
}

type publishedBatch struct {
	topic string
	key   string
	batch Batch
}

func (q *fakeQueue) push(table string, rows ...Record) {
	b, err := json.Marshal(Batch{TableName: table, Data: rows})
	if err != nil {
		panic(err)
	}
	q.pushRaw(b)
}

func (q *fakeQueue) pushRaw(value []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, &Message{Topic: "raw-data", Value: value})
}

func (q *fakeQueue) Poll(ctx context.Context, _ time.Duration) (*Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pollErrs) > 0 {
		err := q.pollErrs[0]
		q.pollErrs = q.pollErrs[1:]
		return nil, err
	}
	if len(q.pending) == 0 {
		q.mu.Unlock()
		time.Sleep(time.Millisecond)
		q.mu.Lock()
		return nil, ctx.Err()
	}
	msg := q.pending[0]
	q.pending = q.pending[1:]
	return msg, nil
}

func (q *fakeQueue) Commit(context.Context, *Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.committed++
	return nil
}

func (q *fakeQueue) Publish(_ context.Context, topic, key string, batch Batch) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pubErr != nil {
		return q.pubErr
	}
	q.published = append(q.published, publishedBatch{topic: topic, key: key, batch: batch})
	return nil
}

func (q *fakeQueue) drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) == 0 && len(q.pollErrs) == 0
}

var errQueueDown = errors.New("broker unavailable")

// countingRecorder tallies Recorder calls.
type countingRecorder struct {
	mu          sync.Mutex
	cleaned     map[string]int
	quarantined map[string]int // stage -> rows
	committed   map[string]int
	writeFails  int
	outcomes    map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		cleaned:     make(map[string]int),
		quarantined: make(map[string]int),
		committed:   make(map[string]int),
		outcomes:    make(map[string]int),
	}
}

func (r *countingRecorder) RowsCleaned(table string, n int) {
	r.mu.Lock()
	r.cleaned[table] += n
	r.mu.Unlock()
}

func (r *countingRecorder) RowsQuarantined(_, stage string, n int) {
	r.mu.Lock()
	r.quarantined[stage] += n
	r.mu.Unlock()
}

func (r *countingRecorder) RowsCommitted(table string, n int) {
	r.mu.Lock()
	r.committed[table] += n
	r.mu.Unlock()
}

func (r *countingRecorder) QuarantineWriteFailed(n int) {
	r.mu.Lock()
	r.writeFails += n
	r.mu.Unlock()
}

func (r *countingRecorder) StreamMessage(outcome string) {
	r.mu.Lock()
	r.outcomes[outcome]++
	r.mu.Unlock()
}
