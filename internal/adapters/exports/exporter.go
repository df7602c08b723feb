// Package exports runs asynchronous snapshot exports: the full cached
// home state serialized to JSON and stored as a blob artifact.
package exports

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"homewarp/internal/blob"
	"homewarp/internal/metrics"
	"homewarp/pkg/domain"
)

// Status describes the lifecycle stage of an export request.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Source supplies the state to export. The home store implements it.
type Source interface {
	Snapshots() []domain.PlayerHomesSnapshot
}

// Record tracks an export request and its resulting artifact.
type Record struct {
	ID          string     `json:"id"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifact    *blob.Info `json:"artifact,omitempty"`
	Players     int        `json:"players"`
	RequestedBy string     `json:"requested_by"`
	Reason      string     `json:"reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (r Record) copy() Record {
	out := r
	if r.Artifact != nil {
		artifact := *r.Artifact
		out.Artifact = &artifact
	}
	if r.CompletedAt != nil {
		completed := *r.CompletedAt
		out.CompletedAt = &completed
	}
	return out
}

// Input represents an enqueue request for the worker.
type Input struct {
	RequestedBy string
	Reason      string
}

type task struct {
	id string
}

// Worker executes snapshot exports asynchronously.
type Worker struct {
	source  Source
	store   blob.Store
	metrics *metrics.Set

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker constructs an export worker over the given state source and
// blob store. m may be nil.
func NewWorker(source Source, store blob.Store, m *metrics.Set) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		source:  source,
		store:   store,
		metrics: m,
		queue:   make(chan task, 16),
		jobs:    make(map[string]*Record),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// Enqueue schedules an export job and returns the queued record.
func (w *Worker) Enqueue(_ context.Context, input Input) (Record, error) {
	if w.source == nil || w.store == nil {
		return Record{}, fmt.Errorf("export worker not configured")
	}
	id := newID()
	now := time.Now().UTC()
	record := Record{
		ID:          id,
		Status:      StatusQueued,
		RequestedBy: input.RequestedBy,
		Reason:      input.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[id] = &record
	queued := record.copy()
	w.mu.Unlock()

	select {
	case w.queue <- task{id: id}:
	default:
		w.mu.Lock()
		delete(w.jobs, id)
		w.mu.Unlock()
		return Record{}, fmt.Errorf("export queue full")
	}
	return queued, nil
}

// Get returns a snapshot of the export record.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

// List returns snapshots of all known export records.
func (w *Worker) List() []Record {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Record, 0, len(w.jobs))
	for _, record := range w.jobs {
		out = append(out, record.copy())
	}
	return out
}

func (w *Worker) process(t task) {
	w.update(t.id, func(r *Record) { r.Status = StatusRunning })

	snapshots := w.source.Snapshots()
	payload, err := json.MarshalIndent(map[string]any{
		"exported_at": time.Now().UTC(),
		"players":     snapshots,
	}, "", "  ")
	if err != nil {
		w.fail(t.id, fmt.Errorf("encode snapshot: %w", err))
		return
	}

	key := fmt.Sprintf("exports/homes-%s.json", t.id)
	info, err := w.store.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"players": fmt.Sprint(len(snapshots))},
	})
	if err != nil {
		w.fail(t.id, fmt.Errorf("store artifact: %w", err))
		return
	}

	now := time.Now().UTC()
	w.update(t.id, func(r *Record) {
		r.Status = StatusSucceeded
		r.Artifact = &info
		r.Players = len(snapshots)
		r.CompletedAt = &now
	})
	w.metrics.ExportStatus(string(StatusSucceeded))
}

func (w *Worker) fail(id string, err error) {
	now := time.Now().UTC()
	w.update(id, func(r *Record) {
		r.Status = StatusFailed
		r.Error = err.Error()
		r.CompletedAt = &now
	})
	w.metrics.ExportStatus(string(StatusFailed))
}

func (w *Worker) update(id string, fn func(*Record)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	record, ok := w.jobs[id]
	if !ok {
		return
	}
	fn(record)
	record.UpdatedAt = time.Now().UTC()
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}
