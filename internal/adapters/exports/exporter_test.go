package exports

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"homewarp/internal/blob"
	"homewarp/pkg/domain"
)

type staticSource struct {
	snapshots []domain.PlayerHomesSnapshot
}

func (s staticSource) Snapshots() []domain.PlayerHomesSnapshot { return s.snapshots }

func waitForTerminal(t *testing.T, w *Worker, id string) Record {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		record, ok := w.Get(id)
		if !ok {
			t.Fatalf("record %s vanished", id)
		}
		if record.Status == StatusSucceeded || record.Status == StatusFailed {
			return record
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("export %s never reached a terminal status", id)
	return Record{}
}

func TestExportProducesArtifact(t *testing.T) {
	source := staticSource{snapshots: []domain.PlayerHomesSnapshot{
		{PlayerID: uuid.New(), Username: "steve", Homes: []domain.HomeSnapshot{{Name: "Base", Location: domain.Location{World: "overworld"}}}},
		{PlayerID: uuid.New(), Username: "alex"},
	}}
	store := blob.NewMemory()
	worker := NewWorker(source, store, nil)
	worker.Start()
	defer worker.Stop(context.Background())

	queued, err := worker.Enqueue(context.Background(), Input{RequestedBy: "admin", Reason: "backup"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if queued.Status != StatusQueued || queued.RequestedBy != "admin" {
		t.Fatalf("queued record = %+v", queued)
	}

	record := waitForTerminal(t, worker, queued.ID)
	if record.Status != StatusSucceeded {
		t.Fatalf("status = %s, error = %q", record.Status, record.Error)
	}
	if record.Players != 2 || record.Artifact == nil || record.CompletedAt == nil {
		t.Fatalf("record = %+v", record)
	}

	_, rc, err := store.Get(context.Background(), record.Artifact.Key)
	if err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	var payload struct {
		Players []domain.PlayerHomesSnapshot `json:"players"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("artifact not valid JSON: %v", err)
	}
	if len(payload.Players) != 2 {
		t.Fatalf("artifact holds %d players", len(payload.Players))
	}

	if got := len(worker.List()); got != 1 {
		t.Fatalf("list = %d records", got)
	}
}

type failingBlobStore struct {
	*blob.Memory
}

func (failingBlobStore) Put(context.Context, string, io.Reader, blob.PutOptions) (blob.Info, error) {
	return blob.Info{}, fmt.Errorf("bucket unavailable")
}

func TestExportFailureRecorded(t *testing.T) {
	worker := NewWorker(staticSource{}, failingBlobStore{blob.NewMemory()}, nil)
	worker.Start()
	defer worker.Stop(context.Background())

	queued, err := worker.Enqueue(context.Background(), Input{RequestedBy: "admin"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	record := waitForTerminal(t, worker, queued.ID)
	if record.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", record.Status)
	}
	if record.Error == "" || record.Artifact != nil {
		t.Fatalf("record = %+v", record)
	}
}

func TestEnqueueRejectsWhenQueueFull(t *testing.T) {
	// Worker not started, so the queue only drains by capacity.
	worker := NewWorker(staticSource{}, blob.NewMemory(), nil)
	for i := 0; i < 16; i++ {
		if _, err := worker.Enqueue(context.Background(), Input{}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if _, err := worker.Enqueue(context.Background(), Input{}); err == nil {
		t.Fatal("enqueue beyond capacity must fail")
	}
	if got := len(worker.List()); got != 16 {
		t.Fatalf("rejected job leaked into records: %d", got)
	}
}
