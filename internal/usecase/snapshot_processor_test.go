package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"FxPredict/internal/domain/models"
)

type recordingMetrics struct {
	mu        sync.Mutex
	errors    []string
	snapshots []string
}

func (m *recordingMetrics) RecordPrediction(string, models.PredictionResult) {}
func (m *recordingMetrics) RecordLatency(string, float64)                    {}

func (m *recordingMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors = append(m.errors, kind)
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordSnapshot(backend string) {
	m.mu.Lock()
	m.snapshots = append(m.snapshots, backend)
	m.mu.Unlock()
}

type memStore struct {
	saved []models.PredictionSnapshot
	err   error
}

func (s *memStore) Save(_ context.Context, snap models.PredictionSnapshot) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, snap)
	return nil
}

func (s *memStore) Recent(context.Context, string, int) ([]models.SnapshotRecord, error) {
	return nil, nil
}

func (s *memStore) Health(context.Context) error { return nil }

type memPublisher struct {
	published []models.PredictionSnapshot
	closed    bool
}

func (p *memPublisher) Publish(_ context.Context, snap models.PredictionSnapshot) error {
	p.published = append(p.published, snap)
	return nil
}

func (p *memPublisher) Close() error { p.closed = true; return nil }

type memBroadcaster struct{ got []models.PredictionSnapshot }

func (b *memBroadcaster) Broadcast(s models.PredictionSnapshot) { b.got = append(b.got, s) }

type fixedBatch struct {
	results []models.PredictionResult
	err     error
}

func (f fixedBatch) BaseCurrency() string { return "USD" }

func (f fixedBatch) PredictAll(context.Context) ([]models.PredictionResult, error) {
	return f.results, f.err
}

var batchResults = []models.PredictionResult{
	{Currency: "EUR", CurrentRate: 0.92, PredictedRate: 0.91, ChangePercentage: -1.1, Recommendation: "USD likely to weaken against EUR (1.10% change)"},
}

func TestNewSnapshotProcessorValidatesBackend(t *testing.T) {
	if _, err := NewSnapshotProcessor(fixedBatch{}, "kafka", nil, nil, nil, nil, nil); err == nil {
		t.Fatal("kafka without publisher should fail")
	}
	if _, err := NewSnapshotProcessor(fixedBatch{}, "clickhouse", nil, nil, nil, nil, nil); err == nil {
		t.Fatal("clickhouse without store should fail")
	}
	if _, err := NewSnapshotProcessor(fixedBatch{}, "s3", nil, nil, nil, nil, nil); err == nil {
		t.Fatal("unknown backend should fail")
	}
	if _, err := NewSnapshotProcessor(fixedBatch{}, "none", nil, nil, nil, nil, nil); err != nil {
		t.Fatalf("none: %v", err)
	}
}

func TestRunRoutesToKafkaAndBroadcasts(t *testing.T) {
	pub := &memPublisher{}
	b := &memBroadcaster{}
	m := &recordingMetrics{}
	p, err := NewSnapshotProcessor(fixedBatch{results: batchResults}, BackendKafka, pub, nil, b, m, nil)
	if err != nil {
		t.Fatal(err)
	}
	fixed := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	snap, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !snap.GeneratedAt.Equal(fixed) || snap.BaseCurrency != "USD" || len(snap.Predictions) != 1 {
		t.Fatalf("snap=%+v", snap)
	}
	if len(pub.published) != 1 || len(b.got) != 1 {
		t.Fatalf("published=%d broadcast=%d", len(pub.published), len(b.got))
	}
	if len(m.snapshots) != 1 || m.snapshots[0] != "kafka" {
		t.Fatalf("snapshot metrics=%v", m.snapshots)
	}
	p.Close()
	if !pub.closed {
		t.Fatal("publisher not closed")
	}
}

func TestRunRoutesToClickHouse(t *testing.T) {
	store := &memStore{}
	p, err := NewSnapshotProcessor(fixedBatch{results: batchResults}, BackendClickHouse, nil, store, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(store.saved) != 1 {
		t.Fatalf("saved=%d", len(store.saved))
	}
}

func TestRunFailedBatchDeliversNothing(t *testing.T) {
	pub := &memPublisher{}
	b := &memBroadcaster{}
	m := &recordingMetrics{}
	batch := fixedBatch{err: models.NewDataSourceError("JPY", errors.New("down"))}
	p, _ := NewSnapshotProcessor(batch, BackendKafka, pub, nil, b, m, nil)

	if _, err := p.Run(context.Background()); !errors.Is(err, models.ErrDataSource) {
		t.Fatalf("err=%v", err)
	}
	if len(pub.published) != 0 || len(b.got) != 0 {
		t.Fatal("failed batch must not be delivered")
	}
	if len(m.errors) != 1 || m.errors[0] != "snapshot_predict" {
		t.Fatalf("errors=%v", m.errors)
	}
}

func TestRunStoreFailureIsReported(t *testing.T) {
	store := &memStore{err: errors.New("insert failed")}
	m := &recordingMetrics{}
	p, _ := NewSnapshotProcessor(fixedBatch{results: batchResults}, BackendClickHouse, nil, store, nil, m, nil)

	if _, err := p.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(m.errors) != 1 || m.errors[0] != "snapshot_clickhouse" {
		t.Fatalf("errors=%v", m.errors)
	}
}

func TestKafkaSnapshotHandler(t *testing.T) {
	store := &memStore{}
	m := &recordingMetrics{}
	h := NewKafkaSnapshotHandler("fx.prediction-snapshots", store, m)
	if h.Topic() != "fx.prediction-snapshots" {
		t.Fatalf("topic=%s", h.Topic())
	}

	snap := models.PredictionSnapshot{
		GeneratedAt:  time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		BaseCurrency: "USD",
		Predictions:  batchResults,
	}
	b, _ := json.Marshal(snap.Message())
	if err := h.Handle(context.Background(), b); err != nil {
		t.Fatal(err)
	}
	if len(store.saved) != 1 || !store.saved[0].GeneratedAt.Equal(snap.GeneratedAt) || store.saved[0].Predictions[0] != batchResults[0] {
		t.Fatalf("saved=%+v", store.saved)
	}

	for _, bad := range []string{`not json`, `{"generated_at":0,"predictions":[]}`, `{"generated_at":1760870400}`} {
		if err := h.Handle(context.Background(), []byte(bad)); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
	if len(store.saved) != 1 {
		t.Fatal("invalid messages must not reach the store")
	}
	if len(m.errors) != 3 {
		t.Fatalf("errors=%v", m.errors)
	}
}
