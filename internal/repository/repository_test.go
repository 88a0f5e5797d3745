package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"FxPredict/internal/domain/models"
	pkgkafka "FxPredict/pkg/kafka"

	"github.com/segmentio/kafka-go"
)

type execCall struct {
	query string
	args  []interface{}
}

type fakeDB struct {
	execs   []execCall
	execErr error
	pingErr error
}

func (f *fakeDB) ExecContext(_ context.Context, q string, args ...interface{}) (sql.Result, error) {
	f.execs = append(f.execs, execCall{query: q, args: args})
	return nil, f.execErr
}

func (f *fakeDB) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errors.New("not supported in tests")
}

func (f *fakeDB) PingContext(context.Context) error { return f.pingErr }

func sampleSnapshot() models.PredictionSnapshot {
	return models.PredictionSnapshot{
		GeneratedAt:  time.Date(2026, 10, 19, 12, 0, 0, 0, time.FixedZone("EEST", 3*3600)),
		BaseCurrency: "USD",
		Predictions: []models.PredictionResult{
			{Currency: "EUR", CurrentRate: 0.92, PredictedRate: 0.91, ChangePercentage: -1.08, Recommendation: "USD likely to weaken against EUR (1.08% change)"},
			{Currency: "GBP", CurrentRate: 0.79, PredictedRate: 0.79, ChangePercentage: 0, Recommendation: "Stable — no significant change expected"},
		},
	}
}

func TestSaveInsertsOneRowPerCurrency(t *testing.T) {
	db := &fakeDB{}
	s := NewCHSnapshotStore(db, "fx.prediction_snapshots", nil)

	if err := s.Save(context.Background(), sampleSnapshot()); err != nil {
		t.Fatal(err)
	}
	if len(db.execs) != 1 {
		t.Fatalf("execs=%d", len(db.execs))
	}
	call := db.execs[0]
	if !strings.HasPrefix(call.query, "INSERT INTO fx.prediction_snapshots (generated_at, currency") {
		t.Fatalf("query=%s", call.query)
	}
	if strings.Count(call.query, "(?, ?, ?, ?, ?, ?, ?)") != 2 || len(call.args) != 14 {
		t.Fatalf("rows/args mismatch: %s %d", call.query, len(call.args))
	}
	at := call.args[0].(time.Time)
	if at.Location() != time.UTC || at.Hour() != 9 {
		t.Fatalf("generated_at=%v", at)
	}
	if call.args[1] != "EUR" || call.args[2] != "USD" || call.args[8] != "GBP" {
		t.Fatalf("args=%v", call.args)
	}
}

func TestSaveEmptyAndErrors(t *testing.T) {
	db := &fakeDB{execErr: errors.New("table missing")}
	s := NewCHSnapshotStore(db, "t", nil)

	if err := s.Save(context.Background(), models.PredictionSnapshot{}); err != nil || len(db.execs) != 0 {
		t.Fatalf("empty snapshot: err=%v execs=%d", err, len(db.execs))
	}
	if err := s.Save(context.Background(), sampleSnapshot()); err == nil {
		t.Fatal("expected insert error")
	}
	if _, err := s.Recent(context.Background(), "EUR", 0); err == nil {
		t.Fatal("expected limit error")
	}
}

func TestSnapshotSchema(t *testing.T) {
	stmts := SnapshotSchema("fx", "prediction_snapshots")
	if len(stmts) != 2 {
		t.Fatalf("stmts=%d", len(stmts))
	}
	if !strings.Contains(stmts[1], "ORDER BY (currency, generated_at)") || !strings.Contains(stmts[1], "fx.prediction_snapshots") {
		t.Fatalf("ddl=%s", stmts[1])
	}
}

type captureWriter struct{ msgs []kafka.Message }

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func TestKafkaPublisherWritesSnapshotMessage(t *testing.T) {
	w := &captureWriter{}
	p := NewKafkaSnapshotPublisher(pkgkafka.NewProducerWithWriter(w, "gzip", nil), "fx.prediction-snapshots")

	snap := sampleSnapshot()
	if err := p.Publish(context.Background(), snap); err != nil {
		t.Fatal(err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "USD" || w.msgs[0].Topic != "fx.prediction-snapshots" {
		t.Fatalf("msgs=%+v", w.msgs)
	}
	var m models.SnapshotMessage
	if err := json.Unmarshal(w.msgs[0].Value, &m); err != nil {
		t.Fatal(err)
	}
	back := m.Snapshot()
	if !back.GeneratedAt.Equal(snap.GeneratedAt) || len(back.Predictions) != 2 || back.Predictions[0] != snap.Predictions[0] {
		t.Fatalf("round trip=%+v", back)
	}
}
