package models

import "time"

// PredictionSnapshot is one scheduled batch of predictions for every supported currency.
type PredictionSnapshot struct {
	GeneratedAt  time.Time
	BaseCurrency string
	Predictions  []PredictionResult
}

// SnapshotRecord is a single stored row of snapshot history.
type SnapshotRecord struct {
	GeneratedAt  time.Time
	BaseCurrency string
	Prediction   PredictionResult
}

// SnapshotMessage is the JSON schema of the snapshots topic.
type SnapshotMessage struct {
	GeneratedAt  int64                   `json:"generated_at"` // unix seconds
	BaseCurrency string                  `json:"base_currency"`
	Predictions  []SnapshotMessageResult `json:"predictions"`
}

type SnapshotMessageResult struct {
	Currency         string  `json:"currency"`
	CurrentRate      float64 `json:"current_rate"`
	PredictedRate    float64 `json:"predicted_rate"`
	ChangePercentage float64 `json:"change_pct"`
	Recommendation   string  `json:"recommendation"`
}

// Message converts the snapshot to its topic schema.
func (s PredictionSnapshot) Message() SnapshotMessage {
	m := SnapshotMessage{
		GeneratedAt:  s.GeneratedAt.Unix(),
		BaseCurrency: s.BaseCurrency,
		Predictions:  make([]SnapshotMessageResult, 0, len(s.Predictions)),
	}
	for _, p := range s.Predictions {
		m.Predictions = append(m.Predictions, SnapshotMessageResult{
			Currency:         p.Currency,
			CurrentRate:      p.CurrentRate,
			PredictedRate:    p.PredictedRate,
			ChangePercentage: p.ChangePercentage,
			Recommendation:   p.Recommendation,
		})
	}
	return m
}

// Snapshot converts a topic message back into the domain snapshot.
func (m SnapshotMessage) Snapshot() PredictionSnapshot {
	s := PredictionSnapshot{
		GeneratedAt:  time.Unix(m.GeneratedAt, 0).UTC(),
		BaseCurrency: m.BaseCurrency,
		Predictions:  make([]PredictionResult, 0, len(m.Predictions)),
	}
	for _, p := range m.Predictions {
		s.Predictions = append(s.Predictions, PredictionResult{
			Currency:         p.Currency,
			CurrentRate:      p.CurrentRate,
			PredictedRate:    p.PredictedRate,
			ChangePercentage: p.ChangePercentage,
			Recommendation:   p.Recommendation,
		})
	}
	return s
}
