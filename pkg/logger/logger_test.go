package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "info")

	l.Info("prediction done",
		String("currency", "EUR"),
		Float64("change_pct", -0.14),
		Int("points", 30),
		Error(errors.New("boom")),
	)

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v (%q)", err, buf.String())
	}
	if got["message"] != "prediction done" {
		t.Fatalf("message=%v", got["message"])
	}
	if got["currency"] != "EUR" {
		t.Fatalf("currency=%v", got["currency"])
	}
	if got["change_pct"] != -0.14 {
		t.Fatalf("change_pct=%v", got["change_pct"])
	}
	if got["points"] != float64(30) {
		t.Fatalf("points=%v", got["points"])
	}
	if got["error"] != "boom" {
		t.Fatalf("error=%v", got["error"])
	}
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn")
	l.Info("hidden")
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected nothing below warn, got %q", buf.String())
	}
	l.Warn("shown")
	if buf.Len() == 0 {
		t.Fatal("expected warn output")
	}
}

func TestWithCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "debug").With(String("component", "scheduler"))
	l.Debug("tick")

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["component"] != "scheduler" {
		t.Fatalf("component=%v", got["component"])
	}
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	l.Error("ignored", Error(nil))
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(&Config{Level: "loud", Output: "stdout"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
