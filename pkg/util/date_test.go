package util

import (
	"testing"
	"time"
)

func TestStartOfDay(t *testing.T) {
	in := time.Date(2024, 10, 10, 10, 10, 10, 5, time.UTC)
	got := StartOfDay(in)
	want := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("unexpected day %v", got)
	}
}

func TestAddDaysCrossesMonth(t *testing.T) {
	got := AddDays(time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC), -1)
	if FormatDay(got) != "2024-02-29" {
		t.Fatalf("unexpected day %s", FormatDay(got))
	}
}

func TestAddDaysAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Bucharest")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	// clocks go forward on 2024-03-31
	got := AddDays(time.Date(2024, 3, 30, 12, 0, 0, 0, loc), 2)
	if FormatDay(got) != "2024-04-01" || got.Hour() != 0 {
		t.Fatalf("unexpected day %v", got)
	}
}
