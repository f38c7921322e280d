package loadtest

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestCreateTestBoard(t *testing.T) {
	tb, err := CreateTestBoard(t.TempDir(), 30)
	if err != nil {
		t.Fatalf("CreateTestBoard() failed: %v", err)
	}
	defer tb.Close()

	if got := len(tb.Store.Cards()); got != 30 {
		t.Errorf("store has %d cards, want 30", got)
	}
	counts, err := tb.Index.ColumnCounts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, col := range columns {
		if counts[col] != 10 {
			t.Errorf("column %s has %d cards, want 10", col, counts[col])
		}
	}
}

func TestConcurrentQueries_Small(t *testing.T) {
	tb, err := CreateTestBoard(t.TempDir(), 60)
	if err != nil {
		t.Fatal(err)
	}
	defer tb.Close()

	stats, err := tb.RunConcurrentQueries(context.Background(), 5, 4)
	if err != nil {
		t.Fatalf("RunConcurrentQueries() failed: %v", err)
	}
	if stats.Errors > 0 {
		t.Errorf("got %d errors during queries", stats.Errors)
	}
	if stats.TotalQueries != 20 {
		t.Errorf("TotalQueries = %d, want 20", stats.TotalQueries)
	}
	if stats.Min > stats.P50 || stats.P50 > stats.P99 || stats.P99 > stats.Max {
		t.Errorf("percentiles out of order: %+v", stats)
	}
}

func TestVerifyConsistency(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping consistency run in short mode")
	}
	tb, err := CreateTestBoard(t.TempDir(), 20)
	if err != nil {
		t.Fatal(err)
	}
	defer tb.Close()

	if err := tb.VerifyConsistency(context.Background(), 4, 200*time.Millisecond); err != nil {
		t.Errorf("VerifyConsistency() failed: %v", err)
	}
	if got := len(tb.Store.Cards()); got != 20 {
		t.Errorf("store has %d cards after moves, want 20", got)
	}
}

func TestRun(t *testing.T) {
	result, err := Run(context.Background(), t.TempDir(), Config{
		Cards:            20,
		Readers:          2,
		QueriesPerReader: 3,
		EditFraction:     0.5,
	})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if result.Reconciled != 10 {
		t.Errorf("Reconciled = %d, want 10", result.Reconciled)
	}
	if result.Queries.TotalQueries != 6 {
		t.Errorf("TotalQueries = %d, want 6", result.Queries.TotalQueries)
	}

	var buf bytes.Buffer
	result.Print(&buf)
	for _, want := range []string{"Board of 20 cards", "Reconcile", "P95"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("Print() missing %q:\n%s", want, buf.String())
		}
	}
}

func TestComputeLatencyStats(t *testing.T) {
	var durations []time.Duration
	for i := 100; i >= 1; i-- {
		durations = append(durations, time.Duration(i)*time.Millisecond)
	}
	s := computeLatencyStats(durations)

	tests := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"min", s.Min, time.Millisecond},
		{"max", s.Max, 100 * time.Millisecond},
		{"p50", s.P50, 51 * time.Millisecond},
		{"p95", s.P95, 96 * time.Millisecond},
		{"p99", s.P99, 100 * time.Millisecond},
		{"mean", s.Mean, 50500 * time.Microsecond},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	if empty := computeLatencyStats(nil); empty.TotalQueries != 0 {
		t.Errorf("empty stats = %+v", empty)
	}
}
