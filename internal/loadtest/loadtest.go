// Package loadtest measures how a board behaves at size.
//
// It builds a board with many cards, then times the operations a large board
// leans on: loading, reconciling a batch of external edits, and concurrent
// searches against the index while cards move.
package loadtest

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/mschirtzinger/mdboard/internal/format"
	"github.com/mschirtzinger/mdboard/internal/index"
	"github.com/mschirtzinger/mdboard/internal/logging"
	"github.com/mschirtzinger/mdboard/internal/store"
)

// Config sizes a load test.
type Config struct {
	Cards            int
	Readers          int
	QueriesPerReader int
	// EditFraction of the cards is rewritten behind the store's back before
	// reconciliation is timed.
	EditFraction float64
}

// DefaultConfig returns a medium-sized run.
func DefaultConfig() Config {
	return Config{Cards: 500, Readers: 20, QueriesPerReader: 10, EditFraction: 0.1}
}

// TestBoard is a populated board with its index.
type TestBoard struct {
	Root  string
	Store *store.Store
	Index *index.DB
	Cards int

	stopFollow func()
}

// LatencyStats summarizes a set of timed operations.
type LatencyStats struct {
	Min          time.Duration
	Max          time.Duration
	Mean         time.Duration
	P50          time.Duration
	P95          time.Duration
	P99          time.Duration
	TotalQueries int
	Errors       int
}

// Result is the outcome of Run.
type Result struct {
	Cards      int           `json:"cards"`
	Populate   time.Duration `json:"populate_ns"`
	Load       time.Duration `json:"load_ns"`
	Reconcile  time.Duration `json:"reconcile_ns"`
	Reconciled int           `json:"reconciled"`
	Queries    *LatencyStats `json:"queries"`
}

var columns = []string{"todo", "doing", "done"}

// CreateTestBoard initializes a board at root and adds numCards cards spread
// over its columns, a third of them labeled.
func CreateTestBoard(root string, numCards int) (*TestBoard, error) {
	if err := store.Init(root, "Load test", format.Markdown{}); err != nil {
		return nil, err
	}
	st, err := store.Open(root, format.Markdown{}, store.WithLogger(logging.Discard()))
	if err != nil {
		return nil, err
	}
	if _, err := st.AddLabel("Bug", "#ff0000"); err != nil {
		return nil, err
	}

	for i := 0; i < numCards; i++ {
		var labels []string
		if i%3 == 0 {
			labels = []string{"bug"}
		}
		title := fmt.Sprintf("Card %05d", i)
		body := fmt.Sprintf("Load test card %d in batch %d\n", i, i/100)
		if _, err := st.CreateCard(columns[i%len(columns)], title, body, labels); err != nil {
			return nil, fmt.Errorf("failed to create %q: %w", title, err)
		}
	}

	// Index after populating; following every create would rebuild n times.
	db, err := index.Open(index.Memory)
	if err != nil {
		return nil, err
	}
	stop, err := index.Follow(db, st, logging.Discard())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &TestBoard{Root: root, Store: st, Index: db, Cards: numCards, stopFollow: stop}, nil
}

// Close stops index updates and closes the index.
func (tb *TestBoard) Close() error {
	if tb.stopFollow != nil {
		tb.stopFollow()
		tb.stopFollow = nil
	}
	if tb.Index != nil {
		return tb.Index.Close()
	}
	return nil
}

// EditExternally appends a line to n card files without going through the
// store, the way a sync client delivers edits.
func (tb *TestBoard) EditExternally(n int) error {
	cards := tb.Store.Cards()
	if n > len(cards) {
		n = len(cards)
	}
	for _, c := range cards[:n] {
		path, err := tb.Store.Path(c.ID)
		if err != nil {
			return err
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(f, "edited elsewhere\n")
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// RunConcurrentQueries runs numReaders goroutines that each search the index
// queriesPerReader times and returns the combined latencies.
func (tb *TestBoard) RunConcurrentQueries(ctx context.Context, numReaders, queriesPerReader int) (*LatencyStats, error) {
	var wg sync.WaitGroup
	resultsChan := make(chan []time.Duration, numReaders)
	errorsChan := make(chan error, numReaders)

	for i := 0; i < numReaders; i++ {
		wg.Add(1)
		go func(reader int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(reader)))
			durations := make([]time.Duration, 0, queriesPerReader)

			for j := 0; j < queriesPerReader; j++ {
				start := time.Now()
				_, err := tb.Index.Find(ctx, randomQuery(rng))
				durations = append(durations, time.Since(start))
				if err != nil {
					errorsChan <- fmt.Errorf("reader %d query %d failed: %w", reader, j, err)
					return
				}
			}
			resultsChan <- durations
		}(i)
	}

	wg.Wait()
	close(resultsChan)
	close(errorsChan)

	var errorCount int
	for range errorsChan {
		errorCount++
	}
	var all []time.Duration
	for durations := range resultsChan {
		all = append(all, durations...)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no successful queries completed")
	}

	stats := computeLatencyStats(all)
	stats.Errors = errorCount
	return stats, nil
}

func randomQuery(rng *rand.Rand) index.Query {
	switch rng.Intn(3) {
	case 0:
		return index.Query{Text: fmt.Sprintf("batch %d", rng.Intn(5))}
	case 1:
		return index.Query{Column: columns[rng.Intn(len(columns))], Limit: 50}
	default:
		return index.Query{Label: "bug", Limit: 50}
	}
}

// VerifyConsistency searches from numReaders goroutines while one writer
// moves cards between columns, and fails on any result that names a column
// the board does not have or a card without an ID.
func (tb *TestBoard) VerifyConsistency(ctx context.Context, numReaders int, duration time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	var wg sync.WaitGroup
	errorsChan := make(chan error, numReaders+1)
	board := tb.Store.Board()

	wg.Add(1)
	go func() {
		defer wg.Done()
		cards := tb.Store.Cards()
		for i := 0; ctx.Err() == nil; i++ {
			c := cards[i%len(cards)]
			if err := tb.Store.MoveCard(c.ID, columns[(i+1)%len(columns)], -1); err != nil {
				errorsChan <- fmt.Errorf("move %q failed: %w", c.Title, err)
				return
			}
		}
	}()

	for i := 0; i < numReaders; i++ {
		wg.Add(1)
		go func(reader int) {
			defer wg.Done()
			for ctx.Err() == nil {
				results, err := tb.Index.Find(ctx, index.Query{Text: "Card"})
				if err != nil {
					if ctx.Err() == nil {
						errorsChan <- fmt.Errorf("reader %d failed: %w", reader, err)
					}
					return
				}
				for _, r := range results {
					if r.ID == "" {
						errorsChan <- fmt.Errorf("reader %d found %q without an ID", reader, r.Title)
						return
					}
					if !board.HasColumn(r.Column) {
						errorsChan <- fmt.Errorf("reader %d found %q in unknown column %q", reader, r.Title, r.Column)
						return
					}
				}
				time.Sleep(time.Millisecond)
			}
		}(i)
	}

	wg.Wait()
	close(errorsChan)
	return <-errorsChan
}

// Run builds a board under root and measures it.
func Run(ctx context.Context, root string, cfg Config) (*Result, error) {
	result := &Result{Cards: cfg.Cards}

	start := time.Now()
	tb, err := CreateTestBoard(root, cfg.Cards)
	if err != nil {
		return nil, err
	}
	defer tb.Close()
	result.Populate = time.Since(start)

	start = time.Now()
	if _, err := store.Open(root, format.Markdown{}, store.WithLogger(logging.Discard())); err != nil {
		return nil, err
	}
	result.Load = time.Since(start)

	if err := tb.EditExternally(int(float64(cfg.Cards) * cfg.EditFraction)); err != nil {
		return nil, err
	}
	start = time.Now()
	reconciled, err := tb.Store.Resync()
	if err != nil {
		return nil, err
	}
	result.Reconcile = time.Since(start)
	result.Reconciled = len(reconciled.Updated)

	if result.Queries, err = tb.RunConcurrentQueries(ctx, cfg.Readers, cfg.QueriesPerReader); err != nil {
		return nil, err
	}
	return result, nil
}

func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}

	return &LatencyStats{
		Min:          sorted[0],
		Max:          sorted[len(sorted)-1],
		Mean:         sum / time.Duration(len(sorted)),
		P50:          sorted[len(sorted)*50/100],
		P95:          sorted[len(sorted)*95/100],
		P99:          sorted[len(sorted)*99/100],
		TotalQueries: len(sorted),
	}
}

// Print writes the result as a short report.
func (r *Result) Print(w io.Writer) {
	fmt.Fprintf(w, "Board of %d cards\n", r.Cards)
	fmt.Fprintf(w, "  Populate:   %v\n", r.Populate.Round(time.Millisecond))
	fmt.Fprintf(w, "  Load:       %v\n", r.Load.Round(time.Microsecond))
	fmt.Fprintf(w, "  Reconcile:  %v (%d cards)\n", r.Reconcile.Round(time.Microsecond), r.Reconciled)
	if r.Queries != nil {
		r.Queries.Print(w)
	}
}

// Print writes the latency statistics.
func (s *LatencyStats) Print(w io.Writer) {
	fmt.Fprintf(w, "Search latency:\n")
	fmt.Fprintf(w, "  Total Queries: %d\n", s.TotalQueries)
	fmt.Fprintf(w, "  Errors:        %d\n", s.Errors)
	fmt.Fprintf(w, "  Min:           %v\n", s.Min)
	fmt.Fprintf(w, "  P50 (Median):  %v\n", s.P50)
	fmt.Fprintf(w, "  Mean:          %v\n", s.Mean)
	fmt.Fprintf(w, "  P95:           %v\n", s.P95)
	fmt.Fprintf(w, "  P99:           %v\n", s.P99)
	fmt.Fprintf(w, "  Max:           %v\n", s.Max)
}
