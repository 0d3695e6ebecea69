package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/UnknownOlympus/coordtrans/internal/metrics"
	"github.com/UnknownOlympus/coordtrans/internal/models"
)

// Fetcher runs one validated query against a provider and reports the outcome as data.
type Fetcher interface {
	Fetch(ctx context.Context, q models.Query) models.ProviderResult
}

// Progress is emitted once per finished row. Index is the row that finished.
type Progress struct {
	Done   int
	Total  int
	Index  int
	Status models.ResultStatus
}

// Executor fans rows out to a bounded worker pool and collects the results in input order.
type Executor struct {
	log        *slog.Logger     // Logger for logging batch activities
	fetcher    Fetcher          // Provider client that performs the lookups
	metrics    *metrics.Metrics // Metrics for tracking batch performance
	numWorkers int              // Maximum number of provider calls in flight
}

// NewExecutor creates a new Executor. numWorkers below 1 is treated as 1.
func NewExecutor(log *slog.Logger, fetcher Fetcher, m *metrics.Metrics, numWorkers int) *Executor {
	if numWorkers < 1 {
		numWorkers = 1
	}

	return &Executor{
		log:        log,
		fetcher:    fetcher,
		metrics:    m,
		numWorkers: numWorkers,
	}
}

// Run processes every row and returns an outcome index-aligned with rows.
//
// Rows carrying a validation error are recorded as failures without a provider call.
// At most numWorkers valid rows are in flight at any time. A failed row never affects
// the others. When ctx is cancelled, rows that have not started are marked cancelled.
// progress may be nil; sends never block.
func (e *Executor) Run(
	ctx context.Context,
	kind models.QueryKind,
	rows []models.Row,
	progress chan<- Progress,
) models.BatchOutcome {
	startTime := time.Now()
	defer func() {
		e.metrics.BatchSeconds.WithLabelValues(kind.String()).Observe(time.Since(startTime).Seconds())
	}()

	outcome := make(models.BatchOutcome, len(rows))
	total := len(rows)
	var done atomic.Int64

	record := func(idx int, result models.ProviderResult) {
		outcome[idx].Result = result
		e.metrics.RowsProcessed.WithLabelValues(kind.String(), result.Status.String()).Inc()

		finished := int(done.Add(1))
		if progress == nil {
			return
		}
		select {
		case progress <- Progress{Done: finished, Total: total, Index: idx, Status: result.Status}:
		default:
		}
	}

	pending := make([]int, 0, len(rows))
	for idx, row := range rows {
		outcome[idx].Row = row
		if !row.Valid() {
			reason := row.ValidationError
			if reason == "" {
				reason = "row has no query"
			}
			record(idx, models.Failure(models.FailureValidation, reason))
			continue
		}
		pending = append(pending, idx)
	}

	if len(pending) == 0 {
		e.log.InfoContext(ctx, "No valid rows to process.", "rows", total)
		return outcome
	}

	numWorkers := min(e.numWorkers, len(pending))
	e.log.InfoContext(
		ctx,
		"Found rows to process. Starting worker pool.",
		"kind", kind.String(),
		"jobs", len(pending),
		"invalid", total-len(pending),
		"num_workers", numWorkers,
	)

	jobs := make(chan int, len(pending))
	var wgr sync.WaitGroup

	for i := 1; i <= numWorkers; i++ {
		wgr.Add(1)
		go e.worker(ctx, i, &wgr, jobs, rows, record)
	}

	for _, idx := range pending {
		jobs <- idx
	}
	close(jobs)

	wgr.Wait()
	e.log.InfoContext(ctx, "Processing batch finished", "kind", kind.String(), "failed", outcome.Failed())

	return outcome
}

// worker processes row indexes from the jobs channel until it is closed.
// Each row is written only to its own slot, so no locking is needed around outcome.
func (e *Executor) worker(
	ctx context.Context,
	idx int,
	wg *sync.WaitGroup,
	jobs <-chan int,
	rows []models.Row,
	record func(int, models.ProviderResult),
) {
	defer wg.Done()
	for rowIdx := range jobs {
		if ctx.Err() != nil {
			record(rowIdx, models.Failure(models.FailureCancelled, "request cancelled"))
			continue
		}

		e.log.DebugContext(ctx, "Processing row", "worker", idx, "row", rowIdx)

		result := e.fetcher.Fetch(ctx, *rows[rowIdx].Query)
		if result.Status != models.StatusSuccess {
			e.log.DebugContext(
				ctx,
				"Row failed",
				"worker", idx,
				"row", rowIdx,
				"kind", string(result.FailureKind),
				"reason", result.ErrorReason,
			)
		}

		record(rowIdx, result)
	}
}
