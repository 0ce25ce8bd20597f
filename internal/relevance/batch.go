package relevance

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"LegislativeClipping/internal/domain"
)

// Result pairs a batch input position with its outcome.
type Result struct {
	Scored domain.ScoredNewsRecord
	Err    error
}

// ClassifyAll scores records concurrently with at most workers goroutines.
// results[i] always corresponds to records[i]; a failing record does not stop the batch.
func (c *Classifier) ClassifyAll(ctx context.Context, records []domain.NewsRecord, now time.Time, workers int) []Result {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(records))
	var g errgroup.Group
	g.SetLimit(workers)

	for i := range records {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Result{Err: err}
				return nil
			}
			scored, err := c.Classify(records[i], now)
			results[i] = Result{Scored: scored, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
