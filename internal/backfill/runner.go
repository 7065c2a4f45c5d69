// Package backfill links every historical event request to a broadcast.
package backfill

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/martinmuron/prostormat-sub002/internal/broadcasts"
	"github.com/martinmuron/prostormat-sub002/internal/eventrequests"
	"github.com/martinmuron/prostormat-sub002/internal/models"
)

// Source pages through event requests that have no broadcast yet.
type Source interface {
	ListUnlinked(ctx context.Context, after *eventrequests.Cursor, limit int) ([]models.EventRequest, error)
}

// Linker links a single event request.
type Linker interface {
	Link(ctx context.Context, er *models.EventRequest) (*broadcasts.LinkResult, error)
}

// Options tune a run.
type Options struct {
	Workers   int
	BatchSize int
}

// Report summarises one run.
type Report struct {
	Processed      int           `json:"processed"`
	AlreadyLinked  int           `json:"alreadyLinked"`
	LinkedExisting int           `json:"linkedExisting"`
	Created        int           `json:"created"`
	NoMatches      int           `json:"noMatches"`
	Failed         int           `json:"failed"`
	Duration       time.Duration `json:"duration"`
}

func (r *Report) record(res *broadcasts.LinkResult, err error) {
	r.Processed++
	switch {
	case errors.Is(err, broadcasts.ErrNoMatches):
		r.NoMatches++
	case err != nil:
		r.Failed++
	case res.Outcome == broadcasts.OutcomeAlreadyLinked:
		r.AlreadyLinked++
	case res.Outcome == broadcasts.OutcomeLinkedExisting:
		r.LinkedExisting++
	case res.Outcome == broadcasts.OutcomeCreated:
		r.Created++
	}
}

// Runner walks all unlinked event requests once per Run.
type Runner struct {
	source Source
	linker Linker
	opts   Options
	logger *zap.Logger

	running sync.Mutex
}

// NewRunner creates a runner. Non-positive options fall back to 4 workers
// and batches of 100.
func NewRunner(source Source, linker Linker, opts Options, logger *zap.Logger) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{source: source, linker: linker, opts: opts, logger: logger}
}

// ErrRunning is returned when a run is already in progress.
var ErrRunning = errors.New("backfill already running")

// Run links every event request without a broadcast. Per-request failures
// are counted and logged; only listing errors and cancellation abort the run.
// Requests within a page are handled concurrently, each by exactly one
// worker.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if !r.running.TryLock() {
		return nil, ErrRunning
	}
	defer r.running.Unlock()

	start := time.Now()
	report := &Report{}
	var mu sync.Mutex
	var cursor *eventrequests.Cursor

	for {
		page, err := r.source.ListUnlinked(ctx, cursor, r.opts.BatchSize)
		if err != nil {
			report.Duration = time.Since(start)
			return report, err
		}
		if len(page) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.opts.Workers)
		for i := range page {
			er := &page[i]
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				res, err := r.linker.Link(gctx, er)
				if err != nil && !errors.Is(err, broadcasts.ErrNoMatches) {
					r.logger.Warn("backfill link failed",
						zap.String("event_request_id", er.ID.String()),
						zap.Error(err),
					)
				}
				mu.Lock()
				report.record(res, err)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}

		cursor = eventrequests.CursorOf(page[len(page)-1])
		if len(page) < r.opts.BatchSize {
			break
		}
	}

	report.Duration = time.Since(start)
	r.logger.Info("backfill finished",
		zap.Int("processed", report.Processed),
		zap.Int("already_linked", report.AlreadyLinked),
		zap.Int("linked_existing", report.LinkedExisting),
		zap.Int("created", report.Created),
		zap.Int("no_matches", report.NoMatches),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}
