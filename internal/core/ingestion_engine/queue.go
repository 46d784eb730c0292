package ingestion_engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/markdave123-py/ragdesk/internal/logger"
)

// Queue runs ingestions in the background on a bounded goroutine pool.
// Submitting blocks while every worker is busy.
type Queue struct {
	pool    *ants.Pool
	ingest  Ingestor
	timeout time.Duration
	log     *zap.Logger
	wg      sync.WaitGroup
}

// NewQueue starts a pool of workers goroutines. Each run gets its own
// timeout, detached from the request that enqueued it.
func NewQueue(ingest Ingestor, workers int, timeout time.Duration, log *zap.Logger) (*Queue, error) {
	if workers <= 0 {
		workers = 1
	}
	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(p any) {
		log.Error("ingestion worker panicked", zap.Any("panic", p))
	}))
	if err != nil {
		return nil, fmt.Errorf("create ingestion pool: %w", err)
	}
	return &Queue{pool: pool, ingest: ingest, timeout: timeout, log: log}, nil
}

// Enqueue schedules req. The outcome is logged; callers poll the file status.
func (q *Queue) Enqueue(req Request) error {
	q.wg.Add(1)
	err := q.pool.Submit(func() {
		defer q.wg.Done()
		log := q.log.With(zap.String("file_id", req.FileID), zap.String("user_id", req.UserID))

		ctx, cancel := withTimeout(logger.WithContext(context.Background(), log), q.timeout)
		defer cancel()

		if _, err := q.ingest.Ingest(ctx, req); err != nil {
			log.Warn("background ingestion failed", zap.Error(err))
		}
	})
	if err != nil {
		q.wg.Done()
		return fmt.Errorf("enqueue ingestion of %s: %w", req.FileID, err)
	}
	return nil
}

// Running reports how many ingestions are in flight.
func (q *Queue) Running() int { return q.pool.Running() }

// Release waits for in-flight runs and stops the pool.
func (q *Queue) Release() {
	q.wg.Wait()
	q.pool.Release()
}
