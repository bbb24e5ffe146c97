package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"rangefinder/internal/core/ports"
	"rangefinder/internal/data/queue"
	"rangefinder/internal/data/rangestore"
	"rangefinder/internal/shared/observability"
)

const (
	writeQueueCapacity = 256
	writeBatchSize     = 32
	writeFlushInterval = 100 * time.Millisecond
)

func (a *App) initWriteQueue() error {
	if a == nil || a.store == nil {
		return nil
	}
	a.writeQueue = queue.NewMemoryQueue(writeQueueCapacity)
	return a.startWriteWorker()
}

func (a *App) startWriteWorker() error {
	if a == nil || a.writeQueue == nil || a.workerCancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.workerCancel = cancel
	a.workerDone = make(chan struct{})
	go a.runWriteWorker(ctx)
	return nil
}

func (a *App) runWriteWorker(ctx context.Context) {
	defer close(a.workerDone)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		batch, err := a.writeQueue.DequeueBatch(ctx, writeBatchSize, writeFlushInterval)
		if errors.Is(err, context.Canceled) {
			return
		}
		if err != nil && !errors.Is(err, io.EOF) {
			slog.Warn("write queue dequeue failed", "error", err)
			continue
		}

		if len(batch) > 0 {
			started := time.Now()
			if applyErr := a.applyWriteBatch(batch); applyErr != nil {
				observability.WriteQueueApplyErrorsTotal.Inc()
				slog.Warn("write worker apply failed", "error", applyErr, "batch_size", len(batch))
			} else {
				observability.WriteQueueProcessedTotal.Add(float64(len(batch)))
				observability.WriteQueueFlushLatencySeconds.Observe(time.Since(started).Seconds())
			}
		}
		a.updateQueueMetrics()
		if errors.Is(err, io.EOF) {
			return
		}
	}
}

// enqueueWrite hands req to the writer. A full queue falls back to a
// synchronous write.
func (a *App) enqueueWrite(req ports.WriteRequest) error {
	if a == nil || a.store == nil {
		return nil
	}
	if a.writeQueue == nil {
		return a.applyWriteBatch([]ports.WriteRequest{req})
	}
	switch result := a.writeQueue.Enqueue(req); result {
	case ports.EnqueueAccepted:
		observability.WriteQueueEnqueuedTotal.Inc()
		a.updateQueueMetrics()
		return nil
	case ports.EnqueueDropped:
		observability.WriteQueueDroppedTotal.Inc()
		return a.applyWriteBatch([]ports.WriteRequest{req})
	default:
		return fmt.Errorf("unknown enqueue result %q", result)
	}
}

// applyWriteBatch groups requests by run and writes each group in one
// transaction.
func (a *App) applyWriteBatch(batch []ports.WriteRequest) error {
	if a == nil || a.store == nil || len(batch) == 0 {
		return nil
	}
	byRun := make(map[string][]rangestore.FileRecord)
	for _, req := range batch {
		byRun[req.RunID] = append(byRun[req.RunID], req.File)
	}
	runIDs := make([]string, 0, len(byRun))
	for id := range byRun {
		runIDs = append(runIDs, id)
	}
	sort.Strings(runIDs)
	for _, id := range runIDs {
		if err := a.store.SaveFiles(id, byRun[id]); err != nil {
			return err
		}
	}
	return nil
}

// flushWrites blocks until every request queued so far has been applied.
func (a *App) flushWrites(ctx context.Context) error {
	if a == nil || a.writeQueue == nil {
		return nil
	}
	if err := a.stopWriteWorker(ctx); err != nil {
		return err
	}
	a.writeQueue = queue.NewMemoryQueue(writeQueueCapacity)
	return a.startWriteWorker()
}

func (a *App) stopWriteWorker(ctx context.Context) error {
	if a == nil {
		return nil
	}
	if a.workerCancel != nil {
		a.workerCancel()
		a.workerCancel = nil
	}
	if a.workerDone != nil {
		select {
		case <-a.workerDone:
		case <-ctx.Done():
			return ctx.Err()
		}
		a.workerDone = nil
	}
	if a.writeQueue != nil {
		if err := a.writeQueue.Close(); err != nil {
			return err
		}
	}
	if err := a.drainWriteQueue(ctx); err != nil {
		return err
	}
	a.writeQueue = nil
	a.updateQueueMetrics()
	return nil
}

func (a *App) drainWriteQueue(ctx context.Context) error {
	if a == nil || a.writeQueue == nil {
		return nil
	}
	for {
		batch, err := a.writeQueue.DequeueBatch(ctx, writeBatchSize, 0)
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if len(batch) > 0 {
			if applyErr := a.applyWriteBatch(batch); applyErr != nil {
				return applyErr
			}
			observability.WriteQueueProcessedTotal.Add(float64(len(batch)))
		}
		if errors.Is(err, io.EOF) || len(batch) == 0 {
			return nil
		}
	}
}

func (a *App) updateQueueMetrics() {
	if a == nil {
		return
	}
	if mq, ok := a.writeQueue.(*queue.MemoryQueue); ok {
		observability.WriteQueueDepth.Set(float64(mq.Len()))
		return
	}
	observability.WriteQueueDepth.Set(0)
}
