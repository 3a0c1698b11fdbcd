package workers

import (
	"context"
	"time"

	"github.com/commentpilot/commentpilot/pkg/logger"
)

// LogPruner deletes automation log rows older than the cutoff and returns
// how many were removed.
type LogPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// LogRetentionWorker periodically prunes old automation log rows. The log is
// append-only at the application level; retention is the only thing that
// ever deletes from it.
type LogRetentionWorker struct {
	logs          LogPruner
	logger        *logger.Logger
	retention     time.Duration
	checkInterval time.Duration
	stopCh        chan struct{}
	doneCh        chan struct{}
}

// NewLogRetentionWorker creates a new log retention worker
func NewLogRetentionWorker(
	logs LogPruner,
	logger *logger.Logger,
	retention time.Duration,
	checkInterval time.Duration,
) *LogRetentionWorker {
	if retention == 0 {
		retention = 90 * 24 * time.Hour
	}
	if checkInterval == 0 {
		checkInterval = time.Hour
	}

	return &LogRetentionWorker{
		logs:          logs,
		logger:        logger,
		retention:     retention,
		checkInterval: checkInterval,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Start starts the worker in the background
func (w *LogRetentionWorker) Start(ctx context.Context) {
	w.logger.Info("Starting log retention worker",
		logger.String("retention", w.retention.String()),
		logger.String("interval", w.checkInterval.String()),
	)

	go w.run(ctx)
}

// Stop stops the worker gracefully
func (w *LogRetentionWorker) Stop() {
	w.logger.Info("Stopping log retention worker")
	close(w.stopCh)
	<-w.doneCh
	w.logger.Info("Log retention worker stopped")
}

// run is the main worker loop
func (w *LogRetentionWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	// Run immediately on start
	w.pruneOldLogs(ctx)

	for {
		select {
		case <-ticker.C:
			w.pruneOldLogs(ctx)
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *LogRetentionWorker) pruneOldLogs(ctx context.Context) {
	cutoff := time.Now().Add(-w.retention)

	deleted, err := w.logs.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		w.logger.Errorf("Failed to prune automation logs: %v", err)
		return
	}

	if deleted > 0 {
		w.logger.Info("Pruned old automation logs",
			logger.Int64("deleted", deleted),
			logger.String("cutoff", cutoff.Format(time.RFC3339)),
		)
	}
}
