package services

import (
	"context"
	"time"

	"rag-knowledge-platform/internal/logger"

	"github.com/go-co-op/gocron"
)

// CleanupService periodically settles documents stuck in pending past their
// deadline and purges old failed records with their blobs.
type CleanupService struct {
	scheduler *gocron.Scheduler
	store     *DocumentStore
	blobs     *BlobStore

	pendingDeadline time.Duration
	failedRetention time.Duration
}

func NewCleanupService(store *DocumentStore, blobs *BlobStore, pendingDeadlineMinutes, failedRetentionDays int) *CleanupService {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	return &CleanupService{
		scheduler:       s,
		store:           store,
		blobs:           blobs,
		pendingDeadline: time.Duration(pendingDeadlineMinutes) * time.Minute,
		failedRetention: time.Duration(failedRetentionDays) * 24 * time.Hour,
	}
}

// Start registers the jobs and runs the scheduler in the background.
func (c *CleanupService) Start() error {
	if _, err := c.scheduler.Every(15 * time.Minute).Tag("fail-stale-pending").Do(c.failStalePending); err != nil {
		return err
	}
	if _, err := c.scheduler.Every(24 * time.Hour).Tag("purge-failed").Do(c.purgeFailed); err != nil {
		return err
	}
	c.scheduler.StartAsync()
	logger.Info("cleanup scheduler started",
		"pending_deadline", c.pendingDeadline.String(),
		"failed_retention", c.failedRetention.String())
	return nil
}

func (c *CleanupService) Stop() {
	c.scheduler.Stop()
}

func (c *CleanupService) failStalePending() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	n, err := c.store.FailStalePending(ctx, time.Now().Add(-c.pendingDeadline))
	if err != nil {
		logger.Error("stale pending sweep failed", "error", err)
		return
	}
	if n > 0 {
		logger.Info("stale pending documents marked failed", "count", n)
	}
}

func (c *CleanupService) purgeFailed() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	n, paths, err := c.store.PurgeFailedBefore(ctx, time.Now().Add(-c.failedRetention))
	if err != nil {
		logger.Error("failed document purge failed", "error", err)
		return
	}
	c.blobs.Remove(paths...)
	if n > 0 {
		logger.Info("aged failed documents purged", "count", n)
	}
}
