package auth

import (
	domainToken "account-service/internal/domain/token"
	"account-service/internal/events"
	"account-service/internal/logger"
	"context"
	"time"

	"go.uber.org/zap"
)

const defaultCleanupBatchSize = 500

// TokenCleaner purges expired tokens and tokens consumed longer than the
// retention window ago.
type TokenCleaner struct {
	tokens    domainToken.Repository
	publisher events.Publisher
	retention time.Duration
	batchSize int
}

func NewTokenCleaner(tokens domainToken.Repository, publisher events.Publisher, retention time.Duration, batchSize int) *TokenCleaner {
	if batchSize <= 0 {
		batchSize = defaultCleanupBatchSize
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &TokenCleaner{
		tokens:    tokens,
		publisher: publisher,
		retention: retention,
		batchSize: batchSize,
	}
}

// CleanupTokens runs one pass at now and returns the number of deleted tokens.
func (c *TokenCleaner) CleanupTokens(ctx context.Context, now time.Time) (int64, error) {
	now = now.UTC()
	consumedBefore := now.Add(-c.retention)

	var total int64
	for {
		snapshot, err := c.tokens.FindStale(ctx, now, consumedBefore, c.batchSize)
		if err != nil {
			return total, err
		}

		ids := domainToken.PurgePlan(now, c.retention, snapshot)
		if len(ids) == 0 {
			break
		}

		deleted, err := c.tokens.DeleteStale(ctx, ids, now, consumedBefore)
		if err != nil {
			return total, err
		}
		total += deleted

		if len(snapshot) < c.batchSize || deleted == 0 {
			break
		}
	}

	if total > 0 {
		if err := c.publisher.Publish(ctx, events.New(events.TokensPurged, nil, map[string]interface{}{"count": total})); err != nil {
			logger.Warn("Failed to publish purge event", zap.Error(err))
		}
	}

	return total, nil
}

// StartTokenCleanupJob starts a background job to clean up stale tokens
func (c *TokenCleaner) StartTokenCleanupJob(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Token cleanup job started",
		zap.Duration("interval", interval),
		zap.Duration("consumed_retention", c.retention),
	)

	c.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Token cleanup job stopped")
			return
		case <-ticker.C:
			c.runOnce(ctx)
		}
	}
}

func (c *TokenCleaner) runOnce(ctx context.Context) {
	deleted, err := c.CleanupTokens(ctx, time.Now())
	if err != nil {
		logger.Error("Failed to clean up tokens",
			zap.Int64("deleted", deleted),
			zap.Error(err),
			logger.Event("token_cleanup_failed"),
		)
		return
	}

	logger.Debug("Stale tokens cleaned up",
		zap.Int64("deleted", deleted),
		logger.Event("token_cleanup"),
	)
}
