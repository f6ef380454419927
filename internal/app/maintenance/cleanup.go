package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gymstack/gymstack/internal/models"
	"github.com/gymstack/gymstack/internal/services"
	"github.com/gymstack/gymstack/pkg/logger"
)

const (
	defaultTokenSpec = "@every 5m"
	defaultCacheSpec = "@hourly"
)

// Cleaner runs background maintenance: purging expired or closed check-in
// tokens and pruning stale cache entries. Exhausted tokens that have not
// expired stay put so scans keep reporting the exhausted condition.
type Cleaner struct {
	db       *gorm.DB
	sessions *services.CheckInSessionService
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger

	tokenSchedule string
	cacheSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithTokenSchedule overrides the cron specification for token cleanup.
func WithTokenSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.tokenSchedule = spec
		}
	}
}

// WithCacheSchedule overrides the cron specification for cache entry pruning.
func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner. A nil session service skips token cleanup;
// a nil db skips cache pruning.
func NewCleaner(db *gorm.DB, sessions *services.CheckInSessionService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:            db,
		sessions:      sessions,
		now:           time.Now,
		tokenSchedule: defaultTokenSpec,
		cacheSchedule: defaultCacheSpec,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the cleanup jobs and launches the scheduler.
func (c *Cleaner) Start() error {
	if c.sessions != nil {
		if _, err := c.cron.AddFunc(c.tokenSchedule, func() {
			purged, err := c.sessions.CleanupExpired(context.Background())
			if err != nil {
				c.log.Warn("token cleanup failed", zap.Error(err))
				return
			}
			if purged > 0 {
				c.log.Info("purged check-in tokens", zap.Int64("count", purged))
			}
		}); err != nil {
			return err
		}
	}

	if c.db != nil {
		if _, err := c.cron.AddFunc(c.cacheSchedule, func() {
			if _, err := CleanupCacheEntries(context.Background(), c.db, c.now()); err != nil {
				c.log.Warn("cache cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Used in tests
// and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.sessions != nil {
		if _, err := c.sessions.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.db != nil {
		if _, err := CleanupCacheEntries(ctx, c.db, c.now()); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// CleanupCacheEntries removes expired database cache rows. Rows with a zero
// expiry persist until deleted explicitly.
func CleanupCacheEntries(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Where("expires_at < ? AND expires_at <> ?", now, time.Time{}).
		Delete(&models.CacheEntry{})
	return result.RowsAffected, result.Error
}
