package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"toolAdvisor/domain"
	"toolAdvisor/pkg/cache"
	"toolAdvisor/pkg/logger"
)

// CacheRepository is the postgres cache level. Entries past expires_at read
// as misses and are removed by Purge.
type CacheRepository struct {
	DB  *gorm.DB
	now func() time.Time
}

var _ cache.Tier = (*CacheRepository)(nil)

func NewCacheRepository(db *gorm.DB) *CacheRepository {
	return &CacheRepository{DB: db, now: time.Now}
}

func (r *CacheRepository) Name() string { return "l3" }

func (r *CacheRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("context error: %w", err)
	}

	var row domain.CacheEntryRow
	err := r.DB.WithContext(ctx).
		Where("key = ? AND expires_at > ?", key, r.now()).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return row.Payload, true, nil
}

// Set stores value; a zero ttl keeps it for a day.
func (r *CacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	row := domain.CacheEntryRow{
		Key:       key,
		Payload:   value,
		ExpiresAt: r.now().Add(ttl),
	}
	err := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "expires_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (r *CacheRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.DB.WithContext(ctx).Where("key IN ?", keys).Delete(&domain.CacheEntryRow{}).Error; err != nil {
		return fmt.Errorf("failed to delete cache entries: %w", err)
	}
	return nil
}

// Purge removes expired rows and reports how many went.
func (r *CacheRepository) Purge(ctx context.Context) (int64, error) {
	result := r.DB.WithContext(ctx).Where("expires_at <= ?", r.now()).Delete(&domain.CacheEntryRow{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge cache entries: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// StartPurge removes expired rows every interval until ctx is done.
func (r *CacheRepository) StartPurge(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := r.Purge(ctx)
				if err != nil {
					logger.Warn("cache_purge_failed", "error", err)
					continue
				}
				if n > 0 {
					logger.Debug("cache_purged", "rows", n)
				}
			}
		}
	}()
}
