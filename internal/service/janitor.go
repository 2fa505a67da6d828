package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/mention-relay/internal/domain"
	"github.com/kursadbilgin/mention-relay/internal/repository"
	"go.uber.org/zap"
)

const (
	janitorCheckInterval   = time.Hour
	defaultRetentionDays   = 7
	defaultCleanupInterval = 24 * time.Hour
	minProcessedRetention  = 24 * time.Hour
	minCleanupRunInterval  = time.Hour
)

// Janitor prunes aged dedup ledger rows. The last-run marker lives in
// the settings table, so replicas skip runs another instance already
// did.
type Janitor struct {
	processed repository.ProcessedRepository
	settings  repository.SettingsRepository
	logger    *zap.Logger

	retention     time.Duration
	runInterval   time.Duration
	checkInterval time.Duration
	now           func() time.Time
}

func NewJanitor(
	processed repository.ProcessedRepository,
	settings repository.SettingsRepository,
	retentionDays int,
	runIntervalHours int,
	logger *zap.Logger,
) (*Janitor, error) {
	if processed == nil {
		return nil, fmt.Errorf("processed repository is required")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	retention := time.Duration(retentionDays) * 24 * time.Hour
	if retention < minProcessedRetention {
		retention = time.Duration(defaultRetentionDays) * 24 * time.Hour
	}

	runInterval := time.Duration(runIntervalHours) * time.Hour
	if runInterval < minCleanupRunInterval {
		runInterval = defaultCleanupInterval
	}

	return &Janitor{
		processed:     processed,
		settings:      settings,
		logger:        logger,
		retention:     retention,
		runInterval:   runInterval,
		checkInterval: janitorCheckInterval,
		now:           time.Now,
	}, nil
}

func (j *Janitor) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := j.RunOnce(ctx); err != nil && ctx.Err() == nil {
		j.logger.Error("janitor initial run failed", zap.Error(err))
	}

	ticker := time.NewTicker(j.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := j.RunOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				j.logger.Error("janitor run failed", zap.Error(err))
			}
		}
	}
}

// RunOnce prunes when the last recorded run is older than the run
// interval, otherwise it is a no-op.
func (j *Janitor) RunOnce(ctx context.Context) error {
	now := j.now().UTC()

	lastRun, err := j.lastRunAt(ctx)
	if err != nil {
		return err
	}
	if !lastRun.IsZero() && now.Sub(lastRun) < j.runInterval {
		return nil
	}

	cutoff := now.Add(-j.retention)
	pruned, err := j.processed.PruneOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune dedup ledger: %w", err)
	}

	if err := j.settings.Set(ctx, domain.SettingLastCleanupAt, now.Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to record cleanup marker: %w", err)
	}

	j.logger.Info("pruned dedup ledger",
		zap.Int64("rows", pruned),
		zap.Time("cutoff", cutoff),
	)
	return nil
}

func (j *Janitor) lastRunAt(ctx context.Context) (time.Time, error) {
	value, err := j.settings.Get(ctx, domain.SettingLastCleanupAt)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to read cleanup marker: %w", err)
	}

	lastRun, parseErr := time.Parse(time.RFC3339, value)
	if parseErr != nil {
		// A corrupt marker should not block cleanup forever.
		return time.Time{}, nil
	}
	return lastRun, nil
}
