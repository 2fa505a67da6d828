package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/kursadbilgin/mention-relay/internal/domain"
	"github.com/kursadbilgin/mention-relay/internal/observability"
	"github.com/kursadbilgin/mention-relay/internal/provider"
	"github.com/kursadbilgin/mention-relay/internal/ratelimit"
	"github.com/kursadbilgin/mention-relay/internal/repository"
	"github.com/kursadbilgin/mention-relay/internal/schedule"
	"go.uber.org/zap"
)

const (
	minPollInterval      = time.Second
	minSendRetryMax      = 1
	baseRetryDelay       = time.Second
	maxRetryDelay        = 30 * time.Second
	maxRetryJitterMillis = 250

	deliverScope = "deliver"

	skipReasonDisabled   = "disabled"
	skipReasonQuietHours = "quiet_hours"

	failReasonPermanent = "permanent"
	failReasonExhausted = "retries_exhausted"
)

// DeliveryWorkerConfig carries the delivery loop tunables.
type DeliveryWorkerConfig struct {
	PollInterval        time.Duration
	RepeatIntervalHours float64
	TTL                 time.Duration
	SendRetryMax        int
}

// DeliveryWorker drains the pending queue on a fixed tick. Each tick
// runs to completion before the next starts, so two ticks never fight
// over the same rows.
type DeliveryWorker struct {
	pending   repository.PendingRepository
	settings  repository.SettingsRepository
	window    schedule.Window
	provider  provider.Provider
	limiter   ratelimit.RateLimiter
	formatter *Formatter
	logger    *zap.Logger
	metrics   *observability.Metrics
	cfg       DeliveryWorkerConfig

	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	randIntn func(n int) int
}

func NewDeliveryWorker(
	pending repository.PendingRepository,
	settings repository.SettingsRepository,
	window schedule.Window,
	prov provider.Provider,
	limiter ratelimit.RateLimiter,
	formatter *Formatter,
	cfg DeliveryWorkerConfig,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*DeliveryWorker, error) {
	if pending == nil {
		return nil, fmt.Errorf("pending repository is required")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings repository is required")
	}
	if prov == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if formatter == nil {
		return nil, fmt.Errorf("formatter is required")
	}
	if cfg.PollInterval < minPollInterval {
		cfg.PollInterval = minPollInterval
	}
	if cfg.SendRetryMax < minSendRetryMax {
		cfg.SendRetryMax = minSendRetryMax
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DeliveryWorker{
		pending:   pending,
		settings:  settings,
		window:    window,
		provider:  prov,
		limiter:   limiter,
		formatter: formatter,
		logger:    logger,
		metrics:   metrics,
		cfg:       cfg,
		now:       time.Now,
		sleep:     sleepWithContext,
		randIntn:  rand.Intn,
	}, nil
}

// Start runs the delivery loop until context cancellation.
func (w *DeliveryWorker) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.Tick(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.logger.Error("delivery tick failed", zap.Error(err))
			}
		}
	}
}

// Tick processes one delivery pass: gate checks, due selection, one
// batched message per recipient, then TTL cleanup or rescheduling.
func (w *DeliveryWorker) Tick(ctx context.Context) error {
	now := w.now().UTC()

	enabled, err := w.serviceEnabled(ctx)
	if err != nil {
		return err
	}
	if !enabled {
		w.metrics.IncTickSkipped(skipReasonDisabled)
		return nil
	}

	if w.window.Contains(now) {
		w.metrics.IncTickSkipped(skipReasonQuietHours)
		return nil
	}

	due, err := w.pending.SelectDue(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to select due notifications: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	for _, group := range groupByRecipient(due) {
		if ctx.Err() != nil {
			return nil
		}
		w.deliverGroup(ctx, group, now)
	}

	return nil
}

// serviceEnabled reads the operator flag fresh each tick. A missing or
// unreadable value counts as disabled; migrations seed the flag to
// true, so an absent row means the store is not in a known-good state.
func (w *DeliveryWorker) serviceEnabled(ctx context.Context) (bool, error) {
	value, err := w.settings.Get(ctx, domain.SettingServiceEnabled)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read service flag: %w", err)
	}

	enabled, parseErr := strconv.ParseBool(value)
	if parseErr != nil {
		return false, nil
	}
	return enabled, nil
}

type recipientGroup struct {
	recipient domain.Recipient
	rows      []domain.PendingNotification
}

// groupByRecipient folds due rows into per-recipient batches,
// preserving the repository's deterministic ordering.
func groupByRecipient(due []repository.DueNotification) []recipientGroup {
	groups := make([]recipientGroup, 0, len(due))
	index := make(map[int64]int, len(due))

	for i := range due {
		id := due[i].Recipient.ID
		at, ok := index[id]
		if !ok {
			at = len(groups)
			index[id] = at
			groups = append(groups, recipientGroup{recipient: due[i].Recipient})
		}
		groups[at].rows = append(groups[at].rows, due[i].Notification)
	}

	return groups
}

// deliverGroup sends one batched message and then settles every row in
// the group: expired rows are dropped, the rest are pushed to the next
// reminder slot. Failed sends settle the same way so a recipient with a
// dead chat cannot wedge the queue.
func (w *DeliveryWorker) deliverGroup(ctx context.Context, group recipientGroup, now time.Time) {
	text := w.formatter.FormatBatch(group.rows, now)
	if text == "" {
		return
	}

	sendErr := w.sendWithRetry(ctx, group.recipient.Address, text)
	if sendErr != nil {
		reason := failReasonPermanent
		if provider.IsTransient(sendErr) {
			reason = failReasonExhausted
		}
		w.metrics.IncMessageFailed(reason)
		w.logger.Warn("delivery failed",
			zap.Int64("recipientId", group.recipient.ID),
			zap.Int("items", len(group.rows)),
			zap.String("reason", reason),
			zap.Error(sendErr),
		)
	} else {
		w.metrics.IncMessageSent()
		w.logger.Info("delivered reminder batch",
			zap.Int64("recipientId", group.recipient.ID),
			zap.Int("items", len(group.rows)),
		)
	}

	w.settleGroup(ctx, group, now)
}

func (w *DeliveryWorker) sendWithRetry(ctx context.Context, address, text string) error {
	var lastErr error

	for attempt := 1; attempt <= w.cfg.SendRetryMax; attempt++ {
		if w.limiter != nil {
			if err := w.limiter.Wait(ctx, deliverScope); err != nil {
				return err
			}
		}

		sendStart := w.now()
		_, err := w.provider.Send(ctx, address, text)
		w.metrics.ObserveSendDuration(w.now().Sub(sendStart))

		if err == nil {
			return nil
		}
		lastErr = err

		if !provider.IsTransient(err) {
			return err
		}
		if attempt == w.cfg.SendRetryMax {
			break
		}

		if sleepErr := w.sleep(ctx, w.retryDelay(attempt, provider.RetryAfter(err))); sleepErr != nil {
			return lastErr
		}
	}

	return lastErr
}

// retryDelay backs off exponentially with jitter, but defers to the
// provider's own throttle hint when it gave one.
func (w *DeliveryWorker) retryDelay(attempt int, hint time.Duration) time.Duration {
	if hint > 0 {
		return hint
	}

	delay := baseRetryDelay << (attempt - 1)
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay + time.Duration(w.randIntn(maxRetryJitterMillis))*time.Millisecond
}

func (w *DeliveryWorker) settleGroup(ctx context.Context, group recipientGroup, now time.Time) {
	nextSendAt := w.window.After(now, w.cfg.RepeatIntervalHours)

	for i := range group.rows {
		row := &group.rows[i]

		if row.Expired(now, w.cfg.TTL) {
			if err := w.pending.Delete(ctx, row.WorkItemID, row.RecipientID); err != nil {
				w.logger.Error("failed to drop expired reminder",
					zap.Int64("workItemId", row.WorkItemID),
					zap.Int64("recipientId", row.RecipientID),
					zap.Error(err),
				)
				continue
			}
			w.metrics.IncExpired()
			continue
		}

		if err := w.pending.Reschedule(ctx, row.WorkItemID, row.RecipientID, nextSendAt); err != nil {
			w.logger.Error("failed to reschedule reminder",
				zap.Int64("workItemId", row.WorkItemID),
				zap.Int64("recipientId", row.RecipientID),
				zap.Error(err),
			)
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
