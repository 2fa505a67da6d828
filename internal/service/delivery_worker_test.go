package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kursadbilgin/mention-relay/internal/domain"
	"github.com/kursadbilgin/mention-relay/internal/observability"
	"github.com/kursadbilgin/mention-relay/internal/provider"
	"github.com/kursadbilgin/mention-relay/internal/repository"
	"go.uber.org/zap"
)

func newDeliveryWorker(
	t *testing.T,
	pending *fakePendingRepo,
	settings *fakeSettingsRepo,
	prov *fakeProvider,
	cfg DeliveryWorkerConfig,
) *DeliveryWorker {
	t.Helper()

	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Minute
	}
	if cfg.RepeatIntervalHours == 0 {
		cfg.RepeatIntervalHours = 3
	}
	if cfg.TTL == 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.SendRetryMax == 0 {
		cfg.SendRetryMax = 3
	}

	w, err := NewDeliveryWorker(
		pending,
		settings,
		newTestWindow(t),
		prov,
		&fakeRateLimiter{},
		NewFormatter(50, 50, ""),
		cfg,
		zap.NewNop(),
		observability.NewMetrics(),
	)
	if err != nil {
		t.Fatalf("NewDeliveryWorker() error = %v", err)
	}

	w.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	w.randIntn = func(n int) int { return 0 }
	return w
}

func dueRow(workItemID, recipientID int64, firstMention time.Time) repository.DueNotification {
	return repository.DueNotification{
		Notification: domain.PendingNotification{
			WorkItemID:           workItemID,
			RecipientID:          recipientID,
			FirstMentionAt:       firstMention,
			LastMentionAt:        firstMention,
			LastCommentTextClean: "please look",
			DisplayTitle:         "Some item",
			NextSendAt:           firstMention.Add(3 * time.Hour),
		},
		Recipient: domain.Recipient{ID: recipientID, Address: "chat-1", DisplayName: "Maria"},
	}
}

func TestTickSkipsWhenDisabled(t *testing.T) {
	t.Parallel()

	pending := &fakePendingRepo{
		selectDueFn: func(ctx context.Context, now time.Time) ([]repository.DueNotification, error) {
			t.Fatal("SelectDue() must not run when the service is disabled")
			return nil, nil
		},
	}
	settings := &fakeSettingsRepo{
		getFn: func(ctx context.Context, key string) (string, error) {
			return "false", nil
		},
	}

	w := newDeliveryWorker(t, pending, settings, &fakeProvider{}, DeliveryWorkerConfig{})
	w.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	if err := w.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
}

func TestTickSkipsDuringQuietHours(t *testing.T) {
	t.Parallel()

	pending := &fakePendingRepo{
		selectDueFn: func(ctx context.Context, now time.Time) ([]repository.DueNotification, error) {
			t.Fatal("SelectDue() must not run inside the quiet window")
			return nil, nil
		},
	}

	w := newDeliveryWorker(t, pending, &fakeSettingsRepo{}, &fakeProvider{}, DeliveryWorkerConfig{})
	w.now = func() time.Time { return time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC) }

	if err := w.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
}

func TestTickMissingOrUnreadableFlagTreatedAsDisabled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		getFn func(ctx context.Context, key string) (string, error)
	}{
		{
			name: "missing flag",
			getFn: func(ctx context.Context, key string) (string, error) {
				return "", domain.ErrNotFound
			},
		},
		{
			name: "unparseable flag",
			getFn: func(ctx context.Context, key string) (string, error) {
				return "maybe", nil
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pending := &fakePendingRepo{
				selectDueFn: func(ctx context.Context, now time.Time) ([]repository.DueNotification, error) {
					t.Fatal("SelectDue() must not run without a readable service flag")
					return nil, nil
				},
			}
			settings := &fakeSettingsRepo{getFn: tt.getFn}

			w := newDeliveryWorker(t, pending, settings, &fakeProvider{}, DeliveryWorkerConfig{})
			w.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

			if err := w.Tick(context.Background()); err != nil {
				t.Fatalf("Tick() error = %v", err)
			}
		})
	}
}

func TestTickDeliversAndReschedules(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	var rescheduled []time.Time
	pending := &fakePendingRepo{
		selectDueFn: func(ctx context.Context, tick time.Time) ([]repository.DueNotification, error) {
			return []repository.DueNotification{dueRow(1, 7, now.Add(-4*time.Hour))}, nil
		},
		rescheduleFn: func(ctx context.Context, workItemID, recipientID int64, nextSendAt time.Time) error {
			rescheduled = append(rescheduled, nextSendAt)
			return nil
		},
	}

	sends := 0
	prov := &fakeProvider{
		sendFn: func(ctx context.Context, address, text string) (*provider.ProviderResponse, error) {
			sends++
			if address != "chat-1" {
				t.Errorf("Send() address = %q, want chat-1", address)
			}
			return &provider.ProviderResponse{StatusCode: 200}, nil
		},
	}

	w := newDeliveryWorker(t, pending, &fakeSettingsRepo{}, prov, DeliveryWorkerConfig{})
	w.now = func() time.Time { return now }

	if err := w.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	if sends != 1 {
		t.Fatalf("sends = %d, want 1", sends)
	}
	if len(rescheduled) != 1 {
		t.Fatalf("rescheduled = %d rows, want 1", len(rescheduled))
	}
	if want := now.Add(3 * time.Hour); !rescheduled[0].Equal(want) {
		t.Fatalf("next send = %v, want %v", rescheduled[0], want)
	}
}

func TestTickBatchesPerRecipient(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	pending := &fakePendingRepo{
		selectDueFn: func(ctx context.Context, tick time.Time) ([]repository.DueNotification, error) {
			return []repository.DueNotification{
				dueRow(1, 7, now.Add(-4*time.Hour)),
				dueRow(2, 7, now.Add(-5*time.Hour)),
				dueRow(3, 8, now.Add(-4*time.Hour)),
			}, nil
		},
	}

	sends := 0
	prov := &fakeProvider{
		sendFn: func(ctx context.Context, address, text string) (*provider.ProviderResponse, error) {
			sends++
			return &provider.ProviderResponse{StatusCode: 200}, nil
		},
	}

	w := newDeliveryWorker(t, pending, &fakeSettingsRepo{}, prov, DeliveryWorkerConfig{})
	w.now = func() time.Time { return now }

	if err := w.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if sends != 2 {
		t.Fatalf("sends = %d, want one message per recipient", sends)
	}
}

func TestTickDropsExpiredRows(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	var deleted [][2]int64
	pending := &fakePendingRepo{
		selectDueFn: func(ctx context.Context, tick time.Time) ([]repository.DueNotification, error) {
			return []repository.DueNotification{dueRow(1, 7, now.Add(-25*time.Hour))}, nil
		},
		deleteFn: func(ctx context.Context, workItemID, recipientID int64) error {
			deleted = append(deleted, [2]int64{workItemID, recipientID})
			return nil
		},
		rescheduleFn: func(ctx context.Context, workItemID, recipientID int64, nextSendAt time.Time) error {
			t.Fatal("expired rows must not be rescheduled")
			return nil
		},
	}

	w := newDeliveryWorker(t, pending, &fakeSettingsRepo{}, &fakeProvider{}, DeliveryWorkerConfig{TTL: 24 * time.Hour})
	w.now = func() time.Time { return now }

	if err := w.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(deleted) != 1 || deleted[0] != [2]int64{1, 7} {
		t.Fatalf("deleted = %v, want [[1 7]]", deleted)
	}
}

func TestTickRetriesTransientFailure(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rescheduled := 0
	pending := &fakePendingRepo{
		selectDueFn: func(ctx context.Context, tick time.Time) ([]repository.DueNotification, error) {
			return []repository.DueNotification{dueRow(1, 7, now.Add(-4*time.Hour))}, nil
		},
		rescheduleFn: func(ctx context.Context, workItemID, recipientID int64, nextSendAt time.Time) error {
			rescheduled++
			return nil
		},
	}

	attempts := 0
	prov := &fakeProvider{
		sendFn: func(ctx context.Context, address, text string) (*provider.ProviderResponse, error) {
			attempts++
			if attempts < 3 {
				return nil, &provider.ProviderError{StatusCode: 500, Transient: true}
			}
			return &provider.ProviderResponse{StatusCode: 200}, nil
		},
	}

	w := newDeliveryWorker(t, pending, &fakeSettingsRepo{}, prov, DeliveryWorkerConfig{SendRetryMax: 3})
	w.now = func() time.Time { return now }

	if err := w.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	if rescheduled != 1 {
		t.Fatalf("rescheduled = %d, want 1", rescheduled)
	}
}

func TestTickPermanentFailureStopsRetrying(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rescheduled := 0
	pending := &fakePendingRepo{
		selectDueFn: func(ctx context.Context, tick time.Time) ([]repository.DueNotification, error) {
			return []repository.DueNotification{dueRow(1, 7, now.Add(-4*time.Hour))}, nil
		},
		rescheduleFn: func(ctx context.Context, workItemID, recipientID int64, nextSendAt time.Time) error {
			rescheduled++
			return nil
		},
	}

	attempts := 0
	prov := &fakeProvider{
		sendFn: func(ctx context.Context, address, text string) (*provider.ProviderResponse, error) {
			attempts++
			return nil, &provider.ProviderError{StatusCode: 403, Transient: false}
		},
	}

	w := newDeliveryWorker(t, pending, &fakeSettingsRepo{}, prov, DeliveryWorkerConfig{SendRetryMax: 3})
	w.now = func() time.Time { return now }

	if err := w.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 for a permanent failure", attempts)
	}
	// Failed rows still settle so one dead recipient cannot wedge
	// the queue.
	if rescheduled != 1 {
		t.Fatalf("rescheduled = %d, want 1", rescheduled)
	}
}

func TestRetryDelayPrefersProviderHint(t *testing.T) {
	t.Parallel()

	w := newDeliveryWorker(t, &fakePendingRepo{}, &fakeSettingsRepo{}, &fakeProvider{}, DeliveryWorkerConfig{})

	if got := w.retryDelay(1, 4*time.Second); got != 4*time.Second {
		t.Fatalf("retryDelay with hint = %v, want 4s", got)
	}
	if got := w.retryDelay(1, 0); got != baseRetryDelay {
		t.Fatalf("retryDelay(1) = %v, want %v", got, baseRetryDelay)
	}
	if got := w.retryDelay(2, 0); got != 2*baseRetryDelay {
		t.Fatalf("retryDelay(2) = %v, want %v", got, 2*baseRetryDelay)
	}
	if got := w.retryDelay(10, 0); got != maxRetryDelay {
		t.Fatalf("retryDelay(10) = %v, want cap %v", got, maxRetryDelay)
	}
}

func TestTickSelectDueError(t *testing.T) {
	t.Parallel()

	dbErr := errors.New("db down")
	pending := &fakePendingRepo{
		selectDueFn: func(ctx context.Context, tick time.Time) ([]repository.DueNotification, error) {
			return nil, dbErr
		},
	}

	w := newDeliveryWorker(t, pending, &fakeSettingsRepo{}, &fakeProvider{}, DeliveryWorkerConfig{})
	w.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	if err := w.Tick(context.Background()); !errors.Is(err, dbErr) {
		t.Fatalf("Tick() error = %v, want %v", err, dbErr)
	}
}
