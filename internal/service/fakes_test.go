package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/mention-relay/internal/domain"
	"github.com/kursadbilgin/mention-relay/internal/provider"
	"github.com/kursadbilgin/mention-relay/internal/repository"
)

type fakePendingRepo struct {
	upsertOrShiftFn   func(ctx context.Context, p *domain.PendingNotification) error
	deleteFn          func(ctx context.Context, workItemID, recipientID int64) error
	deleteByWorkItem  func(ctx context.Context, workItemID int64) error
	deleteByCommentFn func(ctx context.Context, workItemID, commentID int64) error
	selectDueFn       func(ctx context.Context, now time.Time) ([]repository.DueNotification, error)
	rescheduleFn      func(ctx context.Context, workItemID, recipientID int64, nextSendAt time.Time) error
	statsFn           func(ctx context.Context, limit int) ([]repository.QueueStat, error)
}

func (f *fakePendingRepo) UpsertOrShift(ctx context.Context, p *domain.PendingNotification) error {
	if f.upsertOrShiftFn == nil {
		return nil
	}
	return f.upsertOrShiftFn(ctx, p)
}

func (f *fakePendingRepo) Delete(ctx context.Context, workItemID, recipientID int64) error {
	if f.deleteFn == nil {
		return nil
	}
	return f.deleteFn(ctx, workItemID, recipientID)
}

func (f *fakePendingRepo) DeleteByWorkItem(ctx context.Context, workItemID int64) error {
	if f.deleteByWorkItem == nil {
		return nil
	}
	return f.deleteByWorkItem(ctx, workItemID)
}

func (f *fakePendingRepo) DeleteByComment(ctx context.Context, workItemID, commentID int64) error {
	if f.deleteByCommentFn == nil {
		return nil
	}
	return f.deleteByCommentFn(ctx, workItemID, commentID)
}

func (f *fakePendingRepo) SelectDue(ctx context.Context, now time.Time) ([]repository.DueNotification, error) {
	if f.selectDueFn == nil {
		return nil, nil
	}
	return f.selectDueFn(ctx, now)
}

func (f *fakePendingRepo) Reschedule(ctx context.Context, workItemID, recipientID int64, nextSendAt time.Time) error {
	if f.rescheduleFn == nil {
		return nil
	}
	return f.rescheduleFn(ctx, workItemID, recipientID, nextSendAt)
}

func (f *fakePendingRepo) Stats(ctx context.Context, limit int) ([]repository.QueueStat, error) {
	if f.statsFn == nil {
		return nil, nil
	}
	return f.statsFn(ctx, limit)
}

type fakeProcessedRepo struct {
	existsFn func(ctx context.Context, workItemID, commentID int64) (bool, error)
	recordFn func(ctx context.Context, workItemID, commentID int64) error
	pruneFn  func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (f *fakeProcessedRepo) Exists(ctx context.Context, workItemID, commentID int64) (bool, error) {
	if f.existsFn == nil {
		return false, nil
	}
	return f.existsFn(ctx, workItemID, commentID)
}

func (f *fakeProcessedRepo) Record(ctx context.Context, workItemID, commentID int64) error {
	if f.recordFn == nil {
		return nil
	}
	return f.recordFn(ctx, workItemID, commentID)
}

func (f *fakeProcessedRepo) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if f.pruneFn == nil {
		return 0, nil
	}
	return f.pruneFn(ctx, cutoff)
}

type fakeRecipientRepo struct {
	getByIDFn func(ctx context.Context, id int64) (*domain.Recipient, error)
	upsertFn  func(ctx context.Context, recipient *domain.Recipient) error
	listFn    func(ctx context.Context) ([]domain.Recipient, error)
}

// GetByID defaults to a registered recipient for any id.
func (f *fakeRecipientRepo) GetByID(ctx context.Context, id int64) (*domain.Recipient, error) {
	if f.getByIDFn == nil {
		return &domain.Recipient{ID: id, Address: fmt.Sprintf("chat-%d", id)}, nil
	}
	return f.getByIDFn(ctx, id)
}

func (f *fakeRecipientRepo) Upsert(ctx context.Context, recipient *domain.Recipient) error {
	if f.upsertFn == nil {
		return nil
	}
	return f.upsertFn(ctx, recipient)
}

func (f *fakeRecipientRepo) List(ctx context.Context) ([]domain.Recipient, error) {
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(ctx)
}

type fakeSettingsRepo struct {
	getFn func(ctx context.Context, key string) (string, error)
	setFn func(ctx context.Context, key, value string) error
}

// Get defaults to an enabled service flag, matching the value the
// migrations seed.
func (f *fakeSettingsRepo) Get(ctx context.Context, key string) (string, error) {
	if f.getFn == nil {
		return "true", nil
	}
	return f.getFn(ctx, key)
}

func (f *fakeSettingsRepo) Set(ctx context.Context, key, value string) error {
	if f.setFn == nil {
		return nil
	}
	return f.setFn(ctx, key, value)
}

type fakeProvider struct {
	sendFn func(ctx context.Context, address, text string) (*provider.ProviderResponse, error)
}

func (f *fakeProvider) Send(ctx context.Context, address, text string) (*provider.ProviderResponse, error) {
	if f.sendFn == nil {
		return &provider.ProviderResponse{StatusCode: 200}, nil
	}
	return f.sendFn(ctx, address, text)
}

type fakeRateLimiter struct {
	allowFn func(ctx context.Context, scope string) (bool, error)
	waitFn  func(ctx context.Context, scope string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, scope string) (bool, error) {
	if f.allowFn == nil {
		return true, nil
	}
	return f.allowFn(ctx, scope)
}

func (f *fakeRateLimiter) Wait(ctx context.Context, scope string) error {
	if f.waitFn == nil {
		return nil
	}
	return f.waitFn(ctx, scope)
}
