package repository

import (
	"context"
	"time"

	"github.com/kursadbilgin/mention-relay/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DueNotification is a due queue row joined with its recipient's
// delivery data.
type DueNotification struct {
	Notification domain.PendingNotification
	Recipient    domain.Recipient
}

// QueueStat aggregates pending rows per recipient for the operator view.
type QueueStat struct {
	RecipientID     int64
	DisplayName     string
	ItemCount       int
	OldestMentionAt time.Time
}

// PendingRepository is the durable queue store keyed by
// (work item, recipient). Upserts and deletes are atomic per key; all
// deletes are idempotent.
type PendingRepository interface {
	UpsertOrShift(ctx context.Context, p *domain.PendingNotification) error
	Delete(ctx context.Context, workItemID, recipientID int64) error
	DeleteByWorkItem(ctx context.Context, workItemID int64) error
	DeleteByComment(ctx context.Context, workItemID, commentID int64) error
	SelectDue(ctx context.Context, now time.Time) ([]DueNotification, error)
	Reschedule(ctx context.Context, workItemID, recipientID int64, nextSendAt time.Time) error
	Stats(ctx context.Context, limit int) ([]QueueStat, error)
}

type GormPendingRepo struct {
	db *gorm.DB
}

func NewGormPendingRepo(db *gorm.DB) *GormPendingRepo {
	return &GormPendingRepo{db: db}
}

// UpsertOrShift inserts the row on first mention, or shifts the
// last-mention snapshot and next send time in place on later mentions.
// first_mention_at and times_sent are never touched on conflict, and a
// stored display title is never overwritten by an empty one.
func (r *GormPendingRepo) UpsertOrShift(ctx context.Context, p *domain.PendingNotification) error {
	if err := p.Validate(); err != nil {
		return err
	}

	model := pendingModelFromDomain(p)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "work_item_id"}, {Name: "recipient_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"last_mention_at":         model.LastMentionAt,
				"last_comment_id":         model.LastCommentID,
				"last_comment_text":       model.LastCommentText,
				"last_comment_text_clean": model.LastCommentTextClean,
				"next_send_at":            model.NextSendAt,
				"display_title":           gorm.Expr("COALESCE(NULLIF(EXCLUDED.display_title, ''), pending_notifications.display_title)"),
				"updated_at":              gorm.Expr("NOW()"),
			}),
		}).
		Create(model).Error
}

func (r *GormPendingRepo) Delete(ctx context.Context, workItemID, recipientID int64) error {
	return r.db.WithContext(ctx).
		Where("work_item_id = ? AND recipient_id = ?", workItemID, recipientID).
		Delete(&PendingNotificationModel{}).Error
}

func (r *GormPendingRepo) DeleteByWorkItem(ctx context.Context, workItemID int64) error {
	return r.db.WithContext(ctx).
		Where("work_item_id = ?", workItemID).
		Delete(&PendingNotificationModel{}).Error
}

func (r *GormPendingRepo) DeleteByComment(ctx context.Context, workItemID, commentID int64) error {
	return r.db.WithContext(ctx).
		Where("work_item_id = ? AND last_comment_id = ?", workItemID, commentID).
		Delete(&PendingNotificationModel{}).Error
}

type dueRow struct {
	PendingNotificationModel
	RecipientAddress     string
	RecipientDisplayName string
	RecipientPhone       string
}

// SelectDue returns every row whose next send time has passed, joined
// with the recipient's delivery address. Rows whose recipient has since
// unregistered are excluded. Ordering is deterministic: by recipient,
// then by next send time.
func (r *GormPendingRepo) SelectDue(ctx context.Context, now time.Time) ([]DueNotification, error) {
	var rows []dueRow
	err := r.db.WithContext(ctx).
		Table("pending_notifications").
		Select(`pending_notifications.*,
			recipients.address AS recipient_address,
			recipients.display_name AS recipient_display_name,
			recipients.phone AS recipient_phone`).
		Joins("JOIN recipients ON recipients.id = pending_notifications.recipient_id").
		Where("pending_notifications.next_send_at <= ?", now).
		Order("pending_notifications.recipient_id ASC, pending_notifications.next_send_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	due := make([]DueNotification, 0, len(rows))
	for i := range rows {
		due = append(due, DueNotification{
			Notification: *pendingModelToDomain(&rows[i].PendingNotificationModel),
			Recipient: domain.Recipient{
				ID:          rows[i].RecipientID,
				Address:     rows[i].RecipientAddress,
				DisplayName: rows[i].RecipientDisplayName,
				Phone:       rows[i].RecipientPhone,
			},
		})
	}

	return due, nil
}

// Reschedule advances the next send time and increments the send
// counter. A vanished row (cleared by ingestion between selection and
// update) is not an error.
func (r *GormPendingRepo) Reschedule(ctx context.Context, workItemID, recipientID int64, nextSendAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&PendingNotificationModel{}).
		Where("work_item_id = ? AND recipient_id = ?", workItemID, recipientID).
		Updates(map[string]any{
			"next_send_at": nextSendAt,
			"times_sent":   gorm.Expr("times_sent + 1"),
			"updated_at":   gorm.Expr("NOW()"),
		}).Error
}

func (r *GormPendingRepo) Stats(ctx context.Context, limit int) ([]QueueStat, error) {
	if limit < 1 {
		limit = 10
	}

	var stats []QueueStat
	err := r.db.WithContext(ctx).
		Table("pending_notifications").
		Select(`pending_notifications.recipient_id,
			COALESCE(recipients.display_name, '') AS display_name,
			COUNT(*) AS item_count,
			MIN(pending_notifications.last_mention_at) AS oldest_mention_at`).
		Joins("LEFT JOIN recipients ON recipients.id = pending_notifications.recipient_id").
		Group("pending_notifications.recipient_id, recipients.display_name").
		Order("oldest_mention_at ASC").
		Limit(limit).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}

	return stats, nil
}
