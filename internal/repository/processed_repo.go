package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProcessedRepository is the dedup ledger for webhook replays. A
// comment is recorded before any queue mutation it triggers, so a
// crash between the two can at worst drop a notification, never
// duplicate one.
type ProcessedRepository interface {
	Exists(ctx context.Context, workItemID, commentID int64) (bool, error)
	Record(ctx context.Context, workItemID, commentID int64) error
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type GormProcessedRepo struct {
	db *gorm.DB
}

func NewGormProcessedRepo(db *gorm.DB) *GormProcessedRepo {
	return &GormProcessedRepo{db: db}
}

func (r *GormProcessedRepo) Exists(ctx context.Context, workItemID, commentID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&ProcessedCommentModel{}).
		Where("work_item_id = ? AND comment_id = ?", workItemID, commentID).
		Count(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// Record marks the comment as seen. Recording the same comment twice is
// a no-op, concurrent deliveries of the same webhook race safely on the
// primary key.
func (r *GormProcessedRepo) Record(ctx context.Context, workItemID, commentID int64) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&ProcessedCommentModel{
			WorkItemID:  workItemID,
			CommentID:   commentID,
			ProcessedAt: time.Now().UTC(),
		}).Error
}

func (r *GormProcessedRepo) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("processed_at < ?", cutoff).
		Delete(&ProcessedCommentModel{})

	return result.RowsAffected, result.Error
}
