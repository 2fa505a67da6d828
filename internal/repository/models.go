package repository

import (
	"time"

	"github.com/kursadbilgin/mention-relay/internal/domain"
)

// PendingNotificationModel is the persistence model for the
// pending_notifications table. The composite primary key enforces the
// at-most-one-row-per-pair invariant.
type PendingNotificationModel struct {
	WorkItemID           int64     `gorm:"primaryKey;autoIncrement:false"`
	RecipientID          int64     `gorm:"primaryKey;autoIncrement:false"`
	FirstMentionAt       time.Time `gorm:"not null"`
	LastMentionAt        time.Time `gorm:"not null"`
	LastCommentID        int64     `gorm:"not null"`
	LastCommentText      string    `gorm:"type:text;not null"`
	LastCommentTextClean string    `gorm:"type:text;not null"`
	DisplayTitle         string    `gorm:"type:text;not null;default:''"`
	NextSendAt           time.Time `gorm:"not null;index"`
	TimesSent            int       `gorm:"not null;default:0"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (PendingNotificationModel) TableName() string {
	return "pending_notifications"
}

// ProcessedCommentModel is the persistence model for the dedup ledger.
type ProcessedCommentModel struct {
	WorkItemID  int64 `gorm:"primaryKey;autoIncrement:false"`
	CommentID   int64 `gorm:"primaryKey;autoIncrement:false"`
	ProcessedAt time.Time
}

func (ProcessedCommentModel) TableName() string {
	return "processed_comments"
}

// RecipientModel is the persistence model for registered recipients.
type RecipientModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement:false"`
	Address     string `gorm:"type:varchar(255);not null"`
	DisplayName string `gorm:"type:varchar(255);not null;default:''"`
	Phone       string `gorm:"type:varchar(32);not null;default:''"`
	UpdatedAt   time.Time
}

func (RecipientModel) TableName() string {
	return "recipients"
}

// SettingModel is the persistence model for operator settings.
type SettingModel struct {
	Key       string `gorm:"primaryKey;type:varchar(64)"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (SettingModel) TableName() string {
	return "settings"
}

func pendingModelFromDomain(p *domain.PendingNotification) *PendingNotificationModel {
	if p == nil {
		return nil
	}

	return &PendingNotificationModel{
		WorkItemID:           p.WorkItemID,
		RecipientID:          p.RecipientID,
		FirstMentionAt:       p.FirstMentionAt,
		LastMentionAt:        p.LastMentionAt,
		LastCommentID:        p.LastCommentID,
		LastCommentText:      p.LastCommentText,
		LastCommentTextClean: p.LastCommentTextClean,
		DisplayTitle:         p.DisplayTitle,
		NextSendAt:           p.NextSendAt,
		TimesSent:            p.TimesSent,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}

func pendingModelToDomain(m *PendingNotificationModel) *domain.PendingNotification {
	if m == nil {
		return nil
	}

	return &domain.PendingNotification{
		WorkItemID:           m.WorkItemID,
		RecipientID:          m.RecipientID,
		FirstMentionAt:       m.FirstMentionAt,
		LastMentionAt:        m.LastMentionAt,
		LastCommentID:        m.LastCommentID,
		LastCommentText:      m.LastCommentText,
		LastCommentTextClean: m.LastCommentTextClean,
		DisplayTitle:         m.DisplayTitle,
		NextSendAt:           m.NextSendAt,
		TimesSent:            m.TimesSent,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

func recipientModelFromDomain(r *domain.Recipient) *RecipientModel {
	if r == nil {
		return nil
	}

	return &RecipientModel{
		ID:          r.ID,
		Address:     r.Address,
		DisplayName: r.DisplayName,
		Phone:       r.Phone,
		UpdatedAt:   r.UpdatedAt,
	}
}

func recipientModelToDomain(m *RecipientModel) *domain.Recipient {
	if m == nil {
		return nil
	}

	return &domain.Recipient{
		ID:          m.ID,
		Address:     m.Address,
		DisplayName: m.DisplayName,
		Phone:       m.Phone,
		UpdatedAt:   m.UpdatedAt,
	}
}
