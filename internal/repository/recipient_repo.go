package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/mention-relay/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecipientRepository holds the registered recipients. Only registered
// recipients can be mentioned; ingestion drops mentions of unknown IDs
// without queueing a row.
type RecipientRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Recipient, error)
	Upsert(ctx context.Context, recipient *domain.Recipient) error
	List(ctx context.Context) ([]domain.Recipient, error)
}

type GormRecipientRepo struct {
	db *gorm.DB
}

func NewGormRecipientRepo(db *gorm.DB) *GormRecipientRepo {
	return &GormRecipientRepo{db: db}
}

func (r *GormRecipientRepo) GetByID(ctx context.Context, id int64) (*domain.Recipient, error) {
	var model RecipientModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	return recipientModelToDomain(&model), nil
}

func (r *GormRecipientRepo) Upsert(ctx context.Context, recipient *domain.Recipient) error {
	if err := recipient.Validate(); err != nil {
		return err
	}

	model := recipientModelFromDomain(recipient)
	model.UpdatedAt = time.Now().UTC()

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"address", "display_name", "phone", "updated_at"}),
		}).
		Create(model).Error
}

func (r *GormRecipientRepo) List(ctx context.Context) ([]domain.Recipient, error) {
	var models []RecipientModel
	err := r.db.WithContext(ctx).Order("id ASC").Find(&models).Error
	if err != nil {
		return nil, err
	}

	recipients := make([]domain.Recipient, 0, len(models))
	for i := range models {
		recipients = append(recipients, *recipientModelToDomain(&models[i]))
	}

	return recipients, nil
}
