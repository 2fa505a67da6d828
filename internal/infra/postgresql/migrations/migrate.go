package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/mention-relay/internal/domain"
	"github.com/kursadbilgin/mention-relay/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createPendingNotificationsTable(),
		createProcessedCommentsTable(),
		createRecipientsTable(),
		createSettingsTable(),
	})

	return m.Migrate()
}

func createPendingNotificationsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_pending_notifications",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.PendingNotificationModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_pending_next_send_at ON pending_notifications (next_send_at)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.PendingNotificationModel{})
		},
	}
}

func createProcessedCommentsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_processed_comments",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ProcessedCommentModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_processed_processed_at ON processed_comments (processed_at)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ProcessedCommentModel{})
		},
	}
}

func createRecipientsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_recipients",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.RecipientModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.RecipientModel{})
		},
	}
}

// createSettingsTable also seeds the delivery switch so a fresh deploy
// starts enabled.
func createSettingsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_settings",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.SettingModel{}); err != nil {
				return err
			}
			return tx.Exec(
				`INSERT INTO settings (key, value, updated_at) VALUES (?, 'true', NOW()) ON CONFLICT (key) DO NOTHING`,
				domain.SettingServiceEnabled,
			).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.SettingModel{})
		},
	}
}
