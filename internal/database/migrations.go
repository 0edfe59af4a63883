package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/posts"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationIndexPostsOrdering   = "2026-09-14_index_posts_ordering"
	migrationBackfillPostImageRef = "2026-09-21_backfill_post_image_refs"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationIndexPostsOrdering, apply: indexPostsOrdering},
		{name: migrationBackfillPostImageRef, apply: backfillPostImageRefs},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Pagination walks posts by (post_time, id) descending.
func indexPostsOrdering(db *gorm.DB) error {
	return db.Exec("CREATE INDEX IF NOT EXISTS idx_posts_ordering ON posts (post_time DESC, id DESC)").Error
}

// Rows written before images were mandatory may hold NULL or an empty string.
func backfillPostImageRefs(db *gorm.DB) error {
	return db.Model(&posts.Post{}).
		Where("images IS NULL OR images = ''").
		UpdateColumn("images", "[]").Error
}
