package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationRenameLegacySnapshotKey = "2026-08-12_rename_legacy_snapshot_key"

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
		{name: migrationRenameLegacySnapshotKey, apply: renameLegacySnapshotKey},
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

// Early builds stored the snapshot under a camel-cased key. Move the row to
// the canonical key, keeping the newer row when both exist.
func renameLegacySnapshotKey(db *gorm.DB) error {
	const update = `UPDATE library_snapshots SET key = 'vinyl-vision-library'
		WHERE key = 'vinylVisionLibrary'
		AND NOT EXISTS (SELECT 1 FROM library_snapshots WHERE key = 'vinyl-vision-library');`
	if err := db.Exec(update).Error; err != nil {
		return err
	}
	return db.Exec(`DELETE FROM library_snapshots WHERE key = 'vinylVisionLibrary';`).Error
}
