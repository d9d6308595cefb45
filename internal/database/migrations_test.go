package database

import (
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vinylvision/backend/internal/library"
)

func TestApplyMigrationsRenamesLegacySnapshotKey(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&library.Snapshot{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	legacy := library.Snapshot{
		Key:             "vinylVisionLibrary",
		Payload:         "[]",
		UpdatedAtMillis: 1,
	}
	if err := database.Create(&legacy).Error; err != nil {
		testContext.Fatalf("failed to insert legacy snapshot: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var renamed library.Snapshot
	if err := database.Where("key = ?", "vinyl-vision-library").Take(&renamed).Error; err != nil {
		testContext.Fatalf("expected snapshot under canonical key: %v", err)
	}
	var legacyCount int64
	if err := database.Model(&library.Snapshot{}).Where("key = ?", "vinylVisionLibrary").Count(&legacyCount).Error; err != nil {
		testContext.Fatalf("failed to count legacy rows: %v", err)
	}
	if legacyCount != 0 {
		testContext.Fatalf("expected legacy key row to be gone, found %d", legacyCount)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationRenameLegacySnapshotKey).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
}

func TestApplyMigrationsKeepsCanonicalRow(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "both.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&library.Snapshot{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	rows := []library.Snapshot{
		{Key: "vinylVisionLibrary", Payload: `[{"id":"stale"}]`, UpdatedAtMillis: 1},
		{Key: "vinyl-vision-library", Payload: `[{"id":"fresh"}]`, UpdatedAtMillis: 2},
	}
	for index := range rows {
		if err := database.Create(&rows[index]).Error; err != nil {
			testContext.Fatalf("failed to insert snapshot: %v", err)
		}
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var kept library.Snapshot
	if err := database.Where("key = ?", "vinyl-vision-library").Take(&kept).Error; err != nil {
		testContext.Fatalf("expected canonical row to survive: %v", err)
	}
	if kept.Payload != `[{"id":"fresh"}]` {
		testContext.Fatalf("canonical row overwritten: %s", kept.Payload)
	}
}
