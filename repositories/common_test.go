package repositories

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"cms-tags/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Discard,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Tag{},
		&models.Tagging{},
		&models.Page{},
		&models.Article{},
	))
	return db
}

func page(id uint) models.EntityRef {
	return models.EntityRef{Kind: models.KindPage, ID: id}
}

type fixture struct {
	db       *gorm.DB
	tags     TagRepository
	taggings TaggingRepository
}

func newFixture(t *testing.T) fixture {
	db := newTestDB(t)
	logger := zap.NewNop()
	return fixture{
		db:       db,
		tags:     NewTagRepository(db, TagRepositoryOptions{}, logger),
		taggings: NewTaggingRepository(db, logger),
	}
}
