package services

import (
	"context"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"cms-tags/config"
	"cms-tags/events"
	"cms-tags/models"
	"cms-tags/repositories"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.TaggingEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e events.TaggingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) actions() []events.Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Action, len(p.events))
	for i, e := range p.events {
		out[i] = e.Action
	}
	return out
}

type env struct {
	db        *gorm.DB
	svc       TagService
	pages     repositories.PageRepository
	articles  repositories.ArticleRepository
	publisher *recordingPublisher
}

func newEnv(t *testing.T, cloud CloudOptions) env {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Discard,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, config.Migrate(db))

	logger := zap.NewNop()
	pages := repositories.NewPageRepository(db)
	articles := repositories.NewArticleRepository(db)

	registry := NewRegistry()
	RegisterKind(registry, models.KindPage, pages.GetByIDs)
	RegisterKind(registry, models.KindArticle, articles.GetByIDs)

	publisher := &recordingPublisher{}
	svc := NewTagService(
		repositories.NewTagRepository(db, repositories.TagRepositoryOptions{}, logger),
		repositories.NewTaggingRepository(db, logger),
		registry,
		publisher,
		cloud,
		logger,
	)
	return env{db: db, svc: svc, pages: pages, articles: articles, publisher: publisher}
}

func (e env) page(t *testing.T, title string) models.EntityRef {
	t.Helper()
	p := &models.Page{Title: title, Slug: title}
	require.NoError(t, e.pages.Create(context.Background(), p))
	return models.EntityRef{Kind: models.KindPage, ID: p.ID}
}

func (e env) tagAs(t *testing.T, ref models.EntityRef, list string) []models.Tag {
	t.Helper()
	tags, err := e.svc.TagEntity(context.Background(), ref, list, nil)
	require.NoError(t, err)
	return tags
}

func titlesOf(tags []models.Tag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.Title)
	}
	return out
}
