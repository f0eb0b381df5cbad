package cmd

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"cms-tags/config"
	"cms-tags/events"
	"cms-tags/models"
	"cms-tags/repositories"
	"cms-tags/services"
	"cms-tags/site"
)

// app holds the shared dependencies every command builds on.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *gorm.DB
	publisher events.Publisher
}

func newApp() (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := config.InitDB(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaPublisher(cfg.Kafka.BrokerList(), cfg.Kafka.ClientID, cfg.Kafka.Topic, logger)
		logger.Info("Publishing tagging events", zap.Strings("brokers", cfg.Kafka.BrokerList()), zap.String("topic", cfg.Kafka.Topic))
	}

	return &app{cfg: cfg, logger: logger, db: db, publisher: publisher}, nil
}

func (a *app) close() {
	if err := a.publisher.Close(); err != nil {
		a.logger.Warn("Failed to close event publisher", zap.Error(err))
	}
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
	_ = a.logger.Sync()
}

// tagService wires the repositories, entity registry and cloud settings.
// sites may be nil, in which case the site comes from the request context.
func (a *app) tagService(sites site.Resolver) (services.TagService, error) {
	cloud, err := cloudOptions(a.cfg.Tags.Cloud)
	if err != nil {
		return nil, err
	}

	tagRepo := repositories.NewTagRepository(a.db, repositories.TagRepositoryOptions{
		SiteScoped:    a.cfg.Tags.SiteScoped,
		Sites:         sites,
		CreateRetries: a.cfg.Tags.CreateRetries,
	}, a.logger)
	taggingRepo := repositories.NewTaggingRepository(a.db, a.logger)

	pageRepo := repositories.NewPageRepository(a.db)
	articleRepo := repositories.NewArticleRepository(a.db)

	registry := services.NewRegistry()
	services.RegisterKind(registry, models.KindPage, pageRepo.GetByIDs)
	services.RegisterKind(registry, models.KindArticle, articleRepo.GetByIDs)

	return services.NewTagService(tagRepo, taggingRepo, registry, a.publisher, cloud, a.logger), nil
}

func cloudOptions(cfg config.CloudConfig) (services.CloudOptions, error) {
	weighting, err := services.ParseWeighting(cfg.Weighting)
	if err != nil {
		return services.CloudOptions{}, err
	}

	// defaults for unset keys come from config.setDefaults
	return services.CloudOptions{
		Weighting: weighting,
		Bands:     cfg.Bands,
		Threshold: cfg.Threshold,
		Biggest:   cfg.Biggest,
		Smallest:  cfg.Smallest,
	}, nil
}
