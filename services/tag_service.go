package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"cms-tags/events"
	"cms-tags/models"
	"cms-tags/repositories"
)

var (
	ErrTagExists  = errors.New("tag already exists")
	ErrBlankTitle = errors.New("tag title cannot be blank")
)

var listSeparator = regexp.MustCompile(`[,;]\s*`)

type TagService interface {
	IsSiteScoped() bool
	FindOrCreate(ctx context.Context, title string, actorID *uint) (*models.Tag, error)
	Find(ctx context.Context, title string) (*models.Tag, error)
	ParseList(ctx context.Context, text string, create bool, actorID *uint) ([]models.Tag, error)

	CreateTag(ctx context.Context, req models.CreateTagRequest, actorID *uint) (*models.Tag, error)
	GetTags(ctx context.Context) ([]models.Tag, error)
	GetTag(ctx context.Context, id uint) (*models.Tag, error)
	UpdateTag(ctx context.Context, id uint, req models.UpdateTagRequest, actorID *uint) (*models.Tag, error)
	DeleteTag(ctx context.Context, id uint, actorID *uint) error

	MostPopular(ctx context.Context, limit int) ([]models.Tag, error)
	WithCounts(ctx context.Context) ([]models.Tag, error)
	RefreshCounts(ctx context.Context, tags []models.Tag) ([]models.Tag, error)
	EnsurePopularity(ctx context.Context, tags []models.Tag) ([]models.Tag, error)
	Cloud(ctx context.Context, limit int, weighting Weighting) ([]models.Tag, error)

	AttachedTagsOf(ctx context.Context, ref models.EntityRef) ([]models.Tag, error)
	CoincidentWithOne(ctx context.Context, tag models.Tag) ([]models.Tag, error)
	CoincidentWithAll(ctx context.Context, tags []models.Tag) ([]models.Tag, error)

	Apply(ctx context.Context, tagID uint, ref models.EntityRef, actorID *uint) (bool, error)
	Remove(ctx context.Context, tagID uint, ref models.EntityRef, actorID *uint) (bool, error)
	TagEntity(ctx context.Context, ref models.EntityRef, list string, actorID *uint) ([]models.Tag, error)
	RemoveEntity(ctx context.Context, ref models.EntityRef) (int64, error)

	TaggingsOfType(ctx context.Context, tagID uint, kind string) ([]models.Tagging, error)
	CountOfType(ctx context.Context, tagID uint, kind string) (int64, error)
	RelatedEntities(ctx context.Context, tagID uint, kind string) ([]any, error)
}

type tagService struct {
	tagRepo     repositories.TagRepository
	taggingRepo repositories.TaggingRepository
	registry    *Registry
	publisher   events.Publisher
	cloud       CloudOptions
	logger      *zap.Logger
}

func NewTagService(
	tagRepo repositories.TagRepository,
	taggingRepo repositories.TaggingRepository,
	registry *Registry,
	publisher events.Publisher,
	cloud CloudOptions,
	logger *zap.Logger,
) TagService {
	if registry == nil {
		registry = NewRegistry()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &tagService{
		tagRepo:     tagRepo,
		taggingRepo: taggingRepo,
		registry:    registry,
		publisher:   publisher,
		cloud:       cloud,
		logger:      logger,
	}
}

func (s *tagService) IsSiteScoped() bool {
	return s.tagRepo.IsSiteScoped()
}

func (s *tagService) FindOrCreate(ctx context.Context, title string, actorID *uint) (*models.Tag, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrBlankTitle
	}
	return s.tagRepo.FindOrCreate(ctx, title, actorID)
}

func (s *tagService) Find(ctx context.Context, title string) (*models.Tag, error) {
	return s.tagRepo.Find(ctx, strings.TrimSpace(title))
}

// ParseList resolves a comma or semicolon separated list of titles. Blank
// entries are dropped and repeated titles collapse to their first occurrence.
// Without create, titles that do not exist yet are skipped.
func (s *tagService) ParseList(ctx context.Context, text string, create bool, actorID *uint) ([]models.Tag, error) {
	titles := SplitList(text)
	tags := make([]models.Tag, 0, len(titles))
	for _, title := range titles {
		var (
			tag *models.Tag
			err error
		)
		if create {
			tag, err = s.tagRepo.FindOrCreate(ctx, title, actorID)
		} else {
			tag, err = s.tagRepo.Find(ctx, title)
			if errors.Is(err, repositories.ErrTagNotFound) {
				continue
			}
		}
		if err != nil {
			return nil, err
		}
		tags = append(tags, *tag)
	}
	return tags, nil
}

// SplitList splits tag list text into distinct, trimmed, non-blank titles.
func SplitList(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}
	parts := listSeparator.Split(text, -1)
	seen := make(map[string]struct{}, len(parts))
	titles := make([]string, 0, len(parts))
	for _, part := range parts {
		title := strings.TrimSpace(part)
		if title == "" {
			continue
		}
		if _, ok := seen[title]; ok {
			continue
		}
		seen[title] = struct{}{}
		titles = append(titles, title)
	}
	return titles
}

func (s *tagService) CreateTag(ctx context.Context, req models.CreateTagRequest, actorID *uint) (*models.Tag, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrBlankTitle
	}

	// Check if tag already exists
	_, err := s.tagRepo.Find(ctx, title)
	if err == nil {
		return nil, ErrTagExists
	}
	if !errors.Is(err, repositories.ErrTagNotFound) {
		return nil, err
	}

	tag := &models.Tag{
		Title:       title,
		CreatedByID: actorID,
		UpdatedByID: actorID,
	}
	if err := s.tagRepo.Create(ctx, tag); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrTagExists
		}
		return nil, err
	}

	s.publish(ctx, events.TagCreated, tag, nil, actorID)
	return tag, nil
}

func (s *tagService) GetTags(ctx context.Context) ([]models.Tag, error) {
	return s.tagRepo.List(ctx)
}

func (s *tagService) GetTag(ctx context.Context, id uint) (*models.Tag, error) {
	return s.tagRepo.GetByID(ctx, id)
}

func (s *tagService) UpdateTag(ctx context.Context, id uint, req models.UpdateTagRequest, actorID *uint) (*models.Tag, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrBlankTitle
	}

	tag, err := s.tagRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	existing, err := s.tagRepo.Find(ctx, title)
	switch {
	case err == nil && existing.ID != tag.ID:
		return nil, ErrTagExists
	case err != nil && !errors.Is(err, repositories.ErrTagNotFound):
		return nil, err
	}

	tag.Title = title
	tag.UpdatedByID = actorID
	if err := s.tagRepo.Update(ctx, tag); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrTagExists
		}
		return nil, err
	}

	s.publish(ctx, events.TagUpdated, tag, nil, actorID)
	return tag, nil
}

func (s *tagService) DeleteTag(ctx context.Context, id uint, actorID *uint) error {
	tag, err := s.tagRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.tagRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, events.TagDeleted, tag, nil, actorID)
	return nil
}

func (s *tagService) MostPopular(ctx context.Context, limit int) ([]models.Tag, error) {
	return s.tagRepo.MostPopular(ctx, limit)
}

func (s *tagService) WithCounts(ctx context.Context) ([]models.Tag, error) {
	return s.tagRepo.WithCounts(ctx)
}

// RefreshCounts attaches use counts to tags loaded without them, e.g. the
// tags of one page. Empty or already counted input is returned unchanged.
func (s *tagService) RefreshCounts(ctx context.Context, tags []models.Tag) ([]models.Tag, error) {
	if len(tags) == 0 || tags[0].Counted() {
		return tags, nil
	}
	return s.attachCounts(ctx, tags)
}

func (s *tagService) attachCounts(ctx context.Context, tags []models.Tag) ([]models.Tag, error) {
	counts, err := s.tagRepo.CountsFor(ctx, models.TagIDs(tags))
	if err != nil {
		return nil, fmt.Errorf("counting tag usage: %w", err)
	}
	for i := range tags {
		tags[i].SetUseCount(counts[tags[i].ID])
	}
	return tags, nil
}

// EnsurePopularity weights tags for a cloud unless they already are.
// Counts are always re-read for exactly the given ids before weighting.
func (s *tagService) EnsurePopularity(ctx context.Context, tags []models.Tag) ([]models.Tag, error) {
	if len(tags) == 0 || tags[0].Weighted() {
		return tags, nil
	}
	tags, err := s.attachCounts(ctx, tags)
	if err != nil {
		return nil, err
	}
	return s.cloud.Apply(tags), nil
}

// Cloud returns up to limit of the most used tags, weighted and sorted by
// title for display. A limit of zero or less includes every used tag.
func (s *tagService) Cloud(ctx context.Context, limit int, weighting Weighting) ([]models.Tag, error) {
	var (
		tags []models.Tag
		err  error
	)
	if limit > 0 {
		tags, err = s.tagRepo.MostPopular(ctx, limit)
	} else {
		tags, err = s.tagRepo.WithCounts(ctx)
	}
	if err != nil {
		return nil, err
	}

	opts := s.cloud
	if weighting != "" {
		opts.Weighting = weighting
	}
	tags = opts.Apply(tags)

	sort.SliceStable(tags, func(i, j int) bool {
		return tags[i].Title < tags[j].Title
	})
	return tags, nil
}

func (s *tagService) Apply(ctx context.Context, tagID uint, ref models.EntityRef, actorID *uint) (bool, error) {
	if err := s.checkKind(ref.Kind); err != nil {
		return false, err
	}
	tag, err := s.tagRepo.GetByID(ctx, tagID)
	if err != nil {
		return false, err
	}
	created, err := s.taggingRepo.Apply(ctx, tag.ID, ref)
	if err != nil {
		return false, err
	}
	if created {
		s.publish(ctx, events.Tagged, tag, &ref, actorID)
	}
	return created, nil
}

func (s *tagService) Remove(ctx context.Context, tagID uint, ref models.EntityRef, actorID *uint) (bool, error) {
	tag, err := s.tagRepo.GetByID(ctx, tagID)
	if err != nil {
		return false, err
	}
	removed, err := s.taggingRepo.Remove(ctx, tag.ID, ref)
	if err != nil {
		return false, err
	}
	if removed {
		s.publish(ctx, events.Untagged, tag, &ref, actorID)
	}
	return removed, nil
}

// TagEntity applies every tag named in list to the entity, creating tags as needed.
func (s *tagService) TagEntity(ctx context.Context, ref models.EntityRef, list string, actorID *uint) ([]models.Tag, error) {
	if err := s.checkKind(ref.Kind); err != nil {
		return nil, err
	}
	tags, err := s.ParseList(ctx, list, true, actorID)
	if err != nil {
		return nil, err
	}
	for i := range tags {
		created, err := s.taggingRepo.Apply(ctx, tags[i].ID, ref)
		if err != nil {
			return nil, err
		}
		if created {
			s.publish(ctx, events.Tagged, &tags[i], &ref, actorID)
		}
	}
	return tags, nil
}

// RemoveEntity forgets every tagging of an entity the host application deleted.
func (s *tagService) RemoveEntity(ctx context.Context, ref models.EntityRef) (int64, error) {
	n, err := s.taggingRepo.RemoveEntity(ctx, ref)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Removed entity taggings", zap.Stringer("entity", ref), zap.Int64("count", n))
	return n, nil
}

func (s *tagService) TaggingsOfType(ctx context.Context, tagID uint, kind string) ([]models.Tagging, error) {
	if err := s.checkKind(kind); err != nil {
		return nil, err
	}
	return s.taggingRepo.ForTag(ctx, tagID, kind)
}

func (s *tagService) CountOfType(ctx context.Context, tagID uint, kind string) (int64, error) {
	if err := s.checkKind(kind); err != nil {
		return 0, err
	}
	return s.taggingRepo.CountForTag(ctx, tagID, kind)
}

// RelatedEntities loads the entities of kind tagged with the tag through the registry.
func (s *tagService) RelatedEntities(ctx context.Context, tagID uint, kind string) ([]any, error) {
	if err := s.checkKind(kind); err != nil {
		return nil, err
	}
	tag, err := s.tagRepo.GetByID(ctx, tagID)
	if err != nil {
		return nil, err
	}
	taggings, err := s.taggingRepo.ForTag(ctx, tag.ID, kind)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(taggings))
	for _, t := range taggings {
		ids = append(ids, t.TaggedID)
	}
	return s.registry.Load(ctx, kind, ids)
}

func (s *tagService) checkKind(kind string) error {
	if !s.registry.Has(kind) {
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return nil
}

// publish is best effort; a lost event never fails the tagging operation.
func (s *tagService) publish(ctx context.Context, action events.Action, tag *models.Tag, ref *models.EntityRef, actorID *uint) {
	event := events.TaggingEvent{
		Action:  action,
		TagID:   tag.ID,
		Title:   tag.Title,
		SiteID:  tag.SiteID,
		Entity:  ref,
		ActorID: actorID,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Tagging event not published",
			zap.String("action", string(action)),
			zap.Uint("tag_id", tag.ID),
			zap.Error(err))
	}
}
