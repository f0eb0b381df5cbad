package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cms-tags/models"
	"cms-tags/site"
)

const useCountSelect = "tags.*, COUNT(taggings.id) AS use_count"
const taggingsJoin = "INNER JOIN taggings ON taggings.tag_id = tags.id"

// errLostRace signals that a concurrent insert claimed the title first.
var errLostRace = errors.New("tag created concurrently")

type TagRepository interface {
	IsSiteScoped() bool
	Create(ctx context.Context, tag *models.Tag) error
	GetByID(ctx context.Context, id uint) (*models.Tag, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.Tag, error)
	Find(ctx context.Context, title string) (*models.Tag, error)
	FindOrCreate(ctx context.Context, title string, actorID *uint) (*models.Tag, error)
	List(ctx context.Context) ([]models.Tag, error)
	Update(ctx context.Context, tag *models.Tag) error
	Delete(ctx context.Context, id uint) error

	WithCounts(ctx context.Context) ([]models.Tag, error)
	MostPopular(ctx context.Context, limit int) ([]models.Tag, error)
	CountsFor(ctx context.Context, ids []uint) (map[uint]int, error)
	AttachedTo(ctx context.Context, refs []models.EntityRef) ([]models.Tag, error)
}

type TagRepositoryOptions struct {
	SiteScoped bool
	Sites      site.Resolver
	// CreateRetries bounds the lookups repeated after losing a create race.
	CreateRetries uint64
}

type tagRepository struct {
	db      *gorm.DB
	scoped  bool
	sites   site.Resolver
	retries uint64
	logger  *zap.Logger
}

func NewTagRepository(db *gorm.DB, opts TagRepositoryOptions, logger *zap.Logger) TagRepository {
	sites := opts.Sites
	if sites == nil {
		sites = site.ContextResolver{}
	}
	retries := opts.CreateRetries
	if retries == 0 {
		retries = 3
	}
	return &tagRepository{
		db:      db,
		scoped:  opts.SiteScoped,
		sites:   sites,
		retries: retries,
		logger:  logger,
	}
}

func (r *tagRepository) IsSiteScoped() bool {
	return r.scoped
}

// siteID resolves the partition for the request. Unscoped deployments keep
// every tag in site 0 so that the (site_id, title) index is global.
func (r *tagRepository) siteID(ctx context.Context) (uint, error) {
	if !r.scoped {
		return 0, nil
	}
	id, err := r.sites.CurrentSiteID(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolving site: %w", err)
	}
	return id, nil
}

func (r *tagRepository) siteQuery(ctx context.Context) (*gorm.DB, error) {
	siteID, err := r.siteID(ctx)
	if err != nil {
		return nil, err
	}
	return r.db.WithContext(ctx).Where("tags.site_id = ?", siteID), nil
}

func (r *tagRepository) Create(ctx context.Context, tag *models.Tag) error {
	siteID, err := r.siteID(ctx)
	if err != nil {
		return err
	}
	tag.SiteID = siteID
	return r.db.WithContext(ctx).Create(tag).Error
}

func (r *tagRepository) GetByID(ctx context.Context, id uint) (*models.Tag, error) {
	q, err := r.siteQuery(ctx)
	if err != nil {
		return nil, err
	}
	var tag models.Tag
	if err := q.First(&tag, id).Error; err != nil {
		return nil, notFound(err, ErrTagNotFound)
	}
	return &tag, nil
}

func (r *tagRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.Tag, error) {
	if len(ids) == 0 {
		return []models.Tag{}, nil
	}
	q, err := r.siteQuery(ctx)
	if err != nil {
		return nil, err
	}
	var tags []models.Tag
	err = q.Where("tags.id IN ?", ids).Order("tags.title ASC").Find(&tags).Error
	return tags, err
}

func (r *tagRepository) Find(ctx context.Context, title string) (*models.Tag, error) {
	siteID, err := r.siteID(ctx)
	if err != nil {
		return nil, err
	}
	return r.findInSite(ctx, siteID, title)
}

func (r *tagRepository) findInSite(ctx context.Context, siteID uint, title string) (*models.Tag, error) {
	var tag models.Tag
	err := r.db.WithContext(ctx).
		Where("site_id = ? AND title = ?", siteID, title).
		First(&tag).Error
	if err != nil {
		return nil, notFound(err, ErrTagNotFound)
	}
	return &tag, nil
}

// FindOrCreate returns the tag with the given title, inserting it when absent.
// The insert is ON CONFLICT DO NOTHING, so a concurrent writer that wins the
// race leaves us with zero affected rows and we look the row up again.
func (r *tagRepository) FindOrCreate(ctx context.Context, title string, actorID *uint) (*models.Tag, error) {
	siteID, err := r.siteID(ctx)
	if err != nil {
		return nil, err
	}

	var tag *models.Tag
	op := func() error {
		found, err := r.findInSite(ctx, siteID, title)
		if err == nil {
			tag = found
			return nil
		}
		if !errors.Is(err, ErrTagNotFound) {
			return backoff.Permanent(err)
		}

		candidate := &models.Tag{
			Title:       title,
			SiteID:      siteID,
			CreatedByID: actorID,
			UpdatedByID: actorID,
		}
		res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(candidate)
		if res.Error != nil {
			if isUniqueViolation(res.Error) {
				return res.Error
			}
			return backoff.Permanent(res.Error)
		}
		if res.RowsAffected == 0 {
			return errLostRace
		}
		tag = candidate
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 100 * time.Millisecond
	notify := func(err error, wait time.Duration) {
		r.logger.Debug("Retrying tag lookup after conflict",
			zap.String("title", title),
			zap.Uint("site_id", siteID),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(b, r.retries), ctx), notify); err != nil {
		r.logger.Error("Failed to find or create tag", zap.String("title", title), zap.Error(err))
		return nil, fmt.Errorf("find or create tag %q: %w", title, err)
	}
	return tag, nil
}

func (r *tagRepository) List(ctx context.Context) ([]models.Tag, error) {
	q, err := r.siteQuery(ctx)
	if err != nil {
		return nil, err
	}
	var tags []models.Tag
	err = q.Order("tags.title ASC").Find(&tags).Error
	return tags, err
}

func (r *tagRepository) Update(ctx context.Context, tag *models.Tag) error {
	return r.db.WithContext(ctx).
		Model(tag).
		Select("title", "updated_by_id", "updated_at").
		Updates(tag).Error
}

// Delete removes the tag and every tagging that references it.
func (r *tagRepository) Delete(ctx context.Context, id uint) error {
	siteID, err := r.siteID(ctx)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tag models.Tag
		if err := tx.Where("site_id = ?", siteID).First(&tag, id).Error; err != nil {
			return notFound(err, ErrTagNotFound)
		}
		if err := tx.Where("tag_id = ?", tag.ID).Delete(&models.Tagging{}).Error; err != nil {
			return err
		}
		return tx.Delete(&tag).Error
	})
}

// WithCounts returns every used tag annotated with use_count, by title.
func (r *tagRepository) WithCounts(ctx context.Context) ([]models.Tag, error) {
	q, err := r.siteQuery(ctx)
	if err != nil {
		return nil, err
	}
	var tags []models.Tag
	err = q.Model(&models.Tag{}).
		Select(useCountSelect).
		Joins(taggingsJoin).
		Group("tags.id").
		Order("tags.title ASC").
		Find(&tags).Error
	return models.MarkCounted(tags), err
}

// MostPopular returns up to limit used tags by descending use_count.
// Equal counts fall back to title then id so the order is deterministic.
func (r *tagRepository) MostPopular(ctx context.Context, limit int) ([]models.Tag, error) {
	if limit <= 0 {
		return []models.Tag{}, nil
	}
	q, err := r.siteQuery(ctx)
	if err != nil {
		return nil, err
	}
	var tags []models.Tag
	err = q.Model(&models.Tag{}).
		Select(useCountSelect).
		Joins(taggingsJoin).
		Group("tags.id").
		Order("use_count DESC").
		Order("tags.title ASC").
		Order("tags.id ASC").
		Limit(limit).
		Find(&tags).Error
	return models.MarkCounted(tags), err
}

// CountsFor returns use counts keyed by tag id, restricted to ids.
// Tags without taggings are absent from the map.
func (r *tagRepository) CountsFor(ctx context.Context, ids []uint) (map[uint]int, error) {
	counts := make(map[uint]int, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}

	var rows []struct {
		TagID    uint
		UseCount int
	}
	err := r.db.WithContext(ctx).
		Model(&models.Tagging{}).
		Select("tag_id, COUNT(id) AS use_count").
		Where("tag_id IN ?", ids).
		Group("tag_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.TagID] = row.UseCount
	}
	return counts, nil
}

// AttachedTo returns the distinct tags applied to any of the given entities.
func (r *tagRepository) AttachedTo(ctx context.Context, refs []models.EntityRef) ([]models.Tag, error) {
	if len(refs) == 0 {
		return []models.Tag{}, nil
	}
	q, err := r.siteQuery(ctx)
	if err != nil {
		return nil, err
	}

	conds := r.db.Session(&gorm.Session{NewDB: true})
	for i, kind := range groupKinds(refs) {
		cond := "taggings.tagged_type = ? AND taggings.tagged_id IN ?"
		if i == 0 {
			conds = conds.Where(cond, kind.kind, kind.ids)
		} else {
			conds = conds.Or(cond, kind.kind, kind.ids)
		}
	}

	var tags []models.Tag
	err = q.Model(&models.Tag{}).
		Select("tags.*").
		Joins(taggingsJoin).
		Where(conds).
		Group("tags.id").
		Order("tags.title ASC").
		Find(&tags).Error
	return tags, err
}

type kindIDs struct {
	kind string
	ids  []uint
}

// groupKinds buckets refs by kind, keeping the first-seen order of kinds.
func groupKinds(refs []models.EntityRef) []kindIDs {
	var out []kindIDs
	index := make(map[string]int)
	for _, ref := range refs {
		i, ok := index[ref.Kind]
		if !ok {
			i = len(out)
			index[ref.Kind] = i
			out = append(out, kindIDs{kind: ref.Kind})
		}
		out[i].ids = append(out[i].ids, ref.ID)
	}
	return out
}
