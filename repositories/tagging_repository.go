package repositories

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cms-tags/models"
)

type TaggingRepository interface {
	// Apply tags the entity. It reports false when the tagging already existed.
	Apply(ctx context.Context, tagID uint, ref models.EntityRef) (bool, error)
	// Remove untags the entity. It reports false when there was nothing to remove.
	Remove(ctx context.Context, tagID uint, ref models.EntityRef) (bool, error)
	RemoveEntity(ctx context.Context, ref models.EntityRef) (int64, error)

	ForTag(ctx context.Context, tagID uint, kind string) ([]models.Tagging, error)
	CountForTag(ctx context.Context, tagID uint, kind string) (int64, error)
	EntitiesTaggedWith(ctx context.Context, tagID uint) ([]models.EntityRef, error)
	EntitiesTaggedWithAll(ctx context.Context, tagIDs []uint) ([]models.EntityRef, error)
}

type taggingRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewTaggingRepository(db *gorm.DB, logger *zap.Logger) TaggingRepository {
	return &taggingRepository{db: db, logger: logger}
}

func (r *taggingRepository) Apply(ctx context.Context, tagID uint, ref models.EntityRef) (bool, error) {
	tagging := &models.Tagging{
		TagID:      tagID,
		TaggedType: ref.Kind,
		TaggedID:   ref.ID,
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(tagging)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return false, nil
		}
		r.logger.Error("Failed to apply tag",
			zap.Uint("tag_id", tagID),
			zap.Stringer("entity", ref),
			zap.Error(res.Error))
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *taggingRepository) Remove(ctx context.Context, tagID uint, ref models.EntityRef) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("tag_id = ? AND tagged_type = ? AND tagged_id = ?", tagID, ref.Kind, ref.ID).
		Delete(&models.Tagging{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RemoveEntity drops every tagging of an entity the host application deleted.
func (r *taggingRepository) RemoveEntity(ctx context.Context, ref models.EntityRef) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("tagged_type = ? AND tagged_id = ?", ref.Kind, ref.ID).
		Delete(&models.Tagging{})
	return res.RowsAffected, res.Error
}

// ForTag lists the taggings of a tag, optionally restricted to one entity kind.
func (r *taggingRepository) ForTag(ctx context.Context, tagID uint, kind string) ([]models.Tagging, error) {
	var taggings []models.Tagging
	err := r.ofKind(ctx, tagID, kind).
		Order("tagged_type ASC, tagged_id ASC").
		Find(&taggings).Error
	return taggings, err
}

func (r *taggingRepository) CountForTag(ctx context.Context, tagID uint, kind string) (int64, error) {
	var count int64
	err := r.ofKind(ctx, tagID, kind).Count(&count).Error
	return count, err
}

func (r *taggingRepository) ofKind(ctx context.Context, tagID uint, kind string) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Tagging{}).Where("tag_id = ?", tagID)
	if kind != "" {
		q = q.Where("tagged_type = ?", kind)
	}
	return q
}

func (r *taggingRepository) EntitiesTaggedWith(ctx context.Context, tagID uint) ([]models.EntityRef, error) {
	return r.EntitiesTaggedWithAll(ctx, []uint{tagID})
}

// EntitiesTaggedWithAll returns the entities carrying every one of tagIDs.
func (r *taggingRepository) EntitiesTaggedWithAll(ctx context.Context, tagIDs []uint) ([]models.EntityRef, error) {
	ids := uniqueIDs(tagIDs)
	if len(ids) == 0 {
		return []models.EntityRef{}, nil
	}

	var rows []struct {
		TaggedType string
		TaggedID   uint
	}
	err := r.db.WithContext(ctx).
		Model(&models.Tagging{}).
		Select("tagged_type, tagged_id").
		Where("tag_id IN ?", ids).
		Group("tagged_type, tagged_id").
		Having("COUNT(DISTINCT tag_id) = ?", len(ids)).
		Order("tagged_type ASC, tagged_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	refs := make([]models.EntityRef, 0, len(rows))
	for _, row := range rows {
		refs = append(refs, models.EntityRef{Kind: row.TaggedType, ID: row.TaggedID})
	}
	return refs, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
