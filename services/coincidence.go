package services

import (
	"context"

	"cms-tags/models"
)

// AttachedTagsOf returns every tag applied to the entity.
func (s *tagService) AttachedTagsOf(ctx context.Context, ref models.EntityRef) ([]models.Tag, error) {
	return s.tagRepo.AttachedTo(ctx, []models.EntityRef{ref})
}

// CoincidentWithOne returns the tags that share at least one entity with tag.
func (s *tagService) CoincidentWithOne(ctx context.Context, tag models.Tag) ([]models.Tag, error) {
	refs, err := s.taggingRepo.EntitiesTaggedWith(ctx, tag.ID)
	if err != nil {
		return nil, err
	}
	return s.tagsOnExcept(ctx, refs, []models.Tag{tag})
}

// CoincidentWithAll returns the tags found on entities that carry every one
// of tags, for narrowing a faceted listing.
func (s *tagService) CoincidentWithAll(ctx context.Context, tags []models.Tag) ([]models.Tag, error) {
	if len(tags) == 0 {
		return []models.Tag{}, nil
	}
	refs, err := s.taggingRepo.EntitiesTaggedWithAll(ctx, models.TagIDs(tags))
	if err != nil {
		return nil, err
	}
	return s.tagsOnExcept(ctx, refs, tags)
}

func (s *tagService) tagsOnExcept(ctx context.Context, refs []models.EntityRef, exclude []models.Tag) ([]models.Tag, error) {
	if len(refs) == 0 {
		return []models.Tag{}, nil
	}
	attached, err := s.tagRepo.AttachedTo(ctx, refs)
	if err != nil {
		return nil, err
	}

	skip := make(map[uint]struct{}, len(exclude))
	for _, t := range exclude {
		skip[t.ID] = struct{}{}
	}
	out := make([]models.Tag, 0, len(attached))
	for _, t := range attached {
		if _, ok := skip[t.ID]; !ok {
			out = append(out, t)
		}
	}
	return out, nil
}
