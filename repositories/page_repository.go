package repositories

import (
	"context"

	"gorm.io/gorm"

	"cms-tags/models"
)

type PageRepository interface {
	Create(ctx context.Context, page *models.Page) error
	GetByID(ctx context.Context, id uint) (*models.Page, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.Page, error)
}

type pageRepository struct {
	db *gorm.DB
}

func NewPageRepository(db *gorm.DB) PageRepository {
	return &pageRepository{db: db}
}

func (r *pageRepository) Create(ctx context.Context, page *models.Page) error {
	return r.db.WithContext(ctx).Create(page).Error
}

func (r *pageRepository) GetByID(ctx context.Context, id uint) (*models.Page, error) {
	var page models.Page
	if err := r.db.WithContext(ctx).First(&page, id).Error; err != nil {
		return nil, notFound(err, ErrEntityNotFound)
	}
	return &page, nil
}

func (r *pageRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.Page, error) {
	var pages []models.Page
	if len(ids) == 0 {
		return pages, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&pages).Error
	return pages, err
}
