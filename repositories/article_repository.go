package repositories

import (
	"context"

	"gorm.io/gorm"

	"cms-tags/models"
)

type ArticleRepository interface {
	Create(ctx context.Context, article *models.Article) error
	GetByID(ctx context.Context, id uint) (*models.Article, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.Article, error)
	Delete(ctx context.Context, id uint) error
}

type articleRepository struct {
	db *gorm.DB
}

func NewArticleRepository(db *gorm.DB) ArticleRepository {
	return &articleRepository{db: db}
}

func (r *articleRepository) Create(ctx context.Context, article *models.Article) error {
	return r.db.WithContext(ctx).Create(article).Error
}

func (r *articleRepository) GetByID(ctx context.Context, id uint) (*models.Article, error) {
	var article models.Article
	if err := r.db.WithContext(ctx).Preload("Author").First(&article, id).Error; err != nil {
		return nil, notFound(err, ErrEntityNotFound)
	}
	return &article, nil
}

func (r *articleRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.Article, error) {
	var articles []models.Article
	if len(ids) == 0 {
		return articles, nil
	}
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&articles).Error
	return articles, err
}

func (r *articleRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Article{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrEntityNotFound
	}
	return nil
}
