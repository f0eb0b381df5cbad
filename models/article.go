package models

import (
	"time"

	"gorm.io/gorm"
)

const KindArticle = "article"

type ArticleStatus string

const (
	StatusDraft     ArticleStatus = "draft"
	StatusPublished ArticleStatus = "published"
)

type Article struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	AuthorID  *uint          `json:"author_id"`
	Author    *User          `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
	Title     string         `json:"title" gorm:"not null"`
	Content   string         `json:"content" gorm:"type:text"`
	Status    ArticleStatus  `json:"status" gorm:"default:'draft'"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
