package models

import (
	"fmt"
	"time"
)

// EntityRef points at a tagged entity of any kind.
type EntityRef struct {
	Kind string `json:"kind" form:"kind" validate:"required,max=64"`
	ID   uint   `json:"id" form:"id" validate:"required,min=1"`
}

func (r EntityRef) String() string {
	return fmt.Sprintf("%s#%d", r.Kind, r.ID)
}

type Tagging struct {
	ID         uint      `json:"id" gorm:"primarykey"`
	TagID      uint      `json:"tag_id" gorm:"not null;uniqueIndex:idx_taggings_tag_entity,priority:1"`
	Tag        *Tag      `json:"tag,omitempty" gorm:"foreignKey:TagID"`
	TaggedType string    `json:"tagged_type" gorm:"not null;size:64;uniqueIndex:idx_taggings_tag_entity,priority:2;index:idx_taggings_entity,priority:1"`
	TaggedID   uint      `json:"tagged_id" gorm:"not null;uniqueIndex:idx_taggings_tag_entity,priority:3;index:idx_taggings_entity,priority:2"`
	CreatedAt  time.Time `json:"created_at"`
}

func (t Tagging) Entity() EntityRef {
	return EntityRef{Kind: t.TaggedType, ID: t.TaggedID}
}
