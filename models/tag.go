package models

import (
	"net/url"
	"time"
)

type Tag struct {
	ID          uint      `json:"id" gorm:"primarykey"`
	Title       string    `json:"title" gorm:"not null;size:255;uniqueIndex:idx_tags_site_title,priority:2"`
	SiteID      uint      `json:"site_id" gorm:"not null;default:0;uniqueIndex:idx_tags_site_title,priority:1"`
	CreatedByID *uint     `json:"created_by_id"`
	CreatedBy   *User     `json:"created_by,omitempty" gorm:"foreignKey:CreatedByID"`
	UpdatedByID *uint     `json:"updated_by_id"`
	UpdatedBy   *User     `json:"updated_by,omitempty" gorm:"foreignKey:UpdatedByID"`
	Taggings    []Tagging `json:"-" gorm:"foreignKey:TagID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Populated only by aggregate queries that select "count(taggings.id) AS use_count".
	UseCount  int    `json:"use_count,omitempty" gorm:"->;-:migration"`
	CloudBand *int   `json:"cloud_band,omitempty" gorm:"-"`
	CloudSize string `json:"cloud_size,omitempty" gorm:"-"`

	counted bool
}

// Counted reports whether UseCount was filled in by a usage-count query.
func (t Tag) Counted() bool {
	return t.counted
}

// SetUseCount attaches a usage count and marks the tag as counted.
func (t *Tag) SetUseCount(n int) {
	t.UseCount = n
	t.counted = true
}

// MarkCounted flags tags whose UseCount was scanned from an aggregate query.
func MarkCounted(tags []Tag) []Tag {
	for i := range tags {
		tags[i].counted = true
	}
	return tags
}

// Weighted reports whether a cloud band or size has been assigned.
func (t Tag) Weighted() bool {
	return t.CloudBand != nil || t.CloudSize != ""
}

// CleanTitle returns the title escaped for use as a URL path segment.
func (t Tag) CleanTitle() string {
	return url.PathEscape(t.Title)
}

func (t Tag) String() string {
	return t.Title
}

// TagIDs collects the ids of tags in order.
func TagIDs(tags []Tag) []uint {
	ids := make([]uint, 0, len(tags))
	for _, t := range tags {
		ids = append(ids, t.ID)
	}
	return ids
}
