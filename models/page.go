package models

import "time"

const KindPage = "page"

type Page struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	SiteID    uint      `json:"site_id" gorm:"not null;default:0;index"`
	Title     string    `json:"title" gorm:"not null"`
	Slug      string    `json:"slug" gorm:"not null;size:255"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
