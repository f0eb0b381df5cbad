package models

import "time"

// UserRole is the role claim carried by admin tokens.
type UserRole string

const (
	RoleWriter UserRole = "writer"
	RoleEditor UserRole = "editor"
	RoleAdmin  UserRole = "admin"
)

// User mirrors the host application's accounts so tags can reference who
// created and last renamed them. Accounts are never written by this service.
type User struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	Username  string    `json:"username" gorm:"uniqueIndex;not null"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null"`
	Role      UserRole  `json:"role" gorm:"size:16;default:'writer'"`
	CreatedAt time.Time `json:"created_at"`
}

