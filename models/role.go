package models

import (
	"strings"
	"time"
)

// Role represents a named permission set staff members can hold
type Role struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Icon        string    `json:"icon"`
	Color       string    `json:"color"`
	Permissions string    `json:"permissions"` // comma-separated permission tags
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Role model
func (Role) TableName() string {
	return "roles"
}

// PermissionTags splits the comma-separated permission string into tags.
func (r *Role) PermissionTags() []string {
	if r.Permissions == "" {
		return nil
	}
	parts := strings.Split(r.Permissions, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if tag := strings.TrimSpace(p); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
