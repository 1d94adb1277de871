package models

import (
	"strings"
	"time"
)

// RoleOwner implies every permission.
const RoleOwner = "owner"

// StaffMember represents an authorization-relevant staff record.
// The primary key is historically either the member's email or their stable
// Auth0 ID; SyncWorkerProfile folds email-keyed records into ID-keyed ones.
type StaffMember struct {
	ID            string     `gorm:"primaryKey" json:"id"`
	Email         string     `gorm:"index" json:"email"`
	Name          string     `json:"name"`
	Role          string     `json:"role"` // comma-separated role tags
	TotalEarnings float64    `gorm:"not null;default:0" json:"total_earnings"`
	LastActive    *time.Time `json:"last_active,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName specifies the table name for the StaffMember model
func (StaffMember) TableName() string {
	return "staff_members"
}

// RoleTags splits the comma-separated role string into individual tags.
func (s *StaffMember) RoleTags() []string {
	if s.Role == "" {
		return nil
	}
	parts := strings.Split(s.Role, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if tag := strings.TrimSpace(p); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// IsOwner reports whether any of the member's role tags is the owner role.
func (s *StaffMember) IsOwner() bool {
	for _, tag := range s.RoleTags() {
		if tag == RoleOwner {
			return true
		}
	}
	return false
}
