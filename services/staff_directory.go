package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/team-gs/gs-orders-api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StaffDirectory is the authorization-relevant mapping from identity to
// role(s). Both collections are small and loaded wholesale; Refresh reloads
// them and notifies subscribers, preserving "always current" semantics
// without hidden global state. Construct one per process and pass it by
// reference to anything needing authorization lookups.
type StaffDirectory struct {
	db *gorm.DB

	mu     sync.RWMutex
	staff  []models.StaffMember
	roles  []models.Role
	nextID int
	subs   map[int]func()
}

var staffDirectoryInstance *StaffDirectory

// NewStaffDirectory creates a directory backed by the given database
func NewStaffDirectory(db *gorm.DB) *StaffDirectory {
	return &StaffDirectory{
		db:   db,
		subs: make(map[int]func()),
	}
}

// InitStaffDirectory initializes the global staff directory instance
func InitStaffDirectory(db *gorm.DB) *StaffDirectory {
	staffDirectoryInstance = NewStaffDirectory(db)
	return staffDirectoryInstance
}

// GetStaffDirectory returns the initialized staff directory instance
func GetStaffDirectory() *StaffDirectory {
	return staffDirectoryInstance
}

// SetStaffDirectory sets the staff directory instance (primarily for testing)
func SetStaffDirectory(directory *StaffDirectory) {
	staffDirectoryInstance = directory
}

// Refresh reloads the staff and role collections and notifies subscribers
func (d *StaffDirectory) Refresh() error {
	var staff []models.StaffMember
	if err := d.db.Find(&staff).Error; err != nil {
		return fmt.Errorf("failed to load staff: %w", err)
	}

	var roles []models.Role
	if err := d.db.Find(&roles).Error; err != nil {
		return fmt.Errorf("failed to load roles: %w", err)
	}

	d.mu.Lock()
	d.staff = staff
	d.roles = roles
	subs := make([]func(), 0, len(d.subs))
	for _, fn := range d.subs {
		subs = append(subs, fn)
	}
	d.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
	return nil
}

// Subscribe registers a callback invoked after every refresh and returns a
// handle for Unsubscribe
func (d *StaffDirectory) Subscribe(fn func()) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.subs[d.nextID] = fn
	return d.nextID
}

// Unsubscribe removes a previously registered callback
func (d *StaffDirectory) Unsubscribe(id int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.subs, id)
}

// Staff returns a snapshot of the cached staff collection
func (d *StaffDirectory) Staff() []models.StaffMember {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.StaffMember, len(d.staff))
	copy(out, d.staff)
	return out
}

// Roles returns a snapshot of the cached role collection
func (d *StaffDirectory) Roles() []models.Role {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Role, len(d.roles))
	copy(out, d.roles)
	return out
}

// Lookup finds a staff member whose record key or email matches the given
// identity. Records may historically be keyed by email or by Auth0 ID.
func (d *StaffDirectory) Lookup(identity string) (*models.StaffMember, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for i := range d.staff {
		if d.staff[i].ID == identity || d.staff[i].Email == identity {
			member := d.staff[i]
			return &member, true
		}
	}
	return nil, false
}

// IsWorker reports whether the identity belongs to staff with any role
func (d *StaffDirectory) IsWorker(identity string) bool {
	member, ok := d.Lookup(identity)
	return ok && member.Role != ""
}

// RoleOf returns the raw role string of a staff member, or "" if none
func (d *StaffDirectory) RoleOf(identity string) string {
	member, ok := d.Lookup(identity)
	if !ok {
		return ""
	}
	return member.Role
}

// Permissions resolves the effective permission set of an identity: the
// union across all role tags the member holds. The owner role short-circuits
// to full permission, reported via the second return value.
func (d *StaffDirectory) Permissions(identity string) ([]string, bool) {
	member, ok := d.Lookup(identity)
	if !ok {
		return nil, false
	}
	if member.IsOwner() {
		return nil, true
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	seen := make(map[string]bool)
	var perms []string
	for _, tag := range member.RoleTags() {
		for i := range d.roles {
			if d.roles[i].ID != tag {
				continue
			}
			for _, p := range d.roles[i].PermissionTags() {
				if !seen[p] {
					seen[p] = true
					perms = append(perms, p)
				}
			}
		}
	}
	return perms, false
}

// HasPermission reports whether the identity holds a permission tag
func (d *StaffDirectory) HasPermission(identity, permission string) bool {
	perms, owner := d.Permissions(identity)
	if owner {
		return true
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}

// SetRole upserts a staff record's role tags, keyed by email or id
func (d *StaffDirectory) SetRole(identity, role string) error {
	now := time.Now()
	member := models.StaffMember{
		ID:    identity,
		Email: identity,
		Role:  role,
	}
	if existing, ok := d.Lookup(identity); ok {
		member.ID = existing.ID
		member.Email = existing.Email
	}

	err := d.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"role": role, "updated_at": now}),
	}).Create(&member).Error
	if err != nil {
		return fmt.Errorf("failed to set staff role: %w", err)
	}
	return d.Refresh()
}

// DeleteStaff removes a staff record by its record key
func (d *StaffDirectory) DeleteStaff(id string) error {
	if err := d.db.Delete(&models.StaffMember{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete staff: %w", err)
	}
	return d.Refresh()
}

// UpsertRole creates or replaces a role definition
func (d *StaffDirectory) UpsertRole(role *models.Role) error {
	err := d.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"name":        role.Name,
			"icon":        role.Icon,
			"color":       role.Color,
			"permissions": role.Permissions,
			"updated_at":  time.Now(),
		}),
	}).Create(role).Error
	if err != nil {
		return fmt.Errorf("failed to upsert role: %w", err)
	}
	return d.Refresh()
}

// DeleteRole removes a role definition by id
func (d *StaffDirectory) DeleteRole(id string) error {
	if err := d.db.Delete(&models.Role{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	return d.Refresh()
}

// SyncWorkerProfile folds a legacy email-keyed staff record into the
// ID-keyed record for the same person. The upgrade is one-way and
// idempotent: earnings are preserved, the canonical record's counters win
// when both exist, the legacy record's role and metadata fill any gaps, and
// the legacy record is deleted. Running it again with no legacy record left
// is a no-op.
func (d *StaffDirectory) SyncWorkerProfile(email, canonicalID, name string) error {
	if email == "" || canonicalID == "" || email == canonicalID {
		return nil
	}

	var legacy models.StaffMember
	err := d.db.First(&legacy, "id = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read legacy staff record: %w", err)
	}

	now := time.Now()
	var canonical models.StaffMember
	err = d.db.First(&canonical, "id = ?", canonicalID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		canonical = models.StaffMember{
			ID:            canonicalID,
			Email:         email,
			Name:          name,
			Role:          legacy.Role,
			TotalEarnings: legacy.TotalEarnings,
			LastActive:    &now,
		}
		if canonical.Name == "" {
			canonical.Name = legacy.Name
		}
		if err := d.db.Create(&canonical).Error; err != nil {
			return fmt.Errorf("failed to create canonical staff record: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to read canonical staff record: %w", err)
	default:
		updates := map[string]interface{}{
			"email":       email,
			"last_active": now,
		}
		if legacy.Role != "" {
			updates["role"] = legacy.Role
		}
		if name != "" {
			updates["name"] = name
		}
		if err := d.db.Model(&canonical).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to merge staff records: %w", err)
		}
	}

	if err := d.db.Delete(&models.StaffMember{}, "id = ?", email).Error; err != nil {
		return fmt.Errorf("failed to delete legacy staff record: %w", err)
	}

	return d.Refresh()
}

// AccrueEarnings adds amount to a staff member's cumulative earnings with an
// additive upsert. The increment runs in SQL so concurrent completions by
// different workers never lose updates.
func (d *StaffDirectory) AccrueEarnings(id, email, name, role string, amount float64) error {
	now := time.Now()
	member := models.StaffMember{
		ID:            id,
		Email:         email,
		Name:          name,
		Role:          role,
		TotalEarnings: amount,
		LastActive:    &now,
	}

	err := d.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_earnings": gorm.Expr("total_earnings + ?", amount),
			"email":          email,
			"name":           name,
			"last_active":    now,
			"updated_at":     now,
		}),
	}).Create(&member).Error
	if err != nil {
		return fmt.Errorf("failed to accrue earnings: %w", err)
	}
	return d.Refresh()
}
