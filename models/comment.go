package models

import "time"

// Comment is the denormalized copy of an order's rating and review, inserted
// once when the rating is submitted. Staff can list and delete comments
// without touching the order record.
type Comment struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	OrderID      string    `gorm:"not null;index;size:36" json:"order_id"`
	ClientID     string    `gorm:"not null" json:"client_id"`
	ClientName   string    `json:"client_name"`
	ClientAvatar string    `json:"client_avatar"`
	Rating       int       `gorm:"not null" json:"rating"`
	Review       string    `gorm:"type:text" json:"review"`
	Tier         string    `json:"tier"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for the Comment model
func (Comment) TableName() string {
	return "comments"
}
