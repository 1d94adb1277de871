package models

import (
	"time"

	"gorm.io/gorm"
)

// Order statuses. An order moves along the edges in statusFlow and nowhere
// else; done and rejected are terminal.
const (
	StatusAwaitingPayment     = "awaiting_payment"
	StatusPendingVerification = "pending_verification"
	StatusWaiting             = "waiting"
	StatusWorking             = "working"
	StatusDone                = "done"
	StatusRejected            = "rejected"
)

// Order tiers and their per-character prices. The total price is snapshotted
// on the order at creation time and never recomputed.
const (
	TierStarter  = "Starter"
	TierPro      = "Pro"
	TierUltimate = "Ultimate"
)

var tierPrices = map[string]float64{
	TierStarter:  5,
	TierPro:      9,
	TierUltimate: 15,
}

// PriceForTier returns the per-character price for a tier.
func PriceForTier(tier string) (float64, bool) {
	price, ok := tierPrices[tier]
	return price, ok
}

// statusFlow lists the valid target statuses for each current status.
// Rejection is additionally allowed from any non-terminal status.
var statusFlow = map[string][]string{
	StatusAwaitingPayment:     {StatusPendingVerification},
	StatusPendingVerification: {StatusWaiting},
	StatusWaiting:             {StatusWorking},
	StatusWorking:             {StatusDone, StatusWaiting},
	StatusDone:                {},
	StatusRejected:            {},
}

// IsTerminalStatus reports whether no further transitions are permitted.
func IsTerminalStatus(status string) bool {
	return status == StatusDone || status == StatusRejected
}

// CanTransition reports whether from -> to is an edge of the status machine.
func CanTransition(from, to string) bool {
	if to == StatusRejected {
		return !IsTerminalStatus(from)
	}
	for _, next := range statusFlow[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ActiveStatuses are the statuses shown in the staff queue and live views.
func ActiveStatuses() []string {
	return []string{StatusAwaitingPayment, StatusPendingVerification, StatusWaiting, StatusWorking}
}

// Order represents a leveling order in the system
type Order struct {
	ID               string           `gorm:"primaryKey;size:36" json:"id"`
	ClientID         string           `gorm:"not null;index" json:"client_id"` // Auth0 ID of the owning client
	ClientName       string           `gorm:"not null" json:"client_name"`
	ClientAvatar     string           `json:"client_avatar"`
	Tier             string           `gorm:"not null" json:"tier"`
	TotalPrice       float64          `gorm:"not null" json:"total_price"` // snapshotted at creation
	Characters       []OrderCharacter `gorm:"foreignKey:OrderID" json:"characters"`
	Status           string           `gorm:"not null;default:'awaiting_payment';index" json:"status"`
	SteamLogin       *string          `json:"steam_login,omitempty"` // credentials payload or "qr" marker
	SenderWallet     *string          `json:"sender_wallet,omitempty"`
	ReceiptURL       *string          `json:"receipt_url,omitempty"`
	DiscordMessageID *string          `json:"discord_message_id,omitempty"` // never cleared once set
	PaymentSentAt    *time.Time       `json:"payment_sent_at,omitempty"`
	WorkerID         *string          `gorm:"index" json:"worker_id,omitempty"` // set only while working
	WorkerName       *string          `json:"worker_name,omitempty"`
	WorkerAvatar     *string          `json:"worker_avatar,omitempty"`
	Rating           *int             `json:"rating,omitempty"` // 1-5, set at most once after done
	Review           *string          `json:"review,omitempty"`
	RatedAt          *time.Time       `json:"rated_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	DeletedAt        gorm.DeletedAt   `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// OrderCharacter is one requested character line-item on an order
type OrderCharacter struct {
	ID          uint   `gorm:"primaryKey" json:"-"`
	OrderID     string `gorm:"not null;index;size:36" json:"-"`
	CharacterID string `gorm:"not null" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	Image       string `json:"image"`
}

// TableName specifies the table name for the OrderCharacter model
func (OrderCharacter) TableName() string {
	return "order_characters"
}
