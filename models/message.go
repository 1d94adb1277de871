package models

// Message represents one message in an order's chat thread. Messages are
// append-only; read state lives on ChatCursor, not on the message.
type Message struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	OrderID      string  `gorm:"not null;index;size:36" json:"order_id"`
	SenderID     string  `gorm:"not null;index" json:"sender_id"`
	SenderName   string  `json:"sender_name"`
	SenderAvatar string  `json:"sender_avatar"`
	Text         *string `gorm:"type:text" json:"text,omitempty"`
	ImageURL     *string `json:"image,omitempty"`
	Timestamp    int64   `gorm:"not null;index" json:"timestamp"` // unix milliseconds
}

// TableName specifies the table name for the Message model
func (Message) TableName() string {
	return "messages"
}

// ChatCursor marks, per participant, the newest message time they have read
// on an order's thread. A reader with no cursor has read nothing (LastRead 0).
type ChatCursor struct {
	OrderID  string `gorm:"primaryKey;size:36" json:"order_id"`
	ReaderID string `gorm:"primaryKey" json:"reader_id"`
	LastRead int64  `gorm:"not null;default:0" json:"last_read"` // unix milliseconds
}

// TableName specifies the table name for the ChatCursor model
func (ChatCursor) TableName() string {
	return "chat_cursors"
}
