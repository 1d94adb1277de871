package services

import (
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/team-gs/gs-orders-api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatService implements the per-order chat thread: an append-only message
// log with one read cursor per participant. Unread counts are derived from
// the cursor, there are no per-message receipts.
type ChatService struct {
	db     *gorm.DB
	images ImageService
}

var chatServiceInstance *ChatService

// NewChatService creates a chat service backed by the given database and
// image host
func NewChatService(db *gorm.DB, images ImageService) *ChatService {
	return &ChatService{db: db, images: images}
}

// InitChatService initializes the global chat service instance
func InitChatService(db *gorm.DB, images ImageService) *ChatService {
	chatServiceInstance = NewChatService(db, images)
	return chatServiceInstance
}

// GetChatService returns the initialized chat service instance
func GetChatService() *ChatService {
	return chatServiceInstance
}

// SetChatService sets the chat service instance (primarily for testing)
func SetChatService(service *ChatService) {
	chatServiceInstance = service
}

// Send appends a text message to an order's thread
func (s *ChatService) Send(orderID string, sender Actor, text string) (*models.Message, error) {
	if text == "" {
		return nil, &ValidationError{Code: "EMPTY_MESSAGE", Message: "Message text is required"}
	}
	if err := s.requireOrder(orderID); err != nil {
		return nil, err
	}

	message := &models.Message{
		OrderID:      orderID,
		SenderID:     sender.ID,
		SenderName:   sender.Name,
		SenderAvatar: sender.Avatar,
		Text:         &text,
		Timestamp:    time.Now().UnixMilli(),
	}
	if err := s.db.Create(message).Error; err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	return message, nil
}

// SendImage uploads an image to the image host and appends it as a message
func (s *ChatService) SendImage(orderID string, sender Actor, file *multipart.FileHeader) (*models.Message, error) {
	if err := s.requireOrder(orderID); err != nil {
		return nil, err
	}

	imageKey, err := s.images.UploadImage(file)
	if err != nil {
		return nil, err
	}
	imageURL, err := s.images.GetImageURL(imageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve image URL: %w", err)
	}

	message := &models.Message{
		OrderID:      orderID,
		SenderID:     sender.ID,
		SenderName:   sender.Name,
		SenderAvatar: sender.Avatar,
		ImageURL:     &imageURL,
		Timestamp:    time.Now().UnixMilli(),
	}
	if err := s.db.Create(message).Error; err != nil {
		return nil, fmt.Errorf("failed to send image message: %w", err)
	}
	return message, nil
}

// Messages lists an order's thread in send order
func (s *ChatService) Messages(orderID string) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.Where("order_id = ?", orderID).
		Order("timestamp ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return messages, nil
}

// MarkRead moves the reader's cursor to now. Other readers' cursors and the
// messages themselves are never touched.
func (s *ChatService) MarkRead(orderID, readerID string) error {
	now := time.Now().UnixMilli()
	cursor := models.ChatCursor{
		OrderID:  orderID,
		ReaderID: readerID,
		LastRead: now,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}, {Name: "reader_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"last_read": now}),
	}).Create(&cursor).Error
	if err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	return nil
}

// UnreadCount counts messages from other senders newer than the reader's
// cursor. A reader with no cursor counts every foreign message as unread.
func (s *ChatService) UnreadCount(orderID, readerID string) (int64, error) {
	lastRead := s.lastRead(orderID, readerID)

	var count int64
	err := s.db.Model(&models.Message{}).
		Where("order_id = ? AND sender_id <> ? AND timestamp > ?", orderID, readerID, lastRead).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}

// OpenThread returns the full thread for viewing and advances the reader's
// cursor, but only when at least one foreign message is newer than it, so
// opening an unchanged thread writes nothing.
func (s *ChatService) OpenThread(orderID, readerID string) ([]models.Message, error) {
	messages, err := s.Messages(orderID)
	if err != nil {
		return nil, err
	}

	lastRead := s.lastRead(orderID, readerID)
	for _, msg := range messages {
		if msg.SenderID != readerID && msg.Timestamp > lastRead {
			if err := s.MarkRead(orderID, readerID); err != nil {
				return nil, err
			}
			break
		}
	}
	return messages, nil
}

// lastRead returns the reader's cursor position, zero when unset
func (s *ChatService) lastRead(orderID, readerID string) int64 {
	var cursor models.ChatCursor
	err := s.db.First(&cursor, "order_id = ? AND reader_id = ?", orderID, readerID).Error
	if err != nil {
		return 0
	}
	return cursor.LastRead
}

// requireOrder verifies the thread's order exists
func (s *ChatService) requireOrder(orderID string) error {
	var order models.Order
	err := s.db.Select("id").First(&order, "id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &NotFoundError{Code: "ORDER_NOT_FOUND", Message: "Order not found"}
	}
	if err != nil {
		return fmt.Errorf("failed to load order: %w", err)
	}
	return nil
}
