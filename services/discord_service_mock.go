package services

import (
	"fmt"
	"mime/multipart"
	"sync"

	"github.com/team-gs/gs-orders-api/models"
)

// MockDiscordService is a mock implementation of the notification mirror for testing
type MockDiscordService struct {
	mu          sync.Mutex
	nextID      int
	PostedIDs   []string            // message ids assigned to PostNew/PostWithAttachment calls
	Patched     map[string][]string // message id -> statuses patched onto it
	FailNext    bool                // when set, the next call fails once
	ReceiptBase string              // base URL for fabricated receipt URLs
}

// NewMockDiscordService creates a new mock Discord service
func NewMockDiscordService() *MockDiscordService {
	return &MockDiscordService{
		Patched:     make(map[string][]string),
		ReceiptBase: "https://cdn.example.com/receipts",
	}
}

// SetAsMockForTesting sets this mock as the global Discord service instance
func (m *MockDiscordService) SetAsMockForTesting() {
	SetDiscordService(m)
}

func (m *MockDiscordService) failIfRequested() error {
	if m.FailNext {
		m.FailNext = false
		return fmt.Errorf("mock webhook failure")
	}
	return nil
}

// PostNew simulates posting a new order message
func (m *MockDiscordService) PostNew(order *models.Order) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failIfRequested(); err != nil {
		return "", err
	}

	m.nextID++
	id := fmt.Sprintf("msg-%d", m.nextID)
	m.PostedIDs = append(m.PostedIDs, id)
	return id, nil
}

// PostWithAttachment simulates posting the payment proof
func (m *MockDiscordService) PostWithAttachment(order *models.Order, file *multipart.FileHeader, senderWallet string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failIfRequested(); err != nil {
		return "", "", err
	}

	m.nextID++
	id := fmt.Sprintf("msg-%d", m.nextID)
	m.PostedIDs = append(m.PostedIDs, id)

	filename := "receipt.png"
	if file != nil {
		filename = file.Filename
	}
	return id, fmt.Sprintf("%s/%s", m.ReceiptBase, filename), nil
}

// PatchExisting records the patch against the mirrored message id
func (m *MockDiscordService) PatchExisting(order *models.Order, newStatus string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failIfRequested(); err != nil {
		return err
	}

	if order.DiscordMessageID == nil || *order.DiscordMessageID == "" {
		return nil
	}
	m.Patched[*order.DiscordMessageID] = append(m.Patched[*order.DiscordMessageID], newStatus)
	return nil
}

// PatchCount returns how many patches were recorded for a message id
func (m *MockDiscordService) PatchCount(messageID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Patched[messageID])
}
