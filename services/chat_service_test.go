package services

import (
	"bytes"
	"mime/multipart"
	"net/textproto"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/team-gs/gs-orders-api/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupChatServiceTest(t *testing.T) (*ChatService, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Order{},
		&models.OrderCharacter{},
		&models.Message{},
		&models.ChatCursor{},
	); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	mockS3 := NewMockS3Service()
	images := InitImageService(mockS3)
	return NewChatService(db, images), db
}

func createChatOrder(t *testing.T, db *gorm.DB) *models.Order {
	order := &models.Order{
		ID:         "order-chat-1",
		ClientID:   "auth0|client123",
		ClientName: "Test Client",
		Tier:       models.TierPro,
		TotalPrice: 9,
		Status:     models.StatusWorking,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

// createTestImageFile builds a real multipart.FileHeader for image messages
func createTestImageFile(t *testing.T, filename string) *multipart.FileHeader {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="`+filename+`"`)
	h.Set("Content-Type", "image/png")
	part, err := writer.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte("fake image content"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	reader := multipart.NewReader(body, writer.Boundary())
	form, err := reader.ReadForm(1024 * 1024)
	require.NoError(t, err)
	require.NotEmpty(t, form.File["image"])
	return form.File["image"][0]
}

func TestSend(t *testing.T) {
	service, db := setupChatServiceTest(t)
	order := createChatOrder(t, db)

	message, err := service.Send(order.ID, Actor{ID: "auth0|client123", Name: "Test Client"}, "hello")
	require.NoError(t, err)
	assert.Equal(t, order.ID, message.OrderID)
	require.NotNil(t, message.Text)
	assert.Equal(t, "hello", *message.Text)
	assert.Greater(t, message.Timestamp, int64(0))
	assert.Nil(t, message.ImageURL)
}

func TestSend_Validation(t *testing.T) {
	service, db := setupChatServiceTest(t)
	order := createChatOrder(t, db)

	_, err := service.Send(order.ID, Actor{ID: "auth0|client123"}, "")
	require.Error(t, err)
	validationErr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Equal(t, "EMPTY_MESSAGE", validationErr.Code)

	_, err = service.Send("missing-order", Actor{ID: "auth0|client123"}, "hello")
	require.Error(t, err)
	notFound, ok := err.(*NotFoundError)
	require.True(t, ok)
	assert.Equal(t, "ORDER_NOT_FOUND", notFound.Code)
}

func TestSendImage(t *testing.T) {
	service, db := setupChatServiceTest(t)
	order := createChatOrder(t, db)

	file := createTestImageFile(t, "screenshot.png")
	message, err := service.SendImage(order.ID, Actor{ID: "auth0|worker123", Name: "Test Worker"}, file)
	require.NoError(t, err)

	assert.Nil(t, message.Text)
	require.NotNil(t, message.ImageURL)
	assert.Contains(t, *message.ImageURL, "screenshot.png")
}

func TestSendImage_InvalidFormat(t *testing.T) {
	service, db := setupChatServiceTest(t)
	order := createChatOrder(t, db)

	file := createTestImageFile(t, "notes.txt")
	_, err := service.SendImage(order.ID, Actor{ID: "auth0|worker123"}, file)
	require.Error(t, err)
}

func TestUnreadCount(t *testing.T) {
	service, db := setupChatServiceTest(t)
	order := createChatOrder(t, db)
	client := Actor{ID: "auth0|client123", Name: "Test Client"}
	worker := Actor{ID: "auth0|worker123", Name: "Test Worker"}

	_, err := service.Send(order.ID, worker, "starting now")
	require.NoError(t, err)
	_, err = service.Send(order.ID, worker, "first character done")
	require.NoError(t, err)

	// The client has two unread foreign messages; the sender has none
	count, err := service.UnreadCount(order.ID, client.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = service.UnreadCount(order.ID, worker.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// Marking read moves only the reader's own cursor
	require.NoError(t, service.MarkRead(order.ID, client.ID))
	count, err = service.UnreadCount(order.ID, client.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// A later message is unread again
	time.Sleep(2 * time.Millisecond)
	_, err = service.Send(order.ID, worker, "all done")
	require.NoError(t, err)
	count, err = service.UnreadCount(order.ID, client.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestOpenThread_MarksReadOnlyWithNewerForeignMessages(t *testing.T) {
	service, db := setupChatServiceTest(t)
	order := createChatOrder(t, db)
	client := Actor{ID: "auth0|client123", Name: "Test Client"}
	worker := Actor{ID: "auth0|worker123", Name: "Test Worker"}

	// Opening a thread with only the reader's own messages writes no cursor
	_, err := service.Send(order.ID, client, "any updates?")
	require.NoError(t, err)
	_, err = service.OpenThread(order.ID, client.ID)
	require.NoError(t, err)

	var cursors []models.ChatCursor
	require.NoError(t, db.Where("order_id = ? AND reader_id = ?", order.ID, client.ID).Find(&cursors).Error)
	assert.Empty(t, cursors)

	// A foreign message makes opening the thread advance the cursor
	time.Sleep(2 * time.Millisecond)
	_, err = service.Send(order.ID, worker, "yes, nearly done")
	require.NoError(t, err)

	messages, err := service.OpenThread(order.ID, client.ID)
	require.NoError(t, err)
	assert.Len(t, messages, 2)

	count, err := service.UnreadCount(order.ID, client.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// The worker's own view of the thread is unaffected
	count, err = service.UnreadCount(order.ID, worker.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMessages_Ordering(t *testing.T) {
	service, db := setupChatServiceTest(t)
	order := createChatOrder(t, db)

	// Insert out of order to verify the sort is by timestamp, not insert order
	require.NoError(t, db.Create(&models.Message{
		OrderID: order.ID, SenderID: "a", Timestamp: 2000,
	}).Error)
	require.NoError(t, db.Create(&models.Message{
		OrderID: order.ID, SenderID: "b", Timestamp: 1000,
	}).Error)

	messages, err := service.Messages(order.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "b", messages[0].SenderID)
	assert.Equal(t, "a", messages[1].SenderID)
}
