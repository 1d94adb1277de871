package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/team-gs/gs-orders-api/models"
)

// maxFieldLength is Discord's limit for an embed field value. Longer values
// are truncated with a marker before submission.
const maxFieldLength = 1024

// unspecified is rendered in place of missing display fields so that a
// partial order snapshot never fails the mirror call.
const unspecified = "غير محدد"

// DiscordInterface defines the notification mirror operations
type DiscordInterface interface {
	// PostNew posts a new order summary and returns the channel message id
	PostNew(order *models.Order) (string, error)

	// PostWithAttachment posts the payment proof alongside an order summary
	// and returns the channel message id and a durable URL for the receipt
	PostWithAttachment(order *models.Order, file *multipart.FileHeader, senderWallet string) (string, string, error)

	// PatchExisting edits the previously posted message in place to reflect
	// the new status. It is a silent no-op when no message id is recorded.
	PatchExisting(order *models.Order, newStatus string) error
}

// DiscordService mirrors order state to a Discord webhook
type DiscordService struct {
	webhookURL string
	httpClient *http.Client
}

var discordServiceInstance DiscordInterface

// InitDiscordService initializes the Discord mirror with a webhook URL
func InitDiscordService(webhookURL string) DiscordInterface {
	discordServiceInstance = &DiscordService{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	return discordServiceInstance
}

// GetDiscordService returns the initialized Discord service instance
func GetDiscordService() DiscordInterface {
	return discordServiceInstance
}

// SetDiscordService sets the Discord service instance (primarily for testing)
func SetDiscordService(service DiscordInterface) {
	discordServiceInstance = service
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordImage struct {
	URL string `json:"url"`
}

type discordFooter struct {
	Text string `json:"text"`
}

type discordEmbed struct {
	Title     string         `json:"title"`
	Color     int            `json:"color"`
	Fields    []discordField `json:"fields"`
	Thumbnail *discordImage  `json:"thumbnail,omitempty"`
	Image     *discordImage  `json:"image,omitempty"`
	Footer    *discordFooter `json:"footer,omitempty"`
	Timestamp string         `json:"timestamp"`
}

type discordButton struct {
	Type     int    `json:"type"`
	Label    string `json:"label"`
	Style    int    `json:"style"`
	CustomID string `json:"custom_id"`
}

type discordActionRow struct {
	Type       int             `json:"type"`
	Components []discordButton `json:"components"`
}

type discordWebhookPayload struct {
	Content    string             `json:"content,omitempty"`
	Embeds     []discordEmbed     `json:"embeds"`
	Components []discordActionRow `json:"components,omitempty"`
}

type discordAttachment struct {
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

type discordMessageResponse struct {
	ID          string              `json:"id"`
	Attachments []discordAttachment `json:"attachments"`
}

// statusPresentation maps an order status to the localized label, embed
// color and title used on the mirrored message.
func statusPresentation(order *models.Order, status string) (string, int, string) {
	switch status {
	case models.StatusPendingVerification:
		return "⏳ جاري مراجعة الإيصال من قِبل الإدارة...", 0x00f2fe, "💰 فحص عملية الدفع"
	case models.StatusWaiting:
		return "✅ تم تأكيد الدفع! بانتظار استلام أحد الموظفين للطلب...", 0x00ff00, "🔔 الطلب جاهز للتنفيذ"
	case models.StatusWorking:
		workerName := unspecified
		if order.WorkerName != nil && *order.WorkerName != "" {
			workerName = *order.WorkerName
		}
		return fmt.Sprintf("🔥 جارِ العمل بواسطة: %s", workerName), 0x4facfe, "⚡ جاري تنفيذ الطلب الآن!"
	case models.StatusDone:
		return "✅ تم الانتهاء بنجاح! شكراً لتعاملكم معنا.", 0x00ff00, "🎉 تم إكمال الطلب بنجاح!"
	case models.StatusRejected:
		return "❌ نعتذر، تم رفض الطلب أو الإيصال غير صالح.", 0xff00c8, "🚫 الطلب مرفوض"
	default:
		return "بانتظار البدء... ⏳", 0x00f2fe, "🚀 وصل طلب تلفيل جديد!"
	}
}

// truncateField caps a field value at Discord's limit with a marker
func truncateField(value string) string {
	if value == "" {
		return unspecified
	}
	runes := []rune(value)
	if len(runes) <= maxFieldLength {
		return value
	}
	return string(runes[:maxFieldLength-1]) + "…"
}

// characterNames joins the order's character names for display
func characterNames(order *models.Order) string {
	if len(order.Characters) == 0 {
		return unspecified
	}
	names := make([]string, 0, len(order.Characters))
	for _, c := range order.Characters {
		names = append(names, c.Name)
	}
	return truncateField(strings.Join(names, "، "))
}

// thumbnailFor picks the first character image, falling back to the client avatar
func thumbnailFor(order *models.Order) *discordImage {
	if len(order.Characters) > 0 && order.Characters[0].Image != "" {
		return &discordImage{URL: order.Characters[0].Image}
	}
	if order.ClientAvatar != "" {
		return &discordImage{URL: order.ClientAvatar}
	}
	return nil
}

// actionButtons builds the start/reject button row attached to new orders.
// The buttons are acknowledged by the channel's own automation, not by this
// service.
func actionButtons(orderID string) []discordActionRow {
	return []discordActionRow{
		{
			Type: 1,
			Components: []discordButton{
				{Type: 2, Label: "بدء العمل ️🛠️", Style: 1, CustomID: "start_" + orderID},
				{Type: 2, Label: "رفض الطلب ❌", Style: 4, CustomID: "reject_" + orderID},
			},
		},
	}
}

// PostNew posts a structured summary of a new order and returns the
// channel-assigned message id
func (s *DiscordService) PostNew(order *models.Order) (string, error) {
	payload := discordWebhookPayload{
		Content: fmt.Sprintf("📦 **طلب جديد من %s!**", truncateField(order.ClientName)),
		Embeds: []discordEmbed{
			{
				Title: "🚀 وصل طلب تلفيل جديد!",
				Color: 0x00f2fe,
				Fields: []discordField{
					{Name: "👤 اسم العميل", Value: truncateField(order.ClientName), Inline: true},
					{Name: "🗡️ الشخصيات", Value: characterNames(order), Inline: true},
					{Name: "💎 الفئة (Tier)", Value: truncateField(order.Tier), Inline: true},
					{Name: "🆔 رقم الطلب", Value: fmt.Sprintf("`%s`", order.ID)},
					{Name: "⏳ الحالة الحالية", Value: "بانتظار الدفع أو البدء... ⏳"},
				},
				Thumbnail: thumbnailFor(order),
				Footer:    &discordFooter{Text: "نظام Professional GS لإدارة الطلبات"},
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			},
		},
		Components: actionButtons(order.ID),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	resp, err := s.httpClient.Post(s.webhookURL+"?wait=true", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to call webhook: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var message discordMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&message); err != nil {
		return "", fmt.Errorf("failed to decode webhook response: %w", err)
	}

	return message.ID, nil
}

// PostWithAttachment posts the payment proof image alongside a structured
// summary and extracts a durable URL for the receipt from the response
func (s *DiscordService) PostWithAttachment(order *models.Order, file *multipart.FileHeader, senderWallet string) (string, string, error) {
	wallet := senderWallet
	if wallet == "" {
		wallet = unspecified
	}

	payload := discordWebhookPayload{
		Content: fmt.Sprintf("💰 **إيصال دفع جديد من %s!**", truncateField(order.ClientName)),
		Embeds: []discordEmbed{
			{
				Title: "💰 فحص عملية الدفع",
				Color: 0x00f2fe,
				Fields: []discordField{
					{Name: "👤 اسم العميل", Value: truncateField(order.ClientName), Inline: true},
					{Name: "💎 الفئة (Tier)", Value: truncateField(order.Tier), Inline: true},
					{Name: " السعر", Value: fmt.Sprintf("%.0f ج.م", order.TotalPrice), Inline: true},
					{Name: "🗡️ الشخصيات", Value: characterNames(order)},
					{Name: "💳 رقم المحول", Value: truncateField(wallet)},
					{Name: "🆔 رقم الطلب", Value: fmt.Sprintf("`%s`", order.ID)},
					{Name: "⏳ الحالة الحالية", Value: "⏳ جاري مراجعة الإيصال من قِبل الإدارة..."},
				},
				Thumbnail: thumbnailFor(order),
				Footer:    &discordFooter{Text: "نظام Professional GS لإدارة الطلبات"},
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			},
		},
		Components: actionButtons(order.ID),
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	src, err := file.Open()
	if err != nil {
		return "", "", fmt.Errorf("failed to open proof file: %w", err)
	}
	defer func() {
		_ = src.Close()
	}()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("payload_json", string(payloadJSON)); err != nil {
		return "", "", fmt.Errorf("failed to write payload field: %w", err)
	}
	part, err := writer.CreateFormFile("files[0]", file.Filename)
	if err != nil {
		return "", "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return "", "", fmt.Errorf("failed to copy proof file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.webhookURL+"?wait=true", &buf)
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to call webhook: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", "", fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var message discordMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&message); err != nil {
		return "", "", fmt.Errorf("failed to decode webhook response: %w", err)
	}

	return message.ID, receiptURLFrom(message.Attachments, file.Filename), nil
}

// receiptURLFrom picks a durable URL for the uploaded receipt: an attachment
// whose name or type signals an image, then the first attachment, then an
// inline reference to the uploaded filename.
func receiptURLFrom(attachments []discordAttachment, filename string) string {
	for _, a := range attachments {
		if strings.HasPrefix(a.ContentType, "image/") || isImageFilename(a.Filename) {
			return a.URL
		}
	}
	if len(attachments) > 0 {
		return attachments[0].URL
	}
	return "attachment://" + filename
}

func isImageFilename(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".gif", ".webp"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// PatchExisting edits the mirrored message in place to reflect newStatus.
// Interactive buttons are stripped once the status is terminal.
func (s *DiscordService) PatchExisting(order *models.Order, newStatus string) error {
	if order.DiscordMessageID == nil || *order.DiscordMessageID == "" {
		return nil
	}

	statusText, color, title := statusPresentation(order, newStatus)

	embed := discordEmbed{
		Title: title,
		Color: color,
		Fields: []discordField{
			{Name: "👤 اسم العميل", Value: truncateField(order.ClientName), Inline: true},
			{Name: " الفئة/النوع", Value: truncateField(order.Tier), Inline: true},
			{Name: " السعر", Value: fmt.Sprintf("%.0f ج.م", order.TotalPrice), Inline: true},
			{Name: "🗡️ الشخصيات", Value: characterNames(order)},
			{Name: "⏳ الحالة الحالية", Value: truncateField(statusText)},
		},
		Thumbnail: thumbnailFor(order),
		Footer:    &discordFooter{Text: "Professional GS - نظام التلفيل الآلي"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if order.ReceiptURL != nil && *order.ReceiptURL != "" {
		embed.Image = &discordImage{URL: *order.ReceiptURL}
	}

	payload := map[string]interface{}{
		"embeds": []discordEmbed{embed},
	}
	if models.IsTerminalStatus(newStatus) {
		payload["components"] = []discordActionRow{}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	url := fmt.Sprintf("%s/messages/%s", s.webhookURL, *order.DiscordMessageID)
	req, err := http.NewRequest(http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call webhook: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}
