package services

import (
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/team-gs/gs-orders-api/models"
	"gorm.io/gorm"
)

// Actor identifies who is executing a lifecycle operation
type Actor struct {
	ID     string
	Email  string
	Name   string
	Avatar string
}

// CharacterSelection is one requested character on a new order
type CharacterSelection struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// OrderService owns the order record's status field: it validates and
// executes transitions, computes derived effects (earnings accrual, worker
// attribution) and mirrors committed state to the notification channel. The
// persisted order is the single source of truth; the mirror and the earnings
// counter are derived state mutated only here.
type OrderService struct {
	db          *gorm.DB
	mirror      DiscordInterface
	directory   *StaffDirectory
	broadcaster *OrderBroadcaster
}

var orderServiceInstance *OrderService

// NewOrderService creates an order lifecycle engine
func NewOrderService(db *gorm.DB, mirror DiscordInterface, directory *StaffDirectory, broadcaster *OrderBroadcaster) *OrderService {
	return &OrderService{
		db:          db,
		mirror:      mirror,
		directory:   directory,
		broadcaster: broadcaster,
	}
}

// InitOrderService initializes the global order service instance
func InitOrderService(db *gorm.DB, mirror DiscordInterface, directory *StaffDirectory, broadcaster *OrderBroadcaster) *OrderService {
	orderServiceInstance = NewOrderService(db, mirror, directory, broadcaster)
	return orderServiceInstance
}

// GetOrderService returns the initialized order service instance
func GetOrderService() *OrderService {
	return orderServiceInstance
}

// SetOrderService sets the order service instance (primarily for testing)
func SetOrderService(service *OrderService) {
	orderServiceInstance = service
}

// CreateOrder persists a new order at awaiting_payment and returns it.
// The total price is snapshotted: per-character tier price times character
// count, never recomputed later. The new-order summary is mirrored
// best-effort; a mirror failure never fails the creation.
func (s *OrderService) CreateOrder(client Actor, tier string, selections []CharacterSelection, steamLogin *string) (*models.Order, error) {
	if len(selections) == 0 {
		return nil, &ValidationError{Code: "NO_CHARACTERS", Message: "At least one character must be selected"}
	}

	price, ok := models.PriceForTier(tier)
	if !ok {
		return nil, &ValidationError{Code: "INVALID_TIER", Message: fmt.Sprintf("Unknown tier %q", tier)}
	}

	order := &models.Order{
		ID:           uuid.NewString(),
		ClientID:     client.ID,
		ClientName:   client.Name,
		ClientAvatar: client.Avatar,
		Tier:         tier,
		TotalPrice:   price * float64(len(selections)),
		Status:       models.StatusAwaitingPayment,
		SteamLogin:   steamLogin,
	}
	for _, sel := range selections {
		order.Characters = append(order.Characters, models.OrderCharacter{
			CharacterID: sel.ID,
			Name:        sel.Name,
			Image:       sel.Image,
		})
	}

	if err := s.db.Create(order).Error; err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	// Mirror the new order. Best effort: the persisted record is
	// authoritative, so a webhook failure only costs the early summary.
	if messageID, err := s.mirror.PostNew(order); err != nil {
		log.Printf("order %s: mirror post failed: %v", order.ID, err)
	} else if messageID != "" {
		if err := s.db.Model(order).Update("discord_message_id", messageID).Error; err != nil {
			log.Printf("order %s: failed to record mirror handle: %v", order.ID, err)
		} else {
			order.DiscordMessageID = &messageID
		}
	}

	s.broadcaster.Broadcast(order)
	return order, nil
}

// SubmitPaymentProof uploads the payment receipt through the mirror and
// advances the order to pending_verification. The mirror call is essential
// here: on transport failure the order is left unchanged and the caller must
// resubmit.
func (s *OrderService) SubmitPaymentProof(orderID string, proof *multipart.FileHeader, senderWallet string) (*models.Order, error) {
	order, err := s.OrderByID(orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.StatusAwaitingPayment {
		return nil, &ValidationError{Code: "INVALID_STATUS", Message: "Payment proof can only be submitted while awaiting payment"}
	}

	messageID, receiptURL, err := s.mirror.PostWithAttachment(order, proof, senderWallet)
	if err != nil {
		return nil, fmt.Errorf("failed to submit payment proof: %w", err)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":          models.StatusPendingVerification,
		"receipt_url":     receiptURL,
		"sender_wallet":   senderWallet,
		"payment_sent_at": now,
	}
	// The mirror handle is written once and never replaced; status edits
	// always patch the original message.
	if order.DiscordMessageID == nil || *order.DiscordMessageID == "" {
		updates["discord_message_id"] = messageID
	}

	result := s.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, models.StatusAwaitingPayment).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update order: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, &ConflictError{Code: "STATUS_CONFLICT", Message: "Order status changed concurrently"}
	}

	order, err = s.OrderByID(orderID)
	if err != nil {
		return nil, err
	}

	if err := s.mirror.PatchExisting(order, models.StatusPendingVerification); err != nil {
		log.Printf("order %s: mirror patch failed: %v", orderID, err)
	}

	s.broadcaster.Broadcast(order)
	return order, nil
}

// Transition moves an order along one edge of the status machine.
// Claiming (waiting -> working) records the actor as the worker; completing
// (working -> done) accrues the order's total price to the worker's staff
// record; rejection is allowed from any non-terminal status. The update is
// conditional on the expected prior status, so a racing writer loses with a
// conflict instead of silently overwriting.
func (s *OrderService) Transition(orderID, newStatus string, actor Actor) (*models.Order, error) {
	order, err := s.OrderByID(orderID)
	if err != nil {
		return nil, err
	}

	if !models.CanTransition(order.Status, newStatus) {
		return nil, &ValidationError{
			Code:    "INVALID_TRANSITION",
			Message: fmt.Sprintf("Cannot move order from %s to %s", order.Status, newStatus),
		}
	}

	updates := map[string]interface{}{"status": newStatus}
	if newStatus == models.StatusWorking {
		updates["worker_id"] = actor.ID
		updates["worker_avatar"] = actor.Avatar
		if order.WorkerName != nil && *order.WorkerName != "" {
			// Multi-worker collaboration: concatenate rather than overwrite.
			if !strings.Contains(*order.WorkerName, actor.Name) {
				updates["worker_name"] = fmt.Sprintf("%s & %s", *order.WorkerName, actor.Name)
			}
		} else {
			updates["worker_name"] = actor.Name
		}
	}

	result := s.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, order.Status).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update order: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, &ConflictError{Code: "STATUS_CONFLICT", Message: "Order status changed concurrently"}
	}

	order, err = s.OrderByID(orderID)
	if err != nil {
		return nil, err
	}

	if newStatus == models.StatusDone && order.WorkerID != nil {
		if err := s.accrueEarnings(order, actor); err != nil {
			return nil, err
		}
	}

	if err := s.mirror.PatchExisting(order, newStatus); err != nil {
		log.Printf("order %s: mirror patch failed: %v", orderID, err)
	}

	s.broadcaster.Broadcast(order)
	return order, nil
}

// accrueEarnings credits the completed order's total price to the worker's
// staff record. The record id is resolved by matching the actor's email in
// the staff directory, falling back to the actor's identity id, and the
// increment itself is an additive upsert.
func (s *OrderService) accrueEarnings(order *models.Order, actor Actor) error {
	staffID := actor.ID
	role := "staff"
	if member, ok := s.directory.Lookup(actor.Email); ok {
		staffID = member.ID
		if member.Role != "" {
			role = member.Role
		}
	} else if member, ok := s.directory.Lookup(actor.ID); ok {
		staffID = member.ID
		if member.Role != "" {
			role = member.Role
		}
	}

	if err := s.directory.AccrueEarnings(staffID, actor.Email, actor.Name, role, order.TotalPrice); err != nil {
		return fmt.Errorf("failed to accrue earnings for order %s: %w", order.ID, err)
	}
	return nil
}

// Abandon returns a working order to the queue. The worker id is cleared;
// the recorded worker name stays behind for the concatenation heuristic on
// a later re-claim.
func (s *OrderService) Abandon(orderID string) (*models.Order, error) {
	order, err := s.OrderByID(orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.StatusWorking {
		return nil, &ValidationError{Code: "INVALID_STATUS", Message: "Only a working order can be abandoned"}
	}

	result := s.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, models.StatusWorking).
		Updates(map[string]interface{}{
			"status":    models.StatusWaiting,
			"worker_id": nil,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update order: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, &ConflictError{Code: "STATUS_CONFLICT", Message: "Order status changed concurrently"}
	}

	order, err = s.OrderByID(orderID)
	if err != nil {
		return nil, err
	}

	if err := s.mirror.PatchExisting(order, models.StatusWaiting); err != nil {
		log.Printf("order %s: mirror patch failed: %v", orderID, err)
	}

	s.broadcaster.Broadcast(order)
	return order, nil
}

// Rate records the client's rating on a completed order and inserts the
// denormalized review copy. A rating can be set exactly once; the update is
// conditional on no rating existing yet, so a concurrent double-submit loses.
func (s *OrderService) Rate(orderID string, rating int, review string) error {
	if rating < 1 || rating > 5 {
		return &ValidationError{Code: "INVALID_RATING", Message: "Rating must be between 1 and 5"}
	}

	order, err := s.OrderByID(orderID)
	if err != nil {
		return err
	}
	if order.Status != models.StatusDone {
		return &ValidationError{Code: "INVALID_STATUS", Message: "Only completed orders can be rated"}
	}
	if order.Rating != nil {
		return &ValidationError{Code: "ALREADY_RATED", Message: "This order has already been rated"}
	}

	now := time.Now()
	result := s.db.Model(&models.Order{}).
		Where("id = ? AND rating IS NULL", orderID).
		Updates(map[string]interface{}{
			"rating":   rating,
			"review":   review,
			"rated_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update order: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return &ConflictError{Code: "ALREADY_RATED", Message: "This order has already been rated"}
	}

	comment := models.Comment{
		OrderID:      orderID,
		ClientID:     order.ClientID,
		ClientName:   order.ClientName,
		ClientAvatar: order.ClientAvatar,
		Rating:       rating,
		Review:       review,
		Tier:         order.Tier,
	}
	if err := s.db.Create(&comment).Error; err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}

	return nil
}

// OrderByID loads a single order with its character line-items
func (s *OrderService) OrderByID(orderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.Preload("Characters").First(&order, "id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Code: "ORDER_NOT_FOUND", Message: "Order not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return &order, nil
}

// ActiveOrders lists all non-terminal orders, newest first
func (s *OrderService) ActiveOrders() ([]models.Order, error) {
	var orders []models.Order
	err := s.db.Preload("Characters").
		Where("status IN ?", models.ActiveStatuses()).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load active orders: %w", err)
	}
	return orders, nil
}

// Queue lists all non-terminal orders, oldest first, for staff to work through
func (s *OrderService) Queue() ([]models.Order, error) {
	var orders []models.Order
	err := s.db.Preload("Characters").
		Where("status IN ?", models.ActiveStatuses()).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}
	return orders, nil
}

// OrdersByClient lists a client's order history, newest first
func (s *OrderService) OrdersByClient(clientID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.Preload("Characters").
		Where("client_id = ?", clientID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load client orders: %w", err)
	}
	return orders, nil
}

// CompletedByWorker lists the orders a worker finished, newest first
func (s *OrderService) CompletedByWorker(workerID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.Preload("Characters").
		Where("worker_id = ? AND status = ?", workerID, models.StatusDone).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load completed orders: %w", err)
	}
	return orders, nil
}

// RecentOrders lists the most recent orders for the operations console
func (s *OrderService) RecentOrders(limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.Preload("Characters").
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent orders: %w", err)
	}
	return orders, nil
}

// HasPurchasedTier reports whether the client has any non-rejected order of
// the given tier
func (s *OrderService) HasPurchasedTier(clientID, tier string) (bool, error) {
	var count int64
	err := s.db.Model(&models.Order{}).
		Where("client_id = ? AND tier = ? AND status <> ?", clientID, tier, models.StatusRejected).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check tier purchase: %w", err)
	}
	return count > 0, nil
}
