package services

import (
	"sync"

	"github.com/team-gs/gs-orders-api/models"
)

// OrderBroadcaster fans fresh order snapshots out to subscribed viewers.
// It replaces the live-query mechanism order history, the staff queue and
// the operations console subscribe to: every committed change delivers the
// full snapshot, not a delta.
type OrderBroadcaster struct {
	mutex    sync.Mutex
	channels map[chan *models.Order]bool
}

var orderBroadcasterInstance *OrderBroadcaster

// NewOrderBroadcaster creates an empty broadcaster
func NewOrderBroadcaster() *OrderBroadcaster {
	return &OrderBroadcaster{
		channels: make(map[chan *models.Order]bool),
	}
}

// InitOrderBroadcaster initializes the global broadcaster instance
func InitOrderBroadcaster() *OrderBroadcaster {
	orderBroadcasterInstance = NewOrderBroadcaster()
	return orderBroadcasterInstance
}

// GetOrderBroadcaster returns the global broadcaster instance
func GetOrderBroadcaster() *OrderBroadcaster {
	return orderBroadcasterInstance
}

// SetOrderBroadcaster sets the broadcaster instance (primarily for testing)
func SetOrderBroadcaster(b *OrderBroadcaster) {
	orderBroadcasterInstance = b
}

// Register subscribes a viewer and returns its delivery channel. The channel
// is buffered so a slow viewer cannot block the lifecycle engine; snapshots
// a full viewer misses are dropped, the next one supersedes them anyway.
func (b *OrderBroadcaster) Register() chan *models.Order {
	channel := make(chan *models.Order, 16)
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.channels[channel] = true
	return channel
}

// Unregister removes a viewer and closes its channel. Callers must
// unregister when their surface closes or the subscription leaks.
func (b *OrderBroadcaster) Unregister(channel chan *models.Order) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.channels[channel] {
		delete(b.channels, channel)
		close(channel)
	}
}

// Broadcast delivers an order snapshot to every subscribed viewer
func (b *OrderBroadcaster) Broadcast(order *models.Order) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	for channel := range b.channels {
		select {
		case channel <- order:
		default:
		}
	}
}
