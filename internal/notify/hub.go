package notify

import (
	"context"
	"sync"

	"referral-earnings-go/internal/models"

	"go.uber.org/zap"
)

// Hub is an in-process sink for local subscribers such as websocket clients.
// A slow subscriber misses events rather than slowing the hub down.
type Hub struct {
	mutex       sync.RWMutex
	subscribers map[int]chan models.EarningsEvent
	nextId      int
	buffer      int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subscribers: make(map[int]chan models.EarningsEvent),
		buffer:      buffer,
	}
}

func (h *Hub) Name() string { return "hub" }

// Subscribe returns an event channel and a func that unsubscribes and closes it.
func (h *Hub) Subscribe() (<-chan models.EarningsEvent, func()) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	id := h.nextId
	h.nextId++
	ch := make(chan models.EarningsEvent, h.buffer)
	h.subscribers[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mutex.Lock()
			defer h.mutex.Unlock()
			delete(h.subscribers, id)
			close(ch)
		})
	}
	return ch, unsubscribe
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.subscribers)
}

func (h *Hub) Deliver(_ context.Context, event models.EarningsEvent) error {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for id, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			zap.L().Debug("Subscriber buffer full, skipping event",
				zap.Int("subscriber", id),
				zap.String("user_id", event.BeneficiaryId))
		}
	}
	return nil
}
