package broker

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const EventTypeOrderCreated = "order.created"

// OrderCreatedEvent публикуется после фиксации транзакции оформления заказа.
// Несёт только идентификатор: обработчик сам поднимает заказ из хранилища.
type OrderCreatedEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	OrderID   uuid.UUID `json:"order_id"`
	CreatedAt time.Time `json:"created_at"`
}

func NewOrderCreatedEvent(orderID uuid.UUID) *OrderCreatedEvent {
	return &OrderCreatedEvent{
		EventID:   uuid.NewString(),
		EventType: EventTypeOrderCreated,
		OrderID:   orderID,
		CreatedAt: time.Now(),
	}
}

// EventPublisher публикует доменные события заказов.
type EventPublisher struct {
	producer *Producer
}

func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *OrderCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, "order-"+event.OrderID.String(), event)
}
