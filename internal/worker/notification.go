package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/linemk/coffee-shop/internal/broker"
	"github.com/linemk/coffee-shop/internal/storage"
	"github.com/segmentio/kafka-go"
)

// Mailer отправляет письмо списку получателей.
type Mailer interface {
	Send(ctx context.Context, subject, body string, to []string) error
}

// LogMailer пишет письмо в лог вместо SMTP. Достаточно для локальной
// разработки, боевой транспорт подставляется через интерфейс.
type LogMailer struct {
	log *slog.Logger
}

func NewLogMailer(log *slog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(ctx context.Context, subject, body string, to []string) error {
	m.log.Info("sending mail",
		slog.String("subject", subject),
		slog.String("body", body),
		slog.Any("to", to),
	)
	return nil
}

// NotificationWorker читает события о новых заказах и рассылает
// уведомления администраторам. Работает вне пути запроса: сбой здесь
// на создание заказа не влияет.
type NotificationWorker struct {
	log       *slog.Logger
	consumer  *broker.Consumer
	orderRepo storage.OrderStorage
	userRepo  storage.UserStorage
	mailer    Mailer
}

func NewNotificationWorker(log *slog.Logger, consumer *broker.Consumer, orderRepo storage.OrderStorage, userRepo storage.UserStorage, mailer Mailer) *NotificationWorker {
	return &NotificationWorker{
		log:       log,
		consumer:  consumer,
		orderRepo: orderRepo,
		userRepo:  userRepo,
		mailer:    mailer,
	}
}

func (w *NotificationWorker) Start(ctx context.Context) error {
	w.log.Info("starting notification worker")
	return w.consumer.StartConsuming(ctx, w.handleMessage)
}

func (w *NotificationWorker) Stop() error {
	w.log.Info("stopping notification worker")
	return w.consumer.Close()
}

func (w *NotificationWorker) handleMessage(ctx context.Context, msg kafka.Message) error {
	var event broker.OrderCreatedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if event.EventType != broker.EventTypeOrderCreated {
		w.log.Warn("unhandled event type", slog.String("type", event.EventType))
		return nil
	}
	return w.NotifyOrderCreated(ctx, &event)
}

// NotifyOrderCreated собирает письмо по заказу и отправляет его
// администраторам с непустым email.
func (w *NotificationWorker) NotifyOrderCreated(ctx context.Context, event *broker.OrderCreatedEvent) error {
	const op = "worker.NotificationWorker.NotifyOrderCreated"
	logger := w.log.With(slog.String("op", op), slog.String("orderID", event.OrderID.String()))

	order, err := w.orderRepo.GetOrderByID(ctx, event.OrderID)
	if err != nil {
		logger.Error("failed to get order", slog.Any("error", err))
		return fmt.Errorf("%s: failed to get order: %w", op, err)
	}

	user, err := w.userRepo.GetUserByID(ctx, order.UserID)
	if err != nil {
		logger.Error("failed to get order user", slog.Any("error", err))
		return fmt.Errorf("%s: failed to get order user: %w", op, err)
	}

	adminEmails, err := w.userRepo.ListStaffEmails(ctx)
	if err != nil {
		logger.Error("failed to list staff emails", slog.Any("error", err))
		return fmt.Errorf("%s: failed to list staff emails: %w", op, err)
	}
	if len(adminEmails) == 0 {
		logger.Info("no staff emails configured, notification skipped")
		return nil
	}

	subject := "Новый заказ"
	body := fmt.Sprintf("Пользователь %s создал заказ #%s.\nСумма: %s",
		user.Email, order.ID, order.TotalPrice.StringFixed(2))
	if err := w.mailer.Send(ctx, subject, body, adminEmails); err != nil {
		logger.Error("failed to send notification", slog.Any("error", err))
		return fmt.Errorf("%s: failed to send notification: %w", op, err)
	}

	logger.Info("order notification sent", slog.Int("recipients", len(adminEmails)))
	return nil
}
