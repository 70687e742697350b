package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/linemk/coffee-shop/internal/broker"
	"github.com/linemk/coffee-shop/internal/domain/models"
	"github.com/linemk/coffee-shop/internal/storage"
	"github.com/shopspring/decimal"
)

// OrderService определяет операции над заказами.
type OrderService interface {
	CreateOrder(ctx context.Context, userID uuid.UUID) (*models.Order, error)
	GetOrder(ctx context.Context, userID uuid.UUID, isStaff bool, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, userID uuid.UUID, isStaff bool, filter storage.OrderFilter) ([]*models.Order, error)
}

// OrderEventPublisher — интерфейс постановки уведомления в очередь.
// Успех постановки не означает успеха доставки.
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *broker.OrderCreatedEvent) error
}

type orderService struct {
	log       *slog.Logger
	db        *sql.DB
	cartRepo  storage.CartStorage
	orderRepo storage.OrderStorage
	publisher OrderEventPublisher
}

func NewOrderService(log *slog.Logger, db *sql.DB, cartRepo storage.CartStorage, orderRepo storage.OrderStorage, publisher OrderEventPublisher) OrderService {
	return &orderService{
		log:       log,
		db:        db,
		cartRepo:  cartRepo,
		orderRepo: orderRepo,
		publisher: publisher,
	}
}

// CreateOrder превращает корзину в заказ. Чтение корзины, расчёт суммы,
// запись заказа с позициями и очистка корзины выполняются в одной транзакции
// под блокировкой строки корзины: два параллельных оформления одной корзины
// не могут пройти оба. Цена каждой позиции замораживается на момент
// оформления и от последующих изменений каталога не зависит.
func (s *orderService) CreateOrder(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	const op = "service.OrderService.CreateOrder"
	logger := s.log.With(slog.String("op", op), slog.String("userID", userID.String()))
	logger.Info("starting checkout transaction")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	cartID, err := s.cartRepo.LockCartByUserIDTx(ctx, tx, userID)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		if errors.Is(err, storage.ErrCartNotFound) {
			logger.Warn("no cart for user")
			return nil, ErrEmptyCart
		}
		if errors.Is(err, storage.ErrCartLocked) {
			logger.Warn("cart is locked by concurrent checkout")
			return nil, ErrOrderConflict
		}
		logger.Error("failed to lock cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to lock cart: %w", op, err)
	}

	items, err := s.cartRepo.GetCartItemsTx(ctx, tx, cartID)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to load cart items", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to load cart items: %w", op, err)
	}
	if len(items) == 0 {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Warn("cart is empty")
		return nil, ErrEmptyCart
	}

	totalPrice := decimal.Zero
	for _, item := range items {
		totalPrice = totalPrice.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	order := &models.Order{
		ID:         uuid.Must(uuid.NewV7()),
		UserID:     userID,
		TotalPrice: totalPrice,
		Status:     models.OrderStatusPending,
	}
	if err := s.orderRepo.CreateOrderTx(ctx, tx, order); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to create order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create order: %w", op, err)
	}

	for _, item := range items {
		orderItem := &models.OrderItem{
			ID:        uuid.Must(uuid.NewV7()),
			OrderID:   order.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Product.Price, // фиксация цены на момент оформления
		}
		if err := s.orderRepo.CreateOrderItemTx(ctx, tx, orderItem); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Error("transaction rollback failed", slog.Any("error", rbErr))
			}
			logger.Error("failed to create order item", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to create order item: %w", op, err)
		}
		order.Items = append(order.Items, orderItem)
	}

	if err := s.cartRepo.ClearItemsTx(ctx, tx, cartID); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to clear cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to clear cart: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "40001" { // serialization_failure
			logger.Warn("checkout serialization failure")
			return nil, ErrOrderConflict
		}
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	// Уведомление ставится в очередь только после фиксации транзакции.
	// Неудача постановки заказ не отменяет: очередь доставит его сама.
	if err := s.publisher.PublishOrderCreated(ctx, broker.NewOrderCreatedEvent(order.ID)); err != nil {
		logger.Error("failed to enqueue order notification", slog.Any("error", err))
	}

	logger.Info("order created",
		slog.String("orderID", order.ID.String()),
		slog.String("totalPrice", order.TotalPrice.StringFixed(2)),
	)
	return order, nil
}

// GetOrder возвращает заказ с позициями. Чужой заказ для не-администратора
// неотличим от несуществующего.
func (s *orderService) GetOrder(ctx context.Context, userID uuid.UUID, isStaff bool, orderID uuid.UUID) (*models.Order, error) {
	const op = "service.OrderService.GetOrder"

	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, err
		}
		s.log.Error("failed to get order", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get order: %w", op, err)
	}
	if order.UserID != userID && !isStaff {
		return nil, storage.ErrOrderNotFound
	}
	return order, nil
}

// ListOrders возвращает заказы по фильтру. Обычный пользователь видит
// только свои заказы, администратор — все.
func (s *orderService) ListOrders(ctx context.Context, userID uuid.UUID, isStaff bool, filter storage.OrderFilter) ([]*models.Order, error) {
	const op = "service.OrderService.ListOrders"

	if !isStaff {
		filter.UserID = &userID
		filter.Search = ""
	}

	orders, err := s.orderRepo.ListOrders(ctx, filter)
	if err != nil {
		s.log.Error("failed to list orders", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to list orders: %w", op, err)
	}
	return orders, nil
}
