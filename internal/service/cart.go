package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/linemk/coffee-shop/internal/domain/models"
	"github.com/linemk/coffee-shop/internal/storage"
)

// CartService определяет операции над корзиной пользователя.
type CartService interface {
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.Cart, error)
	GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error
	ClearCart(ctx context.Context, userID uuid.UUID) error
}

type cartService struct {
	log         *slog.Logger
	cartRepo    storage.CartStorage
	catalogRepo storage.CatalogStorage
}

func NewCartService(log *slog.Logger, cartRepo storage.CartStorage, catalogRepo storage.CatalogStorage) CartService {
	return &cartService{
		log:         log,
		cartRepo:    cartRepo,
		catalogRepo: catalogRepo,
	}
}

// AddItem кладёт товар в корзину. Корзина создаётся при первом добавлении.
// Для уже лежащего в корзине товара количество суммируется с текущим.
func (s *cartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.Cart, error) {
	const op = "service.CartService.AddItem"
	logger := s.log.With(
		slog.String("op", op),
		slog.String("userID", userID.String()),
		slog.String("productID", productID.String()),
	)

	// товар должен существовать, иначе позиция корзины повиснет в воздухе
	if _, err := s.catalogRepo.GetProductByID(ctx, productID); err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			logger.Warn("product not found")
			return nil, err
		}
		logger.Error("failed to get product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get product: %w", op, err)
	}

	cartID, err := s.cartRepo.GetOrCreateCart(ctx, userID)
	if err != nil {
		logger.Error("failed to get or create cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get or create cart: %w", op, err)
	}

	if err := s.cartRepo.UpsertItem(ctx, cartID, productID, quantity); err != nil {
		logger.Error("failed to upsert cart item", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to upsert cart item: %w", op, err)
	}

	cart, err := s.cartRepo.GetCartByUserID(ctx, userID)
	if err != nil {
		logger.Error("failed to load cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to load cart: %w", op, err)
	}

	logger.Info("item added to cart", slog.Int("quantity", quantity))
	return cart, nil
}

// GetCart возвращает корзину с позициями. Если пользователь ещё ничего
// не добавлял, корзины нет — это отличимо от пустой корзины.
func (s *cartService) GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	const op = "service.CartService.GetCart"

	cart, err := s.cartRepo.GetCartByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrCartNotFound) {
			return nil, err
		}
		s.log.Error("failed to get cart", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get cart: %w", op, err)
	}
	return cart, nil
}

// RemoveItem удаляет позицию строго из корзины владельца:
// чужую позицию по угаданному id удалить нельзя.
func (s *cartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	const op = "service.CartService.RemoveItem"
	logger := s.log.With(slog.String("op", op), slog.String("userID", userID.String()))

	cart, err := s.cartRepo.GetCartByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrCartNotFound) {
			return storage.ErrCartItemNotFound
		}
		logger.Error("failed to get cart", slog.Any("error", err))
		return fmt.Errorf("%s: failed to get cart: %w", op, err)
	}

	if err := s.cartRepo.DeleteItem(ctx, cart.ID, itemID); err != nil {
		if errors.Is(err, storage.ErrCartItemNotFound) {
			logger.Warn("cart item not found", slog.String("itemID", itemID.String()))
			return err
		}
		logger.Error("failed to delete cart item", slog.Any("error", err))
		return fmt.Errorf("%s: failed to delete cart item: %w", op, err)
	}

	logger.Info("cart item removed", slog.String("itemID", itemID.String()))
	return nil
}

// ClearCart удаляет все позиции корзины. Очистка пустой или
// несуществующей корзины — успешная no-op операция.
func (s *cartService) ClearCart(ctx context.Context, userID uuid.UUID) error {
	const op = "service.CartService.ClearCart"
	logger := s.log.With(slog.String("op", op), slog.String("userID", userID.String()))

	cart, err := s.cartRepo.GetCartByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrCartNotFound) {
			return nil
		}
		logger.Error("failed to get cart", slog.Any("error", err))
		return fmt.Errorf("%s: failed to get cart: %w", op, err)
	}

	if err := s.cartRepo.ClearItems(ctx, cart.ID); err != nil {
		logger.Error("failed to clear cart", slog.Any("error", err))
		return fmt.Errorf("%s: failed to clear cart: %w", op, err)
	}

	logger.Info("cart cleared")
	return nil
}
