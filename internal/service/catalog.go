package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/linemk/coffee-shop/internal/domain/models"
	"github.com/linemk/coffee-shop/internal/storage"
	"github.com/shopspring/decimal"
)

var ErrNegativePrice = errors.New("price must not be negative")

// CatalogService определяет операции над категориями и товарами.
// Чтение открыто всем, запись доступна только администраторам
// (ограничение накладывает транспортный слой).
type CatalogService interface {
	CreateCategory(ctx context.Context, title string) (*models.Category, error)
	GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error)
	ListCategories(ctx context.Context, title string) ([]*models.Category, error)
	UpdateCategory(ctx context.Context, category *models.Category) error
	DeleteCategory(ctx context.Context, id uuid.UUID) error

	CreateProduct(ctx context.Context, title, description string, price decimal.Decimal, categoryID uuid.UUID) (*models.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, title string) ([]*models.Product, error)
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

type catalogService struct {
	log         *slog.Logger
	catalogRepo storage.CatalogStorage
}

func NewCatalogService(log *slog.Logger, catalogRepo storage.CatalogStorage) CatalogService {
	return &catalogService{log: log, catalogRepo: catalogRepo}
}

func (s *catalogService) CreateCategory(ctx context.Context, title string) (*models.Category, error) {
	const op = "service.CatalogService.CreateCategory"

	category := &models.Category{
		ID:       uuid.Must(uuid.NewV7()),
		Title:    title,
		IsActive: true,
	}
	created, err := s.catalogRepo.CreateCategory(ctx, category)
	if err != nil {
		s.log.Error("failed to create category", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("category created", slog.String("op", op), slog.String("categoryID", created.ID.String()))
	return created, nil
}

func (s *catalogService) GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	return s.catalogRepo.GetCategoryByID(ctx, id)
}

func (s *catalogService) ListCategories(ctx context.Context, title string) ([]*models.Category, error) {
	return s.catalogRepo.ListCategories(ctx, title)
}

func (s *catalogService) UpdateCategory(ctx context.Context, category *models.Category) error {
	const op = "service.CatalogService.UpdateCategory"

	if err := s.catalogRepo.UpdateCategory(ctx, category); err != nil {
		if errors.Is(err, storage.ErrCategoryNotFound) {
			return err
		}
		s.log.Error("failed to update category", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteCategory удаляет категорию вместе с её товарами (каскад в БД).
func (s *catalogService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	const op = "service.CatalogService.DeleteCategory"

	if err := s.catalogRepo.DeleteCategory(ctx, id); err != nil {
		if errors.Is(err, storage.ErrCategoryNotFound) {
			return err
		}
		s.log.Error("failed to delete category", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("category deleted with its products", slog.String("op", op), slog.String("categoryID", id.String()))
	return nil
}

func (s *catalogService) CreateProduct(ctx context.Context, title, description string, price decimal.Decimal, categoryID uuid.UUID) (*models.Product, error) {
	const op = "service.CatalogService.CreateProduct"
	logger := s.log.With(slog.String("op", op), slog.String("title", title))

	if price.IsNegative() {
		logger.Warn("negative price rejected")
		return nil, ErrNegativePrice
	}

	// категория должна существовать до создания товара
	if _, err := s.catalogRepo.GetCategoryByID(ctx, categoryID); err != nil {
		if errors.Is(err, storage.ErrCategoryNotFound) {
			return nil, err
		}
		logger.Error("failed to get category", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	product := &models.Product{
		ID:          uuid.Must(uuid.NewV7()),
		Title:       title,
		Description: description,
		Price:       price,
		CategoryID:  categoryID,
		IsActive:    true,
	}
	created, err := s.catalogRepo.CreateProduct(ctx, product)
	if err != nil {
		logger.Error("failed to create product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("product created", slog.String("productID", created.ID.String()))
	return created, nil
}

func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return s.catalogRepo.GetProductByID(ctx, id)
}

func (s *catalogService) ListProducts(ctx context.Context, title string) ([]*models.Product, error) {
	return s.catalogRepo.ListProducts(ctx, title)
}

func (s *catalogService) UpdateProduct(ctx context.Context, product *models.Product) error {
	const op = "service.CatalogService.UpdateProduct"

	if product.Price.IsNegative() {
		return ErrNegativePrice
	}
	if err := s.catalogRepo.UpdateProduct(ctx, product); err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return err
		}
		s.log.Error("failed to update product", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	const op = "service.CatalogService.DeleteProduct"

	if err := s.catalogRepo.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return err
		}
		s.log.Error("failed to delete product", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
