package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/linemk/coffee-shop/internal/domain/models"
	"github.com/linemk/coffee-shop/internal/service"
	"github.com/shopspring/decimal"
)

// CategoryRequest — запрос создания/обновления категории
type CategoryRequest struct {
	Title    string `json:"title" validate:"required"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// ProductRequest — запрос создания/обновления товара
type ProductRequest struct {
	Title       string          `json:"title" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category" validate:"required,uuid"`
	IsActive    *bool           `json:"is_active,omitempty"`
}

// ListCategoriesHandler обрабатывает GET /category/?title=...
func ListCategoriesHandler(log *slog.Logger, catalogService service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListCategoriesHandler"
		logger := log.With(slog.String("op", op))

		categories, err := catalogService.ListCategories(r.Context(), r.URL.Query().Get("title"))
		if err != nil {
			logger.Error("failed to list categories", slog.Any("error", err))
			respondError(w, err)
			return
		}
		respondJSON(logger, w, http.StatusOK, categories)
	}
}

// GetCategoryHandler обрабатывает GET /category/{category_id}/
func GetCategoryHandler(log *slog.Logger, catalogService service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetCategoryHandler"
		logger := log.With(slog.String("op", op))

		categoryID, err := uuid.Parse(chi.URLParam(r, "category_id"))
		if err != nil {
			http.Error(w, "invalid category id", http.StatusBadRequest)
			return
		}

		category, err := catalogService.GetCategory(r.Context(), categoryID)
		if err != nil {
			logger.Error("failed to get category", slog.Any("error", err))
			respondError(w, err)
			return
		}
		respondJSON(logger, w, http.StatusOK, category)
	}
}

// CreateCategoryHandler обрабатывает POST /category/ (только для администраторов)
func CreateCategoryHandler(log *slog.Logger, catalogService service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateCategoryHandler"
		logger := log.With(slog.String("op", op))

		var req CategoryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		category, err := catalogService.CreateCategory(r.Context(), req.Title)
		if err != nil {
			logger.Error("failed to create category", slog.Any("error", err))
			respondError(w, err)
			return
		}
		respondJSON(logger, w, http.StatusCreated, category)
	}
}

// UpdateCategoryHandler обрабатывает PUT /category/{category_id}/
func UpdateCategoryHandler(log *slog.Logger, catalogService service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateCategoryHandler"
		logger := log.With(slog.String("op", op))

		categoryID, err := uuid.Parse(chi.URLParam(r, "category_id"))
		if err != nil {
			http.Error(w, "invalid category id", http.StatusBadRequest)
			return
		}

		var req CategoryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		category := &models.Category{ID: categoryID, Title: req.Title, IsActive: true}
		if req.IsActive != nil {
			category.IsActive = *req.IsActive
		}
		if err := catalogService.UpdateCategory(r.Context(), category); err != nil {
			logger.Error("failed to update category", slog.Any("error", err))
			respondError(w, err)
			return
		}
		respondJSON(logger, w, http.StatusOK, category)
	}
}

// DeleteCategoryHandler обрабатывает DELETE /category/{category_id}/.
// Товары категории удаляются вместе с ней.
func DeleteCategoryHandler(log *slog.Logger, catalogService service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.DeleteCategoryHandler"
		logger := log.With(slog.String("op", op))

		categoryID, err := uuid.Parse(chi.URLParam(r, "category_id"))
		if err != nil {
			http.Error(w, "invalid category id", http.StatusBadRequest)
			return
		}

		if err := catalogService.DeleteCategory(r.Context(), categoryID); err != nil {
			logger.Error("failed to delete category", slog.Any("error", err))
			respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListProductsHandler обрабатывает GET /products/?title=...
func ListProductsHandler(log *slog.Logger, catalogService service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListProductsHandler"
		logger := log.With(slog.String("op", op))

		products, err := catalogService.ListProducts(r.Context(), r.URL.Query().Get("title"))
		if err != nil {
			logger.Error("failed to list products", slog.Any("error", err))
			respondError(w, err)
			return
		}
		respondJSON(logger, w, http.StatusOK, products)
	}
}

// GetProductHandler обрабатывает GET /products/{product_id}/
func GetProductHandler(log *slog.Logger, catalogService service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetProductHandler"
		logger := log.With(slog.String("op", op))

		productID, err := uuid.Parse(chi.URLParam(r, "product_id"))
		if err != nil {
			http.Error(w, "invalid product id", http.StatusBadRequest)
			return
		}

		product, err := catalogService.GetProduct(r.Context(), productID)
		if err != nil {
			logger.Error("failed to get product", slog.Any("error", err))
			respondError(w, err)
			return
		}
		respondJSON(logger, w, http.StatusOK, product)
	}
}

// CreateProductHandler обрабатывает POST /products/ (только для администраторов)
func CreateProductHandler(log *slog.Logger, catalogService service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateProductHandler"
		logger := log.With(slog.String("op", op))

		var req ProductRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		categoryID, err := uuid.Parse(req.Category)
		if err != nil {
			http.Error(w, "invalid category id", http.StatusBadRequest)
			return
		}

		product, err := catalogService.CreateProduct(r.Context(), req.Title, req.Description, req.Price, categoryID)
		if err != nil {
			logger.Error("failed to create product", slog.Any("error", err))
			respondError(w, err)
			return
		}
		respondJSON(logger, w, http.StatusCreated, product)
	}
}

// UpdateProductHandler обрабатывает PUT /products/{product_id}/
func UpdateProductHandler(log *slog.Logger, catalogService service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateProductHandler"
		logger := log.With(slog.String("op", op))

		productID, err := uuid.Parse(chi.URLParam(r, "product_id"))
		if err != nil {
			http.Error(w, "invalid product id", http.StatusBadRequest)
			return
		}

		var req ProductRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		categoryID, err := uuid.Parse(req.Category)
		if err != nil {
			http.Error(w, "invalid category id", http.StatusBadRequest)
			return
		}

		product := &models.Product{
			ID:          productID,
			Title:       req.Title,
			Description: req.Description,
			Price:       req.Price,
			CategoryID:  categoryID,
			IsActive:    true,
		}
		if req.IsActive != nil {
			product.IsActive = *req.IsActive
		}
		if err := catalogService.UpdateProduct(r.Context(), product); err != nil {
			logger.Error("failed to update product", slog.Any("error", err))
			respondError(w, err)
			return
		}
		respondJSON(logger, w, http.StatusOK, product)
	}
}

// DeleteProductHandler обрабатывает DELETE /products/{product_id}/
func DeleteProductHandler(log *slog.Logger, catalogService service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.DeleteProductHandler"
		logger := log.With(slog.String("op", op))

		productID, err := uuid.Parse(chi.URLParam(r, "product_id"))
		if err != nil {
			http.Error(w, "invalid product id", http.StatusBadRequest)
			return
		}

		if err := catalogService.DeleteProduct(r.Context(), productID); err != nil {
			logger.Error("failed to delete product", slog.Any("error", err))
			respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
