package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/linemk/coffee-shop/internal/service"
	"github.com/linemk/coffee-shop/internal/token/jwtmiddleware"
)

// AddToCartRequest — запрос добавления товара в корзину
type AddToCartRequest struct {
	Product  string `json:"product" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

// GetCartHandler обрабатывает GET /cart/
func GetCartHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetCartHandler"
		logger := log.With(slog.String("op", op))

		principal, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("principal not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		cart, err := cartService.GetCart(r.Context(), principal.UserID)
		if err != nil {
			logger.Error("failed to get cart", slog.Any("error", err))
			respondError(w, err)
			return
		}

		respondJSON(logger, w, http.StatusOK, cart)
	}
}

// AddToCartHandler обрабатывает POST /cart/
func AddToCartHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AddToCartHandler"
		logger := log.With(slog.String("op", op))

		principal, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("principal not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req AddToCartRequest
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

		productID, err := uuid.Parse(req.Product)
		if err != nil {
			http.Error(w, "invalid product id", http.StatusBadRequest)
			return
		}

		cart, err := cartService.AddItem(r.Context(), principal.UserID, productID, req.Quantity)
		if err != nil {
			logger.Error("failed to add item to cart", slog.Any("error", err))
			respondError(w, err)
			return
		}

		respondJSON(logger, w, http.StatusOK, cart)
	}
}

// RemoveCartItemHandler обрабатывает DELETE /cart/{item_id}/
func RemoveCartItemHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RemoveCartItemHandler"
		logger := log.With(slog.String("op", op))

		principal, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("principal not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		itemID, err := uuid.Parse(chi.URLParam(r, "item_id"))
		if err != nil {
			http.Error(w, "invalid item id", http.StatusBadRequest)
			return
		}

		if err := cartService.RemoveItem(r.Context(), principal.UserID, itemID); err != nil {
			logger.Error("failed to remove cart item", slog.Any("error", err))
			respondError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// ClearCartHandler обрабатывает DELETE /cart/
func ClearCartHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ClearCartHandler"
		logger := log.With(slog.String("op", op))

		principal, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("principal not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := cartService.ClearCart(r.Context(), principal.UserID); err != nil {
			logger.Error("failed to clear cart", slog.Any("error", err))
			respondError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
