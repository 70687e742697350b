package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/linemk/coffee-shop/internal/service"
	"github.com/linemk/coffee-shop/internal/storage"
	"github.com/linemk/coffee-shop/internal/token/jwtmiddleware"
	"github.com/shopspring/decimal"
)

// CreateOrderHandler обрабатывает POST /orders/ — оформление заказа из корзины
func CreateOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateOrderHandler"
		logger := log.With(slog.String("op", op))

		principal, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("principal not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		order, err := orderService.CreateOrder(r.Context(), principal.UserID)
		if err != nil {
			logger.Error("failed to create order", slog.Any("error", err))
			respondError(w, err)
			return
		}

		respondJSON(logger, w, http.StatusCreated, order)
	}
}

// GetOrderHandler обрабатывает GET /orders/{order_id}/
func GetOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetOrderHandler"
		logger := log.With(slog.String("op", op))

		principal, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("principal not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		orderID, err := uuid.Parse(chi.URLParam(r, "order_id"))
		if err != nil {
			http.Error(w, "invalid order id", http.StatusBadRequest)
			return
		}

		order, err := orderService.GetOrder(r.Context(), principal.UserID, principal.IsStaff, orderID)
		if err != nil {
			logger.Error("failed to get order", slog.Any("error", err))
			respondError(w, err)
			return
		}

		respondJSON(logger, w, http.StatusOK, order)
	}
}

// parseOrderFilter собирает фильтр списка заказов из query-параметров:
// ?user=<uuid>&total_price=<decimal>&created_at=<RFC3339>&search=<username>&ordering=[-]total_price|created_at
func parseOrderFilter(r *http.Request) (storage.OrderFilter, error) {
	var filter storage.OrderFilter

	if raw := r.URL.Query().Get("user"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return filter, err
		}
		filter.UserID = &userID
	}
	if raw := r.URL.Query().Get("total_price"); raw != "" {
		totalPrice, err := decimal.NewFromString(raw)
		if err != nil {
			return filter, err
		}
		filter.TotalPrice = &totalPrice
	}
	if raw := r.URL.Query().Get("created_at"); raw != "" {
		createdAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, err
		}
		filter.CreatedAt = &createdAt
	}
	filter.Search = r.URL.Query().Get("search")

	if ordering := r.URL.Query().Get("ordering"); ordering != "" {
		if strings.HasPrefix(ordering, "-") {
			filter.Desc = true
			ordering = ordering[1:]
		}
		if ordering == "total_price" || ordering == "created_at" {
			filter.OrderBy = ordering
		}
	}
	return filter, nil
}

// ListOrdersHandler обрабатывает GET /orders/
func ListOrdersHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListOrdersHandler"
		logger := log.With(slog.String("op", op))

		principal, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("principal not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		filter, err := parseOrderFilter(r)
		if err != nil {
			http.Error(w, "invalid filter parameters", http.StatusBadRequest)
			return
		}

		orders, err := orderService.ListOrders(r.Context(), principal.UserID, principal.IsStaff, filter)
		if err != nil {
			logger.Error("failed to list orders", slog.Any("error", err))
			respondError(w, err)
			return
		}

		respondJSON(logger, w, http.StatusOK, orders)
	}
}
