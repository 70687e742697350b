package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/linemk/coffee-shop/internal/service"
	"github.com/linemk/coffee-shop/internal/storage"
	"github.com/linemk/coffee-shop/internal/token"
)

var validate = validator.New()

// statusForError переводит доменную ошибку в HTTP-статус.
// Всё, что не распознано — инфраструктурная ошибка, наружу уходит 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrPasswordMismatch),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrNegativePrice),
		errors.Is(err, storage.ErrUserExists):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInactiveAccount),
		errors.Is(err, token.ErrInvalidToken),
		errors.Is(err, storage.ErrUserNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, storage.ErrCartNotFound),
		errors.Is(err, storage.ErrCartItemNotFound),
		errors.Is(err, storage.ErrOrderNotFound),
		errors.Is(err, storage.ErrCategoryNotFound),
		errors.Is(err, storage.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrOrderConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		// внутренние детали клиенту не раскрываем
		http.Error(w, "internal server error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

func respondJSON(log *slog.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error("failed to encode response", slog.Any("error", err))
	}
}
