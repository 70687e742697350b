package jwtmiddleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/linemk/coffee-shop/internal/token"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal — аутентифицированный пользователь запроса,
// устанавливается middleware из claims access-токена.
type Principal struct {
	UserID  uuid.UUID
	IsStaff bool
}

// NewJWTMiddleware создаёт middleware для проверки access-токена.
func NewJWTMiddleware(manager *token.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем токен из заголовка Authorization (формат: "Bearer <token>")
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing token", http.StatusUnauthorized)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid token format", http.StatusUnauthorized)
				return
			}

			claims, err := manager.Parse(parts[1], token.TypeAccess)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			principal := Principal{UserID: claims.UserID, IsStaff: claims.IsStaff}
			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireStaff пропускает дальше только администраторов.
// Навешивается поверх JWT middleware.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := FromContext(r.Context())
		if !ok || !principal.IsStaff {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// FromContext извлекает Principal из контекста.
func FromContext(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalKey).(Principal)
	return principal, ok
}

// WithPrincipal кладёт Principal в контекст, используется в тестах и в чате.
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}
