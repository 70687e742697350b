package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/linemk/coffee-shop/internal/domain/models"
	"github.com/linemk/coffee-shop/internal/storage"
	"github.com/linemk/coffee-shop/internal/token"
	"golang.org/x/crypto/bcrypt"
)

// AuthServiceInterface описывает жизненный цикл пользователя:
// регистрация, верификация, выдача и обновление токенов, деактивация.
type AuthServiceInterface interface {
	Register(ctx context.Context, username, password, password2 string) (*models.User, error)
	Verify(ctx context.Context, username string) error
	Login(ctx context.Context, username, password string) (*token.Pair, error)
	Refresh(ctx context.Context, refreshToken string) (*token.Pair, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	UpdateUser(ctx context.Context, userID uuid.UUID, upd UserUpdate) (*models.User, error)
	DeleteUser(ctx context.Context, userID uuid.UUID) error
	SweepUnverifiedUsers(ctx context.Context) (int64, error)
}

// UserUpdate — изменяемые администратором поля. Nil-поля не трогаются.
type UserUpdate struct {
	Email      *string
	IsActive   *bool
	IsVerified *bool
	IsStaff    *bool
}

type AuthService struct {
	log       *slog.Logger
	userRepo  storage.UserStorage
	tokens    *token.Manager
	blacklist token.Blacklist
	retention time.Duration // окно, после которого неверифицированный аккаунт деактивируется
}

func NewAuthService(log *slog.Logger, userRepo storage.UserStorage, tokens *token.Manager, blacklist token.Blacklist, retention time.Duration) *AuthService {
	return &AuthService{
		log:       log,
		userRepo:  userRepo,
		tokens:    tokens,
		blacklist: blacklist,
		retention: retention,
	}
}

// Register создаёт нового пользователя. Пароль хэшируется через bcrypt
// (автоматически добавляет соль) и в ответах никогда не фигурирует.
// Новый аккаунт активен, но не верифицирован.
func (a *AuthService) Register(ctx context.Context, username, password, password2 string) (*models.User, error) {
	const op = "auth.Register"
	logger := a.log.With(slog.String("op", op), slog.String("username", username))

	if password != password2 {
		logger.Warn("password confirmation mismatch")
		return nil, ErrPasswordMismatch
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("failed to hash password", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to hash password: %w", op, err)
	}

	newUser := &models.User{
		ID:         uuid.Must(uuid.NewV7()),
		Username:   username,
		PassHash:   passHash,
		IsActive:   true,
		IsVerified: false,
	}
	user, err := a.userRepo.CreateUser(ctx, newUser)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			logger.Warn("username already taken")
			return nil, err
		}
		logger.Error("failed to create user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create user: %w", op, err)
	}

	logger.Info("user registered", slog.String("userID", user.ID.String()))
	return user, nil
}

// Verify помечает пользователя верифицированным. Для несуществующего имени
// возвращается та же общая ошибка, что и при неверных учётных данных.
func (a *AuthService) Verify(ctx context.Context, username string) error {
	const op = "auth.Verify"
	logger := a.log.With(slog.String("op", op), slog.String("username", username))

	if err := a.userRepo.SetVerified(ctx, username); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			logger.Warn("verification for unknown username")
			return ErrInvalidCredentials
		}
		logger.Error("failed to verify user", slog.Any("error", err))
		return fmt.Errorf("%s: failed to verify user: %w", op, err)
	}

	logger.Info("user verified")
	return nil
}

// Login проверяет учётные данные и выдаёт пару access+refresh.
func (a *AuthService) Login(ctx context.Context, username, password string) (*token.Pair, error) {
	const op = "auth.Login"
	logger := a.log.With(slog.String("op", op), slog.String("username", username))
	logger.Info("checking user")

	user, err := a.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			logger.Warn("user not found")
			return nil, ErrInvalidCredentials
		}
		logger.Error("failed to get user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		logger.Warn("invalid password")
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		logger.Warn("login attempt for inactive account")
		return nil, ErrInvalidCredentials
	}

	pair, err := a.tokens.NewPair(user)
	if err != nil {
		logger.Error("failed to generate tokens", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to generate tokens: %w", op, err)
	}

	logger.Info("user logged in successfully", slog.String("userID", user.ID.String()))
	return pair, nil
}

// Refresh обновляет пару токенов по refresh-токену. Состояние аккаунта
// перепроверяется при каждом обновлении, а не только при логине:
// деактивированный или разверифицированный пользователь теряет доступ,
// и его refresh-токен сразу попадает в чёрный список.
func (a *AuthService) Refresh(ctx context.Context, refreshToken string) (*token.Pair, error) {
	const op = "auth.Refresh"
	logger := a.log.With(slog.String("op", op))

	claims, err := a.tokens.Parse(refreshToken, token.TypeRefresh)
	if err != nil {
		logger.Warn("invalid refresh token")
		return nil, token.ErrInvalidToken
	}

	revoked, err := a.blacklist.IsRevoked(ctx, claims.JTI)
	if err != nil {
		logger.Error("failed to check blacklist", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to check blacklist: %w", op, err)
	}
	if revoked {
		logger.Warn("refresh token is revoked", slog.String("jti", claims.JTI))
		return nil, token.ErrInvalidToken
	}

	user, err := a.userRepo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			logger.Warn("user from token not found", slog.String("userID", claims.UserID.String()))
			return nil, storage.ErrUserNotFound
		}
		logger.Error("failed to get user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	if !user.IsActive || !user.IsVerified {
		// токен отзываем сразу, чтобы его нельзя было предъявить повторно
		if rvErr := a.blacklist.Revoke(ctx, claims.JTI, time.Until(claims.ExpiresAt)); rvErr != nil {
			logger.Error("failed to revoke token", slog.Any("error", rvErr))
		}
		logger.Warn("refresh for inactive account", slog.String("userID", user.ID.String()))
		return nil, ErrInactiveAccount
	}

	// ротация: старый refresh отзывается, выдаётся новая пара
	if err := a.blacklist.Revoke(ctx, claims.JTI, time.Until(claims.ExpiresAt)); err != nil {
		logger.Error("failed to revoke rotated token", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to revoke rotated token: %w", op, err)
	}

	pair, err := a.tokens.NewPair(user)
	if err != nil {
		logger.Error("failed to generate tokens", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to generate tokens: %w", op, err)
	}

	logger.Info("tokens refreshed", slog.String("userID", user.ID.String()))
	return pair, nil
}

func (a *AuthService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	const op = "auth.GetProfile"

	user, err := a.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		a.log.Error("failed to get profile", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}
	return user, nil
}

// ListUsers возвращает всех пользователей, доступно только персоналу.
func (a *AuthService) ListUsers(ctx context.Context) ([]*models.User, error) {
	const op = "auth.ListUsers"

	users, err := a.userRepo.List(ctx)
	if err != nil {
		a.log.Error("failed to list users", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

// UpdateUser применяет частичное обновление к аккаунту пользователя.
func (a *AuthService) UpdateUser(ctx context.Context, userID uuid.UUID, upd UserUpdate) (*models.User, error) {
	const op = "auth.UpdateUser"
	logger := a.log.With(slog.String("op", op), slog.String("userID", userID.String()))

	user, err := a.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			logger.Warn("user not found")
			return nil, err
		}
		logger.Error("failed to get user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	if upd.Email != nil {
		user.Email = *upd.Email
	}
	if upd.IsActive != nil {
		user.IsActive = *upd.IsActive
	}
	if upd.IsVerified != nil {
		user.IsVerified = *upd.IsVerified
	}
	if upd.IsStaff != nil {
		user.IsStaff = *upd.IsStaff
	}

	updated, err := a.userRepo.UpdateUser(ctx, user)
	if err != nil {
		logger.Error("failed to update user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update user: %w", op, err)
	}

	logger.Info("user updated")
	return updated, nil
}

// DeleteUser удаляет аккаунт вместе с корзиной и заказами (каскадно на уровне БД).
func (a *AuthService) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	const op = "auth.DeleteUser"
	logger := a.log.With(slog.String("op", op), slog.String("userID", userID.String()))

	if err := a.userRepo.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			logger.Warn("user not found")
			return err
		}
		logger.Error("failed to delete user", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("user deleted")
	return nil
}

// SweepUnverifiedUsers деактивирует пользователей, не прошедших верификацию
// за отведённое окно. Идемпотентна: повторный запуск ничего не меняет.
func (a *AuthService) SweepUnverifiedUsers(ctx context.Context) (int64, error) {
	const op = "auth.SweepUnverifiedUsers"
	logger := a.log.With(slog.String("op", op))

	cutoff := time.Now().Add(-a.retention)
	count, err := a.userRepo.DeactivateUnverifiedBefore(ctx, cutoff)
	if err != nil {
		logger.Error("sweep failed", slog.Any("error", err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("sweep completed", slog.Int64("deactivated", count))
	return count, nil
}
