package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/linemk/coffee-shop/internal/domain/models"
)

// Типы токенов, пишутся в claim token_type, чтобы refresh нельзя было
// использовать как access и наоборот.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var ErrInvalidToken = errors.New("invalid token")

// Pair — пара токенов, выдаваемая при логине и при каждом обновлении.
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Claims — разобранные данные токена.
type Claims struct {
	UserID    uuid.UUID
	JTI       string
	IsStaff   bool
	ExpiresAt time.Time
}

// Manager генерирует и проверяет JWT-токены. Секрет передаётся явно
// через конфигурацию, а не берётся из окружения внутри пакета.
type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewManager(secret string, accessTTL, refreshTTL time.Duration) *Manager {
	return &Manager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

func (m *Manager) RefreshTTL() time.Duration {
	return m.refreshTTL
}

func (m *Manager) sign(user *models.User, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":        user.ID.String(),
		"token_type": tokenType,
		"jti":        uuid.NewString(),
		"staff":      user.IsStaff,
		"exp":        now.Add(ttl).Unix(),
		"iat":        now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// NewPair генерирует новую пару access+refresh для пользователя.
func (m *Manager) NewPair(user *models.User) (*Pair, error) {
	access, err := m.sign(user, TypeAccess, m.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := m.sign(user, TypeRefresh, m.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &Pair{Access: access, Refresh: refresh}, nil
}

// Parse проверяет подпись и срок действия токена и сверяет его тип.
func (m *Manager) Parse(tokenStr, wantType string) (*Claims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	tokenType, _ := mapClaims["token_type"].(string)
	if tokenType != wantType {
		return nil, ErrInvalidToken
	}

	sub, ok := mapClaims["sub"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, ErrInvalidToken
	}

	jti, ok := mapClaims["jti"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}

	staff, _ := mapClaims["staff"].(bool)

	exp, err := mapClaims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrInvalidToken
	}

	return &Claims{
		UserID:    userID,
		JTI:       jti,
		IsStaff:   staff,
		ExpiresAt: exp.Time,
	}, nil
}
