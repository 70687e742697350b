package service

import "errors"

// Доменные ошибки сервисного слоя. Транспортный слой переводит их
// в HTTP-статусы, инфраструктурные ошибки наружу не раскрываются.
var (
	ErrPasswordMismatch = errors.New("passwords don't match")
	// ErrInvalidCredentials намеренно общая: и для неверного пароля,
	// и для несуществующего имени, чтобы не подсказывать перебор имён.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("user account is inactive")
	ErrEmptyCart          = errors.New("cart is empty")
	// ErrOrderConflict — два параллельных оформления одной корзины,
	// клиенту имеет смысл повторить запрос.
	ErrOrderConflict = errors.New("concurrent checkout on the same cart")
)
