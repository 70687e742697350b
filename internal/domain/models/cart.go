package models

import "github.com/google/uuid"

// Cart представляет корзину пользователя, одна корзина на пользователя
type Cart struct {
	ID     uuid.UUID   `json:"id"`
	UserID uuid.UUID   `json:"user"`
	Items  []*CartItem `json:"items"`
}

// CartItem представляет позицию корзины, пара (cart, product) уникальна
type CartItem struct {
	ID        uuid.UUID `json:"id"`
	CartID    uuid.UUID `json:"-"`
	ProductID uuid.UUID `json:"-"`
	Quantity  int       `json:"quantity"`
	Product   *Product  `json:"product,omitempty"` // заполняется через JOIN с таблицей products
}
