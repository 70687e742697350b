package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/linemk/coffee-shop/internal/domain/models"
)

var (
	ErrCartNotFound     = errors.New("cart not found")
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrCartLocked       = errors.New("cart is locked by another operation")
)

// CartStorage описывает методы для работы с корзиной и её позициями.
type CartStorage interface {
	// GetOrCreateCart возвращает id корзины пользователя, создавая её при первом обращении.
	GetOrCreateCart(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	GetCartByUserID(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	// UpsertItem добавляет позицию в корзину; для существующей пары (cart, product)
	// количество прибавляется к текущему, дубликат строки не создаётся.
	UpsertItem(ctx context.Context, cartID, productID uuid.UUID, quantity int) error
	// LockCartByUserIDTx блокирует строку корзины на время транзакции оформления заказа.
	LockCartByUserIDTx(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (uuid.UUID, error)
	GetCartItemsTx(ctx context.Context, tx *sql.Tx, cartID uuid.UUID) ([]*models.CartItem, error)
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error
	ClearItems(ctx context.Context, cartID uuid.UUID) error
	ClearItemsTx(ctx context.Context, tx *sql.Tx, cartID uuid.UUID) error
}

type cartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) CartStorage {
	return &cartRepository{db: db}
}

func (r *cartRepository) GetOrCreateCart(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	// ON CONFLICT DO UPDATE нужен, чтобы RETURNING сработал и для существующей корзины
	query := `INSERT INTO carts (id, user_id) VALUES ($1, $2)
	          ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
	          RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, uuid.Must(uuid.NewV7()), userID).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("failed to get or create cart: %w", err)
	}
	return id, nil
}

func (r *cartRepository) GetCartByUserID(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart := &models.Cart{UserID: userID}
	row := r.db.QueryRowContext(ctx, "SELECT id FROM carts WHERE user_id = $1", userID)
	if err := row.Scan(&cart.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, err
	}

	items, err := r.queryItems(ctx, r.db.QueryContext, cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Items = items
	return cart, nil
}

func (r *cartRepository) UpsertItem(ctx context.Context, cartID, productID uuid.UUID, quantity int) error {
	query := `INSERT INTO cart_items (id, cart_id, product_id, quantity)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (cart_id, product_id)
	          DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`
	if _, err := r.db.ExecContext(ctx, query, uuid.Must(uuid.NewV7()), cartID, productID, quantity); err != nil {
		return fmt.Errorf("failed to upsert cart item: %w", err)
	}
	return nil
}

func (r *cartRepository) LockCartByUserIDTx(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	row := tx.QueryRowContext(ctx, "SELECT id FROM carts WHERE user_id = $1 FOR UPDATE NOWAIT", userID)
	if err := row.Scan(&id); err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "55P03" { // lock_not_available
				return uuid.Nil, ErrCartLocked
			}
		}
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, ErrCartNotFound
		}
		return uuid.Nil, err
	}
	return id, nil
}

type queryFunc func(ctx context.Context, query string, args ...any) (*sql.Rows, error)

func (r *cartRepository) queryItems(ctx context.Context, query queryFunc, cartID uuid.UUID) ([]*models.CartItem, error) {
	rows, err := query(ctx, `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity,
		       p.id, p.title, p.description, p.price, p.category_id, p.is_active, p.created_at, p.updated_at
		FROM cart_items ci
		JOIN products p ON ci.product_id = p.id
		WHERE ci.cart_id = $1
		ORDER BY ci.id`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.CartItem
	for rows.Next() {
		item := &models.CartItem{Product: &models.Product{}}
		if err := rows.Scan(
			&item.ID, &item.CartID, &item.ProductID, &item.Quantity,
			&item.Product.ID, &item.Product.Title, &item.Product.Description, &item.Product.Price,
			&item.Product.CategoryID, &item.Product.IsActive, &item.Product.CreatedAt, &item.Product.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *cartRepository) GetCartItemsTx(ctx context.Context, tx *sql.Tx, cartID uuid.UUID) ([]*models.CartItem, error) {
	return r.queryItems(ctx, tx.QueryContext, cartID)
}

func (r *cartRepository) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	// удаление строго в рамках корзины владельца, чужой item_id сюда не попадёт
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE id = $1 AND cart_id = $2", itemID, cartID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

func (r *cartRepository) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = $1", cartID)
	return err
}

func (r *cartRepository) ClearItemsTx(ctx context.Context, tx *sql.Tx, cartID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = $1", cartID)
	return err
}
