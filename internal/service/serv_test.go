package service_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/linemk/coffee-shop/internal/broker"
	"github.com/linemk/coffee-shop/internal/domain/models"
	"github.com/linemk/coffee-shop/internal/service"
	"github.com/linemk/coffee-shop/internal/storage"
	"github.com/linemk/coffee-shop/internal/token"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

type fakeUserRepo struct {
	users map[string]*models.User // ключ — username
}

var _ storage.UserStorage = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (f *fakeUserRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, ok := f.users[username]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	if _, ok := f.users[user.Username]; ok {
		return nil, storage.ErrUserExists
	}
	user.DateJoined = time.Now()
	user.UpdatedAt = user.DateJoined
	f.users[user.Username] = user
	return user, nil
}

func (f *fakeUserRepo) SetVerified(ctx context.Context, username string) error {
	user, ok := f.users[username]
	if !ok {
		return storage.ErrUserNotFound
	}
	user.IsVerified = true
	return nil
}

func (f *fakeUserRepo) DeactivateUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	for _, u := range f.users {
		if !u.IsVerified && u.IsActive && u.DateJoined.Before(cutoff) {
			u.IsActive = false
			count++
		}
	}
	return count, nil
}

func (f *fakeUserRepo) List(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	for _, u := range f.users {
		users = append(users, u)
	}
	return users, nil
}

func (f *fakeUserRepo) UpdateUser(ctx context.Context, user *models.User) (*models.User, error) {
	if _, err := f.GetUserByID(ctx, user.ID); err != nil {
		return nil, err
	}
	f.users[user.Username] = user
	user.UpdatedAt = time.Now()
	return user, nil
}

func (f *fakeUserRepo) DeleteUser(ctx context.Context, id uuid.UUID) error {
	for name, u := range f.users {
		if u.ID == id {
			delete(f.users, name)
			return nil
		}
	}
	return storage.ErrUserNotFound
}

func (f *fakeUserRepo) ListStaffEmails(ctx context.Context) ([]string, error) {
	var emails []string
	for _, u := range f.users {
		if u.IsStaff && u.Email != "" {
			emails = append(emails, u.Email)
		}
	}
	return emails, nil
}

type fakeBlacklist struct {
	revoked map[string]bool // ключ: jti
}

var _ token.Blacklist = (*fakeBlacklist)(nil)

func newFakeBlacklist() *fakeBlacklist {
	return &fakeBlacklist{revoked: make(map[string]bool)}
}

func (f *fakeBlacklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	f.revoked[jti] = true
	return nil
}

func (f *fakeBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return f.revoked[jti], nil
}

type fakeCatalogRepo struct {
	categories map[uuid.UUID]*models.Category
	products   map[uuid.UUID]*models.Product
}

var _ storage.CatalogStorage = (*fakeCatalogRepo)(nil)

func newFakeCatalogRepo() *fakeCatalogRepo {
	return &fakeCatalogRepo{
		categories: make(map[uuid.UUID]*models.Category),
		products:   make(map[uuid.UUID]*models.Product),
	}
}

func (f *fakeCatalogRepo) CreateCategory(ctx context.Context, category *models.Category) (*models.Category, error) {
	f.categories[category.ID] = category
	return category, nil
}

func (f *fakeCatalogRepo) GetCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	category, ok := f.categories[id]
	if !ok {
		return nil, storage.ErrCategoryNotFound
	}
	return category, nil
}

func (f *fakeCatalogRepo) ListCategories(ctx context.Context, title string) ([]*models.Category, error) {
	var out []*models.Category
	for _, c := range f.categories {
		if title == "" || c.Title == title {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCatalogRepo) UpdateCategory(ctx context.Context, category *models.Category) error {
	if _, ok := f.categories[category.ID]; !ok {
		return storage.ErrCategoryNotFound
	}
	f.categories[category.ID] = category
	return nil
}

func (f *fakeCatalogRepo) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.categories[id]; !ok {
		return storage.ErrCategoryNotFound
	}
	delete(f.categories, id)
	return nil
}

func (f *fakeCatalogRepo) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	f.products[product.ID] = product
	return product, nil
}

func (f *fakeCatalogRepo) GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, ok := f.products[id]
	if !ok {
		return nil, storage.ErrProductNotFound
	}
	return product, nil
}

func (f *fakeCatalogRepo) ListProducts(ctx context.Context, title string) ([]*models.Product, error) {
	var out []*models.Product
	for _, p := range f.products {
		if title == "" || p.Title == title {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalogRepo) UpdateProduct(ctx context.Context, product *models.Product) error {
	if _, ok := f.products[product.ID]; !ok {
		return storage.ErrProductNotFound
	}
	f.products[product.ID] = product
	return nil
}

func (f *fakeCatalogRepo) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.products[id]; !ok {
		return storage.ErrProductNotFound
	}
	delete(f.products, id)
	return nil
}

type fakeCartRepo struct {
	catalog *fakeCatalogRepo
	carts   map[uuid.UUID]uuid.UUID           // userID -> cartID
	items   map[uuid.UUID][]*models.CartItem  // ключ: cartID
	locked  map[uuid.UUID]bool                // корзины, занятые параллельным оформлением
}

var _ storage.CartStorage = (*fakeCartRepo)(nil)

func newFakeCartRepo(catalog *fakeCatalogRepo) *fakeCartRepo {
	return &fakeCartRepo{
		catalog: catalog,
		carts:   make(map[uuid.UUID]uuid.UUID),
		items:   make(map[uuid.UUID][]*models.CartItem),
		locked:  make(map[uuid.UUID]bool),
	}
}

func (f *fakeCartRepo) GetOrCreateCart(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	if id, ok := f.carts[userID]; ok {
		return id, nil
	}
	id := uuid.Must(uuid.NewV7())
	f.carts[userID] = id
	return id, nil
}

func (f *fakeCartRepo) GetCartByUserID(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cartID, ok := f.carts[userID]
	if !ok {
		return nil, storage.ErrCartNotFound
	}
	cart := &models.Cart{ID: cartID, UserID: userID}
	for _, item := range f.items[cartID] {
		item.Product, _ = f.catalog.GetProductByID(ctx, item.ProductID)
		cart.Items = append(cart.Items, item)
	}
	return cart, nil
}

func (f *fakeCartRepo) UpsertItem(ctx context.Context, cartID, productID uuid.UUID, quantity int) error {
	for _, item := range f.items[cartID] {
		if item.ProductID == productID {
			item.Quantity += quantity
			return nil
		}
	}
	f.items[cartID] = append(f.items[cartID], &models.CartItem{
		ID:        uuid.Must(uuid.NewV7()),
		CartID:    cartID,
		ProductID: productID,
		Quantity:  quantity,
	})
	return nil
}

func (f *fakeCartRepo) LockCartByUserIDTx(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (uuid.UUID, error) {
	cartID, ok := f.carts[userID]
	if !ok {
		return uuid.Nil, storage.ErrCartNotFound
	}
	if f.locked[cartID] {
		return uuid.Nil, storage.ErrCartLocked
	}
	return cartID, nil
}

func (f *fakeCartRepo) GetCartItemsTx(ctx context.Context, tx *sql.Tx, cartID uuid.UUID) ([]*models.CartItem, error) {
	items := f.items[cartID]
	for _, item := range items {
		item.Product, _ = f.catalog.GetProductByID(ctx, item.ProductID)
	}
	return items, nil
}

func (f *fakeCartRepo) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	items := f.items[cartID]
	for i, item := range items {
		if item.ID == itemID {
			f.items[cartID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return storage.ErrCartItemNotFound
}

func (f *fakeCartRepo) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	delete(f.items, cartID)
	return nil
}

func (f *fakeCartRepo) ClearItemsTx(ctx context.Context, tx *sql.Tx, cartID uuid.UUID) error {
	return f.ClearItems(ctx, cartID)
}

type fakeOrderRepo struct {
	orders     map[uuid.UUID]*models.Order
	orderItems map[uuid.UUID][]*models.OrderItem // ключ: orderID
}

var _ storage.OrderStorage = (*fakeOrderRepo)(nil)

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders:     make(map[uuid.UUID]*models.Order),
		orderItems: make(map[uuid.UUID][]*models.OrderItem),
	}
}

func (f *fakeOrderRepo) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	stored := *order
	stored.CreatedAt = time.Now()
	f.orders[order.ID] = &stored
	return nil
}

func (f *fakeOrderRepo) CreateOrderItemTx(ctx context.Context, tx *sql.Tx, item *models.OrderItem) error {
	stored := *item
	f.orderItems[item.OrderID] = append(f.orderItems[item.OrderID], &stored)
	return nil
}

func (f *fakeOrderRepo) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	out := *order
	out.Items = f.orderItems[id]
	return &out, nil
}

func (f *fakeOrderRepo) ListOrders(ctx context.Context, filter storage.OrderFilter) ([]*models.Order, error) {
	var out []*models.Order
	for _, order := range f.orders {
		if filter.UserID != nil && order.UserID != *filter.UserID {
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

type fakePublisher struct {
	events []*broker.OrderCreatedEvent
}

func (f *fakePublisher) PublishOrderCreated(ctx context.Context, event *broker.OrderCreatedEvent) error {
	f.events = append(f.events, event)
	return nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func newTestAuthService(userRepo *fakeUserRepo, blacklist *fakeBlacklist) *service.AuthService {
	tokens := token.NewManager("testsecret", time.Hour, 24*time.Hour)
	return service.NewAuthService(newTestLogger(), userRepo, tokens, blacklist, 48*time.Hour)
}

func TestAuthService_Register_Success(t *testing.T) {
	fakeRepo := newFakeUserRepo()
	authSvc := newTestAuthService(fakeRepo, newFakeBlacklist())
	ctx := context.Background()

	user, err := authSvc.Register(ctx, "newuser", "password123", "password123")
	assert.NoError(t, err, "Register should succeed")
	assert.True(t, user.IsActive, "New account should be active")
	assert.False(t, user.IsVerified, "New account should not be verified yet")
	// Проверяем, что пароль хэширован (не равен исходному паролю)
	assert.NotEqual(t, "password123", string(user.PassHash), "Password should be hashed")
	assert.NoError(t, bcrypt.CompareHashAndPassword(user.PassHash, []byte("password123")))
}

func TestAuthService_Register_PasswordMismatch(t *testing.T) {
	authSvc := newTestAuthService(newFakeUserRepo(), newFakeBlacklist())

	_, err := authSvc.Register(context.Background(), "newuser", "password123", "something-else")
	assert.ErrorIs(t, err, service.ErrPasswordMismatch)
}

func TestAuthService_Register_DuplicateUsername(t *testing.T) {
	fakeRepo := newFakeUserRepo()
	authSvc := newTestAuthService(fakeRepo, newFakeBlacklist())
	ctx := context.Background()

	_, err := authSvc.Register(ctx, "taken", "password123", "password123")
	assert.NoError(t, err)

	_, err = authSvc.Register(ctx, "taken", "password123", "password123")
	assert.ErrorIs(t, err, storage.ErrUserExists)
}

func TestAuthService_Verify_UnknownUsername(t *testing.T) {
	authSvc := newTestAuthService(newFakeUserRepo(), newFakeBlacklist())

	// Для неизвестного имени возвращается та же общая ошибка,
	// что и при неверном пароле, чтобы не раскрывать список пользователей.
	err := authSvc.Verify(context.Background(), "ghost")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	fakeRepo := newFakeUserRepo()
	authSvc := newTestAuthService(fakeRepo, newFakeBlacklist())
	ctx := context.Background()

	_, err := authSvc.Register(ctx, "alice", "password123", "password123")
	assert.NoError(t, err)

	_, err = authSvc.Login(ctx, "alice", "wrongpassword")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	// Несуществующий пользователь неотличим от неверного пароля
	_, err = authSvc.Login(ctx, "nobody", "password123")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestAuthService_Login_InactiveAccount(t *testing.T) {
	fakeRepo := newFakeUserRepo()
	authSvc := newTestAuthService(fakeRepo, newFakeBlacklist())
	ctx := context.Background()

	user, err := authSvc.Register(ctx, "bob", "password123", "password123")
	assert.NoError(t, err)
	user.IsActive = false

	_, err = authSvc.Login(ctx, "bob", "password123")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestAuthService_Refresh_RotatesToken(t *testing.T) {
	fakeRepo := newFakeUserRepo()
	blacklist := newFakeBlacklist()
	authSvc := newTestAuthService(fakeRepo, blacklist)
	ctx := context.Background()

	user, err := authSvc.Register(ctx, "alice", "password123", "password123")
	assert.NoError(t, err)
	user.IsVerified = true

	pair, err := authSvc.Login(ctx, "alice", "password123")
	assert.NoError(t, err)

	newPair, err := authSvc.Refresh(ctx, pair.Refresh)
	assert.NoError(t, err, "Refresh should succeed for an active verified user")
	assert.NotEqual(t, pair.Refresh, newPair.Refresh, "Refresh token should be rotated")

	// Старый refresh отозван и повторно не принимается
	_, err = authSvc.Refresh(ctx, pair.Refresh)
	assert.ErrorIs(t, err, token.ErrInvalidToken, "Rotated token must be rejected")
}

func TestAuthService_Refresh_InactiveAccountRevokesToken(t *testing.T) {
	fakeRepo := newFakeUserRepo()
	blacklist := newFakeBlacklist()
	authSvc := newTestAuthService(fakeRepo, blacklist)
	ctx := context.Background()

	user, err := authSvc.Register(ctx, "charlie", "password123", "password123")
	assert.NoError(t, err)
	user.IsVerified = true

	pair, err := authSvc.Login(ctx, "charlie", "password123")
	assert.NoError(t, err)

	// Аккаунт деактивирован после выдачи токена
	user.IsActive = false

	_, err = authSvc.Refresh(ctx, pair.Refresh)
	assert.ErrorIs(t, err, service.ErrInactiveAccount)

	// Токен при этом сразу попадает в чёрный список
	_, err = authSvc.Refresh(ctx, pair.Refresh)
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestAuthService_SweepUnverifiedUsers(t *testing.T) {
	fakeRepo := newFakeUserRepo()
	authSvc := newTestAuthService(fakeRepo, newFakeBlacklist())
	ctx := context.Background()

	// Старый неверифицированный — должен быть деактивирован
	fakeRepo.users["stale"] = &models.User{
		ID:         uuid.Must(uuid.NewV7()),
		Username:   "stale",
		IsActive:   true,
		DateJoined: time.Now().Add(-72 * time.Hour),
	}
	// Старый, но верифицированный — не трогаем
	fakeRepo.users["ok"] = &models.User{
		ID:         uuid.Must(uuid.NewV7()),
		Username:   "ok",
		IsActive:   true,
		IsVerified: true,
		DateJoined: time.Now().Add(-72 * time.Hour),
	}
	// Свежий неверифицированный — окно ещё не истекло
	fakeRepo.users["fresh"] = &models.User{
		ID:         uuid.Must(uuid.NewV7()),
		Username:   "fresh",
		IsActive:   true,
		DateJoined: time.Now().Add(-time.Hour),
	}

	count, err := authSvc.SweepUnverifiedUsers(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count, "Only the stale unverified account should be deactivated")
	assert.False(t, fakeRepo.users["stale"].IsActive)
	assert.True(t, fakeRepo.users["ok"].IsActive)
	assert.True(t, fakeRepo.users["fresh"].IsActive)

	// Повторный запуск идемпотентен
	count, err = authSvc.SweepUnverifiedUsers(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count, "Second sweep should change nothing")
}

func TestAuthService_ListUsers(t *testing.T) {
	fakeRepo := newFakeUserRepo()
	authSvc := newTestAuthService(fakeRepo, newFakeBlacklist())
	ctx := context.Background()

	_, err := authSvc.Register(ctx, "alice", "password123", "password123")
	assert.NoError(t, err)
	_, err = authSvc.Register(ctx, "bob", "password123", "password123")
	assert.NoError(t, err)

	users, err := authSvc.ListUsers(ctx)
	assert.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestAuthService_UpdateUser_PartialUpdate(t *testing.T) {
	fakeRepo := newFakeUserRepo()
	authSvc := newTestAuthService(fakeRepo, newFakeBlacklist())
	ctx := context.Background()

	user, err := authSvc.Register(ctx, "alice", "password123", "password123")
	assert.NoError(t, err)

	// Меняем только флаг активности, остальные поля не трогаем
	active := false
	updated, err := authSvc.UpdateUser(ctx, user.ID, service.UserUpdate{IsActive: &active})
	assert.NoError(t, err)
	assert.False(t, updated.IsActive, "account should be deactivated")
	assert.Equal(t, "alice", updated.Username, "untouched fields keep their values")
	assert.False(t, updated.IsStaff)
}

func TestAuthService_UpdateUser_NotFound(t *testing.T) {
	authSvc := newTestAuthService(newFakeUserRepo(), newFakeBlacklist())

	active := false
	_, err := authSvc.UpdateUser(context.Background(), uuid.Must(uuid.NewV7()), service.UserUpdate{IsActive: &active})
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestAuthService_DeleteUser(t *testing.T) {
	fakeRepo := newFakeUserRepo()
	authSvc := newTestAuthService(fakeRepo, newFakeBlacklist())
	ctx := context.Background()

	user, err := authSvc.Register(ctx, "alice", "password123", "password123")
	assert.NoError(t, err)

	assert.NoError(t, authSvc.DeleteUser(ctx, user.ID))
	_, err = authSvc.GetProfile(ctx, user.ID)
	assert.Error(t, err, "deleted account should not be found")

	// Повторное удаление — ошибка "не найден"
	assert.ErrorIs(t, authSvc.DeleteUser(ctx, user.ID), storage.ErrUserNotFound)
}

func TestCartService_AddItem_MergesQuantity(t *testing.T) {
	catalogRepo := newFakeCatalogRepo()
	cartRepo := newFakeCartRepo(catalogRepo)
	cartSvc := service.NewCartService(newTestLogger(), cartRepo, catalogRepo)
	ctx := context.Background()

	productID := uuid.Must(uuid.NewV7())
	catalogRepo.products[productID] = &models.Product{
		ID:    productID,
		Title: "espresso",
		Price: decimal.NewFromFloat(3.50),
	}
	userID := uuid.Must(uuid.NewV7())

	_, err := cartSvc.AddItem(ctx, userID, productID, 2)
	assert.NoError(t, err)

	// Повторное добавление того же товара суммирует количество,
	// а не создаёт вторую позицию
	cart, err := cartSvc.AddItem(ctx, userID, productID, 3)
	assert.NoError(t, err)
	assert.Len(t, cart.Items, 1, "Same product should stay a single cart line")
	assert.Equal(t, 5, cart.Items[0].Quantity, "Quantities should be merged")
}

func TestCartService_AddItem_ProductNotFound(t *testing.T) {
	catalogRepo := newFakeCatalogRepo()
	cartRepo := newFakeCartRepo(catalogRepo)
	cartSvc := service.NewCartService(newTestLogger(), cartRepo, catalogRepo)

	_, err := cartSvc.AddItem(context.Background(), uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7()), 1)
	assert.ErrorIs(t, err, storage.ErrProductNotFound)
}

func TestCartService_GetCart_NotFound(t *testing.T) {
	catalogRepo := newFakeCatalogRepo()
	cartRepo := newFakeCartRepo(catalogRepo)
	cartSvc := service.NewCartService(newTestLogger(), cartRepo, catalogRepo)

	// Пользователь ещё ничего не добавлял — корзины нет
	_, err := cartSvc.GetCart(context.Background(), uuid.Must(uuid.NewV7()))
	assert.ErrorIs(t, err, storage.ErrCartNotFound)
}

func TestCartService_RemoveItem_OtherUsersItem(t *testing.T) {
	catalogRepo := newFakeCatalogRepo()
	cartRepo := newFakeCartRepo(catalogRepo)
	cartSvc := service.NewCartService(newTestLogger(), cartRepo, catalogRepo)
	ctx := context.Background()

	productID := uuid.Must(uuid.NewV7())
	catalogRepo.products[productID] = &models.Product{
		ID:    productID,
		Title: "latte",
		Price: decimal.NewFromFloat(4.00),
	}

	owner := uuid.Must(uuid.NewV7())
	intruder := uuid.Must(uuid.NewV7())

	ownerCart, err := cartSvc.AddItem(ctx, owner, productID, 1)
	assert.NoError(t, err)
	_, err = cartSvc.AddItem(ctx, intruder, productID, 1)
	assert.NoError(t, err)

	// Чужую позицию по известному id удалить нельзя
	err = cartSvc.RemoveItem(ctx, intruder, ownerCart.Items[0].ID)
	assert.ErrorIs(t, err, storage.ErrCartItemNotFound)

	ownerCart, err = cartSvc.GetCart(ctx, owner)
	assert.NoError(t, err)
	assert.Len(t, ownerCart.Items, 1, "Owner's cart should be untouched")
}

func TestCartService_ClearCart_NoCart(t *testing.T) {
	catalogRepo := newFakeCatalogRepo()
	cartRepo := newFakeCartRepo(catalogRepo)
	cartSvc := service.NewCartService(newTestLogger(), cartRepo, catalogRepo)

	// Очистка несуществующей корзины — успешная no-op операция
	err := cartSvc.ClearCart(context.Background(), uuid.Must(uuid.NewV7()))
	assert.NoError(t, err)
}

func TestOrderService_CreateOrder_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	catalogRepo := newFakeCatalogRepo()
	cartRepo := newFakeCartRepo(catalogRepo)
	orderRepo := newFakeOrderRepo()
	publisher := &fakePublisher{}

	productID := uuid.Must(uuid.NewV7())
	catalogRepo.products[productID] = &models.Product{
		ID:    productID,
		Title: "cappuccino",
		Price: decimal.NewFromFloat(4.50),
	}

	userID := uuid.Must(uuid.NewV7())
	ctx := context.Background()
	cartID, err := cartRepo.GetOrCreateCart(ctx, userID)
	assert.NoError(t, err)
	assert.NoError(t, cartRepo.UpsertItem(ctx, cartID, productID, 3))

	orderSvc := service.NewOrderService(newTestLogger(), db, cartRepo, orderRepo, publisher)

	order, err := orderSvc.CreateOrder(ctx, userID)
	assert.NoError(t, err, "CreateOrder should succeed")
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.True(t, order.TotalPrice.Equal(decimal.NewFromFloat(13.50)),
		"Total should be 4.50 * 3, got %s", order.TotalPrice)

	// Корзина очищается в той же транзакции
	cart, err := cartRepo.GetCartByUserID(ctx, userID)
	assert.NoError(t, err)
	assert.Empty(t, cart.Items, "Cart should be cleared after checkout")

	// Уведомление поставлено в очередь ровно один раз
	assert.Len(t, publisher.events, 1)
	assert.Equal(t, order.ID, publisher.events[0].OrderID)

	// Цена позиции зафиксирована: подорожание товара задним числом
	// не меняет уже оформленный заказ
	catalogRepo.products[productID].Price = decimal.NewFromFloat(9.99)
	stored, err := orderRepo.GetOrderByID(ctx, order.ID)
	assert.NoError(t, err)
	assert.Len(t, stored.Items, 1)
	assert.True(t, stored.Items[0].Price.Equal(decimal.NewFromFloat(4.50)),
		"Order item price must stay frozen")
	assert.True(t, stored.TotalPrice.Equal(decimal.NewFromFloat(13.50)))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderService_CreateOrder_EmptyCart(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	catalogRepo := newFakeCatalogRepo()
	cartRepo := newFakeCartRepo(catalogRepo)
	publisher := &fakePublisher{}

	userID := uuid.Must(uuid.NewV7())
	ctx := context.Background()
	// Корзина существует, но позиций в ней нет
	_, err = cartRepo.GetOrCreateCart(ctx, userID)
	assert.NoError(t, err)

	orderSvc := service.NewOrderService(newTestLogger(), db, cartRepo, newFakeOrderRepo(), publisher)

	_, err = orderSvc.CreateOrder(ctx, userID)
	assert.ErrorIs(t, err, service.ErrEmptyCart)
	assert.Empty(t, publisher.events, "No notification for a failed checkout")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderService_CreateOrder_NoCart(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	catalogRepo := newFakeCatalogRepo()
	cartRepo := newFakeCartRepo(catalogRepo)

	orderSvc := service.NewOrderService(newTestLogger(), db, cartRepo, newFakeOrderRepo(), &fakePublisher{})

	_, err = orderSvc.CreateOrder(context.Background(), uuid.Must(uuid.NewV7()))
	assert.ErrorIs(t, err, service.ErrEmptyCart)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderService_CreateOrder_ConcurrentCheckout(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	catalogRepo := newFakeCatalogRepo()
	cartRepo := newFakeCartRepo(catalogRepo)

	userID := uuid.Must(uuid.NewV7())
	ctx := context.Background()
	cartID, err := cartRepo.GetOrCreateCart(ctx, userID)
	assert.NoError(t, err)
	// Корзина заблокирована параллельным оформлением
	cartRepo.locked[cartID] = true

	orderSvc := service.NewOrderService(newTestLogger(), db, cartRepo, newFakeOrderRepo(), &fakePublisher{})

	_, err = orderSvc.CreateOrder(ctx, userID)
	assert.ErrorIs(t, err, service.ErrOrderConflict)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderService_GetOrder_ForeignOrderHidden(t *testing.T) {
	orderRepo := newFakeOrderRepo()
	orderSvc := service.NewOrderService(newTestLogger(), nil, nil, orderRepo, &fakePublisher{})
	ctx := context.Background()

	owner := uuid.Must(uuid.NewV7())
	orderID := uuid.Must(uuid.NewV7())
	orderRepo.orders[orderID] = &models.Order{
		ID:     orderID,
		UserID: owner,
		Status: models.OrderStatusPending,
	}

	// Чужой заказ для обычного пользователя неотличим от несуществующего
	_, err := orderSvc.GetOrder(ctx, uuid.Must(uuid.NewV7()), false, orderID)
	assert.ErrorIs(t, err, storage.ErrOrderNotFound)

	// Администратор видит любой заказ
	order, err := orderSvc.GetOrder(ctx, uuid.Must(uuid.NewV7()), true, orderID)
	assert.NoError(t, err)
	assert.Equal(t, orderID, order.ID)

	// Владелец видит свой заказ
	order, err = orderSvc.GetOrder(ctx, owner, false, orderID)
	assert.NoError(t, err)
	assert.Equal(t, orderID, order.ID)
}

func TestOrderService_ListOrders_NonStaffScoped(t *testing.T) {
	orderRepo := newFakeOrderRepo()
	orderSvc := service.NewOrderService(newTestLogger(), nil, nil, orderRepo, &fakePublisher{})
	ctx := context.Background()

	alice := uuid.Must(uuid.NewV7())
	bob := uuid.Must(uuid.NewV7())
	for _, userID := range []uuid.UUID{alice, alice, bob} {
		id := uuid.Must(uuid.NewV7())
		orderRepo.orders[id] = &models.Order{ID: id, UserID: userID}
	}

	// Обычный пользователь получает только свои заказы,
	// даже если явно запросил чужие
	orders, err := orderSvc.ListOrders(ctx, alice, false, storage.OrderFilter{UserID: &bob})
	assert.NoError(t, err)
	assert.Len(t, orders, 2)
	for _, o := range orders {
		assert.Equal(t, alice, o.UserID)
	}

	// Администратор без фильтра видит всё
	orders, err = orderSvc.ListOrders(ctx, alice, true, storage.OrderFilter{})
	assert.NoError(t, err)
	assert.Len(t, orders, 3)
}

func TestCatalogService_CreateProduct_NegativePrice(t *testing.T) {
	catalogRepo := newFakeCatalogRepo()
	catalogSvc := service.NewCatalogService(newTestLogger(), catalogRepo)

	_, err := catalogSvc.CreateProduct(context.Background(), "broken", "", decimal.NewFromFloat(-1), uuid.Must(uuid.NewV7()))
	assert.ErrorIs(t, err, service.ErrNegativePrice)
}

func TestCatalogService_CreateProduct_UnknownCategory(t *testing.T) {
	catalogRepo := newFakeCatalogRepo()
	catalogSvc := service.NewCatalogService(newTestLogger(), catalogRepo)

	_, err := catalogSvc.CreateProduct(context.Background(), "espresso", "", decimal.NewFromFloat(3.5), uuid.Must(uuid.NewV7()))
	assert.ErrorIs(t, err, storage.ErrCategoryNotFound)
}
