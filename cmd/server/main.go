package main

import (
	"context"

	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/linemk/coffee-shop/internal/app"
	"github.com/linemk/coffee-shop/internal/app/handlers"
	"github.com/linemk/coffee-shop/internal/broker"
	"github.com/linemk/coffee-shop/internal/chat"
	"github.com/linemk/coffee-shop/internal/config"
	"github.com/linemk/coffee-shop/internal/lib/logger"
	"github.com/linemk/coffee-shop/internal/lib/logger/handlers/urllog"
	"github.com/linemk/coffee-shop/internal/service"
	"github.com/linemk/coffee-shop/internal/storage"
	"github.com/linemk/coffee-shop/internal/token"
	"github.com/linemk/coffee-shop/internal/token/jwtmiddleware"
	"github.com/linemk/coffee-shop/internal/worker"
	"github.com/pkg/errors"
)

func main() {
	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env))

	// загружаем объект приложения: конфиг, подключение к БД и redis
	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.Close()

	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	// реализация слоев по работе с БД по каждому направлению
	userRepo := storage.NewUserRepository(application.DB)
	catalogRepo := storage.NewCatalogRepository(application.DB)
	cartRepo := storage.NewCartRepository(application.DB)
	orderRepo := storage.NewOrderRepository(application.DB)

	tokens := token.NewManager(cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	blacklist := token.NewRedisBlacklist(application.Redis)

	producer := broker.NewProducer(log, cfg.Kafka.Brokers, cfg.Kafka.OrderTopic)
	defer producer.Close()
	publisher := broker.NewEventPublisher(producer)

	authService := service.NewAuthService(application.Logger, userRepo, tokens, blacklist, cfg.Sweep.Retention)
	catalogService := service.NewCatalogService(application.Logger, catalogRepo)
	cartService := service.NewCartService(application.Logger, cartRepo, catalogRepo)
	orderService := service.NewOrderService(application.Logger, application.DB, cartRepo, orderRepo, publisher)

	hub := chat.NewHub(log)

	// публичные эндпоинты: регистрация, логин, обновление токена и чтение каталога
	router.Post("/api/v1/auth/registration/", handlers.RegisterHandler(application.Logger, authService))
	router.Post("/api/v1/auth/authentication/", handlers.LoginHandler(application.Logger, authService))
	router.Post("/api/v1/token/refresh/", handlers.RefreshHandler(application.Logger, authService))
	router.Get("/api/v1/categories/", handlers.ListCategoriesHandler(application.Logger, catalogService))
	router.Get("/api/v1/categories/{category_id}/", handlers.GetCategoryHandler(application.Logger, catalogService))
	router.Get("/api/v1/products/", handlers.ListProductsHandler(application.Logger, catalogService))
	router.Get("/api/v1/products/{product_id}/", handlers.GetProductHandler(application.Logger, catalogService))

	// чат проверяет токен сам: при отказе клиент получает
	// websocket close code вместо HTTP 401
	router.Get("/ws/chat/{room_name}/", chat.ServeWS(application.Logger, hub, tokens, userRepo))

	router.Group(func(r chi.Router) {
		jwtMW := jwtmiddleware.NewJWTMiddleware(tokens)
		r.Use(jwtMW)

		r.Get("/api/v1/users/me/", handlers.MeHandler(application.Logger, authService))

		// корзина текущего пользователя
		r.Get("/api/v1/cart/", handlers.GetCartHandler(application.Logger, cartService))
		r.Post("/api/v1/cart/", handlers.AddToCartHandler(application.Logger, cartService))
		r.Delete("/api/v1/cart/", handlers.ClearCartHandler(application.Logger, cartService))
		r.Delete("/api/v1/cart/{item_id}/", handlers.RemoveCartItemHandler(application.Logger, cartService))

		// заказы: оформление корзины и просмотр
		r.Post("/api/v1/orders/", handlers.CreateOrderHandler(application.Logger, orderService))
		r.Get("/api/v1/orders/", handlers.ListOrdersHandler(application.Logger, orderService))
		r.Get("/api/v1/orders/{order_id}/", handlers.GetOrderHandler(application.Logger, orderService))

		// операции, доступные только персоналу
		r.Group(func(staff chi.Router) {
			staff.Use(jwtmiddleware.RequireStaff)

			staff.Post("/api/v1/auth/verification/", handlers.VerifyHandler(application.Logger, authService))

			staff.Get("/api/v1/users/", handlers.ListUsersHandler(application.Logger, authService))
			staff.Get("/api/v1/users/{user_id}/", handlers.GetUserHandler(application.Logger, authService))
			staff.Put("/api/v1/users/{user_id}/", handlers.UpdateUserHandler(application.Logger, authService))
			staff.Delete("/api/v1/users/{user_id}/", handlers.DeleteUserHandler(application.Logger, authService))

			staff.Post("/api/v1/categories/", handlers.CreateCategoryHandler(application.Logger, catalogService))
			staff.Put("/api/v1/categories/{category_id}/", handlers.UpdateCategoryHandler(application.Logger, catalogService))
			staff.Delete("/api/v1/categories/{category_id}/", handlers.DeleteCategoryHandler(application.Logger, catalogService))
			staff.Post("/api/v1/products/", handlers.CreateProductHandler(application.Logger, catalogService))
			staff.Put("/api/v1/products/{product_id}/", handlers.UpdateProductHandler(application.Logger, catalogService))
			staff.Delete("/api/v1/products/{product_id}/", handlers.DeleteProductHandler(application.Logger, catalogService))
		})
	})

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	go hub.Run(workerCtx)

	// фоновый воркер уведомлений о новых заказах
	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.OrderTopic, cfg.Kafka.ConsumerGroup)
	mailer := worker.NewLogMailer(log)
	notifier := worker.NewNotificationWorker(log, consumer, orderRepo, userRepo, mailer)
	go func() {
		if err := notifier.Start(workerCtx); err != nil {
			log.Error("notification worker stopped", slog.Any("error", err))
		}
	}()

	// периодическая деактивация неподтвержденных аккаунтов
	sweeper := worker.NewSweepWorker(log, authService, cfg.Sweep.Interval)
	go sweeper.Start(workerCtx)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.Any("error", err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	stopSign := <-stop
	log.Info("received shutdown signal", slog.String("signal", stopSign.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}

	workerCancel()
	if err := notifier.Stop(); err != nil {
		log.Error("failed to stop notification worker", slog.Any("error", err))
	}
	log.Info("server gracefully stopped")
}
