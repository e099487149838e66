package subscriptiongate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/subscription-gate/internal/cache"
	"github.com/magabrotheeeer/subscription-gate/internal/config"
	"github.com/magabrotheeeer/subscription-gate/internal/http/handlers/subscription/health"
	"github.com/magabrotheeeer/subscription-gate/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-gate/internal/lib/jwt"
	"github.com/magabrotheeeer/subscription-gate/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-gate/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-gate/internal/migrations"
	"github.com/magabrotheeeer/subscription-gate/internal/paymentprovider"
	"github.com/magabrotheeeer/subscription-gate/internal/paymentprovider/paddle"
	authservice "github.com/magabrotheeeer/subscription-gate/internal/services/auth"
	"github.com/magabrotheeeer/subscription-gate/internal/services/checkout"
	"github.com/magabrotheeeer/subscription-gate/internal/storage"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	server   *http.Server
	logger   *slog.Logger
	db       *storage.Storage
	cache    *cache.Cache
	amqpConn *amqp.Connection
}

// New поднимает зависимости сервиса и собирает HTTP-сервер.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "subscriptiongate.New"

	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	provider, err := newPaymentProvider(cfg.PaymentProvider)
	if err != nil {
		_ = db.Close()
		_ = cacheRedis.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	app := &App{
		logger: logger,
		db:     db,
		cache:  cacheRedis,
	}

	var events checkout.EventPublisher = rabbitmq.NoopPublisher{}
	if cfg.RabbitMQ.URL != "" {
		conn, ch, err := connectRabbit(cfg.RabbitMQ)
		if err != nil {
			app.closeResources()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		app.amqpConn = conn
		events = rabbitmq.NewPublisher(ch, cfg.RabbitMQ.Exchange)
	} else {
		logger.Info("rabbitmq url is empty, subscription events are disabled")
	}

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	authService := authservice.NewAuthService(logger, db, cacheRedis, jwtMaker)
	checkoutService := checkout.New(logger, db, provider, events, checkout.Config{
		BaseURL:         cfg.Checkout.BaseURL,
		ProductName:     cfg.ProductName,
		Currency:        cfg.Currency,
		UnitAmount:      cfg.UnitAmount,
		Mode:            paymentprovider.Mode(cfg.Checkout.Mode),
		Period:          cfg.EntitlementPeriod,
		ProviderTimeout: cfg.PaymentProvider.Timeout,
	})

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Services{
		Auth:     authService,
		Checkout: checkoutService,
		Limiter:  middlewarectx.NewIPRateLimiter(cfg.RateLimit, cfg.RateBurst),
		Health: map[string]health.Pinger{
			"postgres": db,
			"redis":    cacheRedis,
		},
	})

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

// Run обслуживает запросы до отмены ctx, затем останавливает сервер и закрывает соединения.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.closeResources()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.closeResources()
		return err
	}
}

func (a *App) closeResources() {
	if a.amqpConn != nil {
		if err := a.amqpConn.Close(); err != nil {
			a.logger.Warn("failed to close rabbitmq connection", sl.Err(err))
		}
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("failed to close redis", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", sl.Err(err))
	}
}

func connectRabbit(cfg config.RabbitMQ) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := rabbitmq.Connect(cfg.URL, cfg.Retries, cfg.Delay)
	if err != nil {
		return nil, nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, cfg.Exchange)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

// newPaymentProvider выбирает адаптер провайдера по настройке kind.
func newPaymentProvider(cfg config.PaymentProvider) (checkout.PaymentProvider, error) {
	switch cfg.Kind {
	case config.ProviderStripe:
		return paymentprovider.NewStripe(paymentprovider.StripeConfig{
			SecretKey: cfg.SecretKey,
			APIURL:    cfg.APIURL,
			Timeout:   cfg.Timeout,
		}), nil
	case config.ProviderPaddle:
		p, err := paddle.New(paddle.Config{
			APIKey:      cfg.SecretKey,
			Environment: cfg.PaddleEnvironment,
			PriceID:     cfg.PaddlePriceID,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Kind)
	}
}
