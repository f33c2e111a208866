package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/storefront-api/internal/application/auth"
	"github.com/jhoicas/storefront-api/internal/application/cart"
	"github.com/jhoicas/storefront-api/internal/application/catalog"
	"github.com/jhoicas/storefront-api/internal/application/checkout"
	"github.com/jhoicas/storefront-api/internal/application/orders"
	"github.com/jhoicas/storefront-api/internal/application/outbox"
	"github.com/jhoicas/storefront-api/internal/domain/pricing"
	infrakafka "github.com/jhoicas/storefront-api/internal/infrastructure/kafka"
	"github.com/jhoicas/storefront-api/internal/infrastructure/metrics"
	infrapdf "github.com/jhoicas/storefront-api/internal/infrastructure/pdf"
	"github.com/jhoicas/storefront-api/internal/infrastructure/postgres"
	infraredis "github.com/jhoicas/storefront-api/internal/infrastructure/redis"
	httpRouter "github.com/jhoicas/storefront-api/internal/interfaces/http"
	"github.com/jhoicas/storefront-api/pkg/config"
	"github.com/jhoicas/storefront-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	currency, err := pricing.ParseCurrency(cfg.Store.Currency)
	if err != nil {
		log.Fatal().Err(err).Str("currency", cfg.Store.Currency).Msg("moneda de la tienda inválida")
	}

	ctx := context.Background()
	if err := postgres.Migrate(cfg.DB.ConnectionString()); err != nil {
		log.Fatal().Err(err).Msg("migraciones")
	}
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	userRepo := postgres.NewUserRepository(pool)
	productRepo := postgres.NewProductRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	outboxRepo := postgres.NewOutboxRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	appMetrics := metrics.New("storefront")
	checkoutOpts := []checkout.Option{checkout.WithMetrics(appMetrics)}

	// Idempotency-Key solo si hay Redis configurado.
	if cfg.Redis.Enabled() {
		rdb, err := infraredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer rdb.Close()
		checkoutOpts = append(checkoutOpts, checkout.WithIdempotency(infraredis.NewIdempotencyStore(rdb, cfg.Redis.IdempotencyTTL)))
	} else {
		log.Warn().Msg("REDIS_ADDR vacío: Idempotency-Key deshabilitado")
	}

	authUC := auth.NewAuthUseCase(userRepo, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	productUC := catalog.NewProductUseCase(productRepo)
	cartUC := cart.NewCartUseCase(txRunner, currency)
	checkoutUC := checkout.NewCheckoutUseCase(txRunner, orderRepo, currency, log.Named("checkout"), checkoutOpts...)
	orderUC := orders.NewOrderUseCase(orderRepo, currency, infrapdf.NewReceiptGenerator(cfg.App.Name))

	// Relay del outbox hacia Kafka; sin brokers los eventos quedan pendientes en la tabla.
	relayCtx, stopRelay := context.WithCancel(ctx)
	relayDone := make(chan struct{})
	var publisher *infrakafka.Publisher
	if cfg.Kafka.Enabled() {
		publisher = infrakafka.NewPublisher(infrakafka.NewWriter(cfg.Kafka), log.Named("kafka"))
		relay := outbox.NewRelay(outboxRepo, publisher, cfg.Outbox.PollInterval, cfg.Outbox.BatchSize, log.Named("outbox"))
		go func() {
			defer close(relayDone)
			relay.Run(relayCtx)
		}()
	} else {
		close(relayDone)
		log.Warn().Msg("KAFKA_BROKERS vacío: el relay del outbox no arranca")
	}

	app := httpRouter.NewApp(cfg.App.Name, log)
	app.Use(appMetrics.Middleware())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Storefront API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := pool.Ping(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "service": cfg.App.Name})
		}
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})
	app.Get("/metrics", appMetrics.Handler())

	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:     authUC,
		ProductUC:  productUC,
		CartUC:     cartUC,
		CheckoutUC: checkoutUC,
		OrderUC:    orderUC,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	stopRelay()
	<-relayDone
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("cierre del productor Kafka")
		}
	}

	log.Info().Msg("aplicación detenida")
}
