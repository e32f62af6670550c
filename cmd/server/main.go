package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mytheresa/storefront-engine/app"
	"github.com/mytheresa/storefront-engine/cart"
	"github.com/mytheresa/storefront-engine/config"
	"github.com/mytheresa/storefront-engine/ledger"
	"github.com/mytheresa/storefront-engine/models"
	"github.com/mytheresa/storefront-engine/notify"
	"github.com/mytheresa/storefront-engine/orders"
	"github.com/mytheresa/storefront-engine/payments"
	"github.com/mytheresa/storefront-engine/pricing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := models.Connect(cfg.DB.DSN(), cfg.DB.Debug)
	if err != nil {
		logger.Fatal("database unavailable", zap.Error(err))
	}
	if err := models.Migrate(db); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		// Events still reach the log publisher.
		logger.Warn("redis unreachable, order events will only be logged", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	cancelPing()

	publishers := []notify.Publisher{
		notify.NewRedisPublisher(rdb, cfg.RedisChannel),
		notify.NewLogPublisher(logger),
	}
	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL,
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(10),
			nats.ReconnectWait(time.Second),
		)
		if err != nil {
			logger.Fatal("failed to connect to NATS", zap.String("url", cfg.NATSURL), zap.Error(err))
		}
		publishers = append(publishers, notify.NewNATSPublisher(nc, cfg.NATSSubject))
	}
	dispatcher := notify.NewDispatcher(logger, 5*time.Second, publishers...)

	stockLedger := ledger.New(db,
		ledger.WithLogger(logger),
		ledger.WithMaxAttempts(cfg.LedgerMaxAttempts),
	)
	resolver := pricing.NewResolver()
	orderService, err := orders.NewService(db, stockLedger,
		orders.WithBuilder(cart.NewBuilder(resolver, logger)),
		orders.WithEvents(dispatcher),
		orders.WithLogger(logger),
		orders.WithReservationTTL(cfg.ReservationTTL),
		orders.WithRetry(cfg.LedgerMaxAttempts, 10*time.Millisecond),
	)
	if err != nil {
		logger.Fatal("failed to create order service", zap.Error(err))
	}

	router := app.NewRouter(app.Deps{
		Products: models.NewProductsRepository(db),
		Stores:   models.NewStoresRepository(db),
		Resolver: resolver,
		Ledger:   stockLedger,
		Orders:   orderService,
		Payments: payments.NewProjector(payments.NewHTTPVerifier(cfg.PaymentVerifyURL)),
		Logger:   logger,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		stockLedger.RunSweeper(sweepCtx, cfg.SweepInterval)
	}()

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				return server.Shutdown(ctx)
			},
			"reservation-sweeper": func(ctx context.Context) error {
				stopSweeper()
				select {
				case <-sweeperDone:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
			"order-events": func(ctx context.Context) error {
				if err := dispatcher.Close(ctx); err != nil {
					return err
				}
				if nc != nil {
					if err := nc.Drain(); err != nil {
						return err
					}
				}
				return rdb.Close()
			},
		},
	)

	exitCode := <-wait
	logger.Info("server stopped", zap.Int("exit_code", exitCode))
	logger.Sync() //nolint:errcheck
	os.Exit(exitCode)
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	return cfg.Build()
}
