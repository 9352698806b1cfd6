package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MilkyWatch/StockBox/config"
	"github.com/MilkyWatch/StockBox/internal/broker/kafka"
	"github.com/MilkyWatch/StockBox/internal/cache"
	"github.com/MilkyWatch/StockBox/internal/cache/rediscache"
	"github.com/MilkyWatch/StockBox/internal/catalog"
	"github.com/MilkyWatch/StockBox/internal/models"
	"github.com/MilkyWatch/StockBox/internal/services/checker"
	"github.com/MilkyWatch/StockBox/internal/services/fetcher"
	"github.com/MilkyWatch/StockBox/internal/services/notify"
	"github.com/MilkyWatch/StockBox/internal/services/resolver"
	"github.com/MilkyWatch/StockBox/internal/storage/pgstore"
	"github.com/MilkyWatch/StockBox/internal/storefront"
	"github.com/MilkyWatch/StockBox/internal/storefront/fake"
	"github.com/MilkyWatch/StockBox/internal/storefront/shophttp"
	"github.com/MilkyWatch/StockBox/internal/transport"
	"github.com/MilkyWatch/StockBox/internal/transport/telegram"
)

// workerStorage — всё, что воркеру нужно от postgres.
type workerStorage interface {
	GetActiveSubscribers(ctx context.Context) ([]*models.Subscriber, error)
	UpdateSubscriber(ctx context.Context, chatID int64, patch models.SubscriberPatch) error
	RecordStateChange(ctx context.Context, rec models.StatusRecord) (*models.StatusRecord, error)
	CleanupHistory(ctx context.Context, cutoff time.Time) (int64, error)
	ListSubstores(ctx context.Context) ([]models.Substore, error)
	UpsertSubstore(ctx context.Context, sub models.Substore) error
	SeedSubstores(ctx context.Context, subs []models.Substore) error
}

type workerFactories struct {
	newStorage     func(cfg *config.Config) (st workerStorage, closeFn func(), err error)
	newProducer    func(cfg *config.Config) checker.Producer
	newRateLimiter func(cfg *config.Config) fetcher.RateLimiter
	newGate        func(cfg *config.Config) cache.BytesCache
	newMessenger   func(cfg *config.Config) transport.Messenger
	newStorefront  func(cfg *config.Config) (storefront.Client, error)
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (workerStorage, func(), error) {
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			st, err := openPostgresWithRetry(connString)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) checker.Producer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newRateLimiter: func(cfg *config.Config) fetcher.RateLimiter {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewRateLimiter(redisAddr)
		},
		newGate: func(cfg *config.Config) cache.BytesCache {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.New(redisAddr)
		},
		newMessenger: func(cfg *config.Config) transport.Messenger {
			return telegram.New(cfg.Telegram.BaseURL, cfg.Telegram.Token)
		},
		newStorefront: func(cfg *config.Config) (storefront.Client, error) {
			// Реальная витрина только по явному запросу, иначе локальный fake.
			if cfg.StockBox.StorefrontMode == "shop" {
				return shophttp.New(cfg.StockBox.StorefrontBaseURL, cfg.StockBox.StorefrontStoreID)
			}
			return fake.New(), nil
		},
	}
}

// Postgres в compose-окружении может подняться позже воркера.
func openPostgresWithRetry(connString string) (*pgstore.Storage, error) {
	var lastErr error
	for i := 0; i < 10; i++ {
		st, err := pgstore.New(connString)
		if err == nil {
			return st, nil
		}
		lastErr = err
		slog.Warn("postgres not ready", "attempt", i+1, "error", err.Error())
		time.Sleep(time.Duration(500*(i+1)) * time.Millisecond)
	}
	return nil, lastErr
}

func RunStockWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	topic := cfg.Kafka.StockUpdatedTopicName
	if topic == "" {
		topic = "stock.updated"
	}

	checkInterval := time.Duration(cfg.StockBox.CheckIntervalSeconds) * time.Second
	if checkInterval <= 0 {
		checkInterval = 5 * time.Minute
	}
	partitionConcurrency := cfg.StockBox.PartitionConcurrency
	if partitionConcurrency <= 0 {
		partitionConcurrency = 10
	}
	retention := time.Duration(cfg.StockBox.HistoryRetentionHours) * time.Hour
	if retention <= 0 {
		retention = 48 * time.Hour
	}

	fetchConcurrency := cfg.StockBox.FetchConcurrency
	if fetchConcurrency <= 0 {
		fetchConcurrency = 3
	}
	fetchRate := int64(cfg.StockBox.FetchRatePerSecond)
	if fetchRate <= 0 {
		fetchRate = 5
	}
	fetchAttempts := cfg.StockBox.FetchAttempts
	if fetchAttempts <= 0 {
		fetchAttempts = 3
	}
	fetchBackoff := time.Duration(cfg.StockBox.FetchBackoffBaseSeconds) * time.Second
	if fetchBackoff <= 0 {
		fetchBackoff = time.Second
	}
	jitterMin := time.Duration(cfg.StockBox.FetchJitterMinMillis) * time.Millisecond
	jitterMax := time.Duration(cfg.StockBox.FetchJitterMaxMillis) * time.Millisecond
	if jitterMax <= 0 {
		jitterMin = time.Second
		jitterMax = 2 * time.Second
	}

	st, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	if cfg.StockBox.SubstoreSeedPath != "" {
		seed, err := catalog.LoadSubstoreSeed(cfg.StockBox.SubstoreSeedPath)
		if err != nil {
			slog.Warn("substore seed", "error", err.Error())
		} else if err := st.SeedSubstores(ctx, seed); err != nil {
			slog.Warn("substore seed upsert", "error", err.Error())
		}
	}

	client, err := f.newStorefront(cfg)
	if err != nil {
		return err
	}

	cch := resolver.NewCache()
	res := resolver.New(client, st, cch)
	if err := res.Warm(ctx); err != nil {
		slog.Warn("resolver warmup", "error", err.Error())
	}

	fet := fetcher.New(client, res, f.newRateLimiter(cfg), catalog.Products()).
		WithSettings(fetchConcurrency, fetchRate, fetchAttempts, fetchBackoff, jitterMin, jitterMax)

	disp := notify.NewDispatcher(f.newMessenger(cfg), st).
		WithSettings(
			cfg.StockBox.NotifyConcurrency,
			cfg.StockBox.NotifyAttempts,
			time.Duration(cfg.StockBox.NotifyTimeoutSeconds)*time.Second,
			0,
		)

	chk := checker.New(st, st, res, cch, fet, disp, f.newProducer(cfg), f.newGate(cfg), topic).
		WithSettings(checkInterval, partitionConcurrency, retention)

	go func() {
		err := runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr: cfg.StockBox.WorkerHTTPAddr,
			checker:  chk,
			cfg:      cfg,
		})
		if err != nil && ctx.Err() == nil {
			slog.Error("worker http server", "error", err.Error())
		}
	}()

	return chk.Run(ctx)
}
