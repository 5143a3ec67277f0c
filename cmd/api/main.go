package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"storefront/internal/catalog"
	"storefront/internal/config"
	"storefront/internal/consumer"
	"storefront/internal/database"
	"storefront/internal/gateway"
	"storefront/internal/monitor"
	"storefront/internal/redis"
	"storefront/internal/repository"
	"storefront/internal/service/cart"
	"storefront/internal/service/ledger"
	"storefront/internal/service/order"
	"storefront/internal/service/report"
	"storefront/internal/service/storefront"
	"storefront/internal/service/waitlist"
	"storefront/pkg/limiter"
	"storefront/pkg/lock"
	"storefront/pkg/log"
	"storefront/pkg/queue"
	"storefront/pkg/snowflake"
)

const version = "1.0.0"

func main() {
	configPath := flag.StringP("config", "c", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.WithError(err).Fatal("Storefront exited")
	}
}

// app the wired process
type app struct {
	cfg      *config.Config
	registry *prometheus.Registry
	metrics  *monitor.Metrics

	redis    *goredis.Client
	queue    *queue.MemoryQueue
	catalog  catalog.Store
	cache    *catalog.CachedStore
	webhook  *gateway.WebhookGateway
	limiter  *limiter.KeyedLimiter
	gateway  gateway.Gateway
	ledger   ledger.LedgerService
	orders   order.OrderService
	reports  report.ReportService
	front    storefront.StorefrontService
	products repository.ProductRepository
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	if err := log.Init(log.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxAge:     cfg.Log.MaxAge,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		return err
	}

	tracer, err := monitor.NewTracer(&monitor.TracerConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		Environment:    config.Env(),
		JaegerEndpoint: cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracer.Shutdown(ctx)
	}()

	a, err := wire(cfg)
	if err != nil {
		return err
	}
	defer database.Close()
	defer a.queue.Close()
	if a.redis != nil {
		defer redis.Close()
	}
	if a.cache != nil {
		defer a.cache.Close()
	}

	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	server := &http.Server{
		Addr:           cfg.Server.GetAddr(),
		Handler:        setupRouter(a),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	config.WatchConfig(func(next *config.Config) {
		// only the log level applies live; everything else needs a restart
		if err := log.SetLevel(next.Log.Level); err != nil {
			log.WithError(err).Warn("Failed to apply reloaded log level")
			return
		}
		log.WithFields(log.Fields{"level": next.Log.Level}).Info("Config reloaded")
	}, func(err error) {
		log.WithError(err).Warn("Ignoring invalid config change")
	})

	g, gctx := errgroup.WithContext(ctx)

	if err := consumer.NewReconcileConsumer(a.queue, a.gateway, cfg.Storefront.ReconcileTopic,
		cfg.Storefront.OperatorChannel, a.metrics).Start(gctx); err != nil {
		return err
	}

	g.Go(func() error {
		log.WithFields(log.Fields{
			"addr": server.Addr,
			"mode": cfg.Server.Mode,
		}).Info("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.Storefront.FinanceChannel != "" {
		g.Go(func() error {
			return a.reports.Run(gctx, cfg.Storefront.SummaryInterval)
		})
	}

	if a.cache != nil {
		g.Go(func() error {
			return a.cache.Run(gctx, cfg.Cache.RefreshInterval)
		})
	}

	g.Go(func() error {
		return sweep(gctx, a)
	})

	err = g.Wait()
	log.Info("Server exited")
	return err
}

// wire builds every component from cfg
func wire(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = monitor.NewMetrics(cfg.Metrics.Namespace, a.registry)

	db, err := database.Init(&cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			return nil, err
		}
	}
	a.products = repository.NewProductRepository(db)
	sales := repository.NewSaleRepository(db)

	if cfg.Redis.Enabled {
		if a.redis, err = redis.Init(&cfg.Redis); err != nil {
			return nil, err
		}
	}

	a.catalog = catalog.NewStore(a.products)
	if cfg.Cache.Enabled {
		a.cache, err = catalog.NewCachedStore(a.catalog, a.products, catalog.CacheConfig{
			TTL:           cfg.Cache.TTL,
			MaxSizeMB:     cfg.Cache.MaxSizeMB,
			BloomCapacity: cfg.Cache.BloomCapacity,
			BloomFPRate:   cfg.Cache.BloomFPRate,
			Metrics:       a.metrics,
		})
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = a.cache.Refresh(ctx)
		cancel()
		if err != nil {
			// serve without the filter until the next refresh
			log.WithError(err).Warn("Initial catalog refresh failed")
		}
		a.catalog = a.cache
	}

	switch cfg.Gateway.Driver {
	case "webhook":
		a.webhook = gateway.NewWebhookGateway(gateway.WebhookConfig{
			URL:                 cfg.Gateway.URL,
			Token:               cfg.Gateway.Token,
			Timeout:             cfg.Gateway.Timeout,
			DMRate:              cfg.Gateway.DMRate,
			DMBurst:             cfg.Gateway.DMBurst,
			BreakerMaxRequests:  cfg.Gateway.Breaker.MaxRequests,
			BreakerInterval:     cfg.Gateway.Breaker.Interval,
			BreakerTimeout:      cfg.Gateway.Breaker.Timeout,
			BreakerFailureRatio: cfg.Gateway.Breaker.FailureRatio,
			BreakerMinRequests:  cfg.Gateway.Breaker.MinRequests,
		}, a.metrics)
		a.gateway = a.webhook
	default:
		a.gateway = gateway.NewMemoryGateway()
	}

	var waitlists waitlist.WaitlistService
	if cfg.Storefront.WaitlistBackend == "redis" {
		if a.redis == nil {
			return nil, errors.New("redis waitlist backend needs redis.enabled")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		waitlists, err = waitlist.NewRedisWaitlist(ctx, a.redis, cfg.Storefront.WaitlistPrefix, a.metrics)
		cancel()
		if err != nil {
			return nil, err
		}
	} else {
		waitlists = waitlist.NewMemoryWaitlist(a.metrics)
	}

	ids, err := snowflake.NewIDGenerator(cfg.Server.NodeID)
	if err != nil {
		return nil, err
	}
	a.queue = queue.NewMemoryQueue(&queue.MemoryQueueConfig{BufferSize: cfg.Storefront.ReconcileBuffer})

	if cfg.RateLimit.Enabled {
		a.limiter = limiter.NewKeyedLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.TTL)
	}

	var locker report.Locker
	if a.redis != nil {
		locker = lock.NewRedisLock(a.redis, "lock:sales_summary", cfg.Storefront.SummaryLockTTL)
	}

	carts := cart.NewCartService(a.metrics)
	a.ledger = ledger.NewLedgerService(sales, a.metrics)
	a.reports = report.NewReportService(a.ledger, a.gateway, locker, report.Config{
		FinanceChannel: cfg.Storefront.FinanceChannel,
		Months:         cfg.Storefront.SummaryMonths,
	})
	a.orders = order.NewOrderService(order.Deps{
		Carts:    carts,
		Ledger:   a.ledger,
		Gateway:  a.gateway,
		Queue:    a.queue,
		IDs:      ids,
		Metrics:  a.metrics,
		Listener: a.reports,
	}, order.Config{
		AdminChannel:   cfg.Storefront.AdminChannel,
		ReconcileTopic: cfg.Storefront.ReconcileTopic,
	})
	a.front = storefront.NewStorefrontService(storefront.Deps{
		Catalog:  a.catalog,
		Carts:    carts,
		Waitlist: waitlists,
		Orders:   a.orders,
		Reports:  a.reports,
		Gateway:  a.gateway,
		Metrics:  a.metrics,
	}, storefront.Config{
		AdminChannel:    cfg.Storefront.AdminChannel,
		CatalogChannels: cfg.Storefront.CatalogChannels,
	})

	return a, nil
}

// sweep drops idle rate-limit buckets until ctx ends
func sweep(ctx context.Context, a *app) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			dropped := 0
			if a.limiter != nil {
				dropped += a.limiter.Sweep()
			}
			if a.webhook != nil {
				dropped += a.webhook.Sweep()
			}
			if dropped > 0 {
				log.WithFields(log.Fields{"dropped": dropped}).Debug("Swept idle rate limiters")
			}
		}
	}
}
