package app

import (
	"assetactivity/internal/api/http"
	"assetactivity/internal/api/http/handlers"
	"assetactivity/internal/api/http/mw"
	"assetactivity/internal/classifier"
	"assetactivity/internal/config"
	"assetactivity/internal/guard"
	guardredis "assetactivity/internal/guard/redis"
	"assetactivity/internal/metrics"
	"assetactivity/internal/pubsub"
	"assetactivity/internal/pubsub/nats"
	"assetactivity/internal/security"
	"assetactivity/internal/service"
	"assetactivity/internal/stores/clickhouse"
	"assetactivity/internal/stores/redis"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grafana/pyroscope-go"
	lgcfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"
)

type Container struct {
	app *App
	log logger.Logger

	// infra
	redis    *redis.Client
	ch       *clickhouse.Conn   // nil when disabled
	chWriter *clickhouse.Writer // nil when disabled
	nc       *nats.Client       // nil when disabled
	memGuard *guard.MemoryGuard // nil with the redis backend

	// servers
	httpSrv *http.Server

	// metrics
	profiler *pyroscope.Profiler
}

func (c *Container) Start() error {
	return c.app.Start()
}

func (c *Container) Stop(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := c.app.Shutdown(ctx)
	c.cleanup()
	if err != nil {
		return fmt.Errorf("app shutdown is failed, error=%w", err)
	}
	return nil
}

// cleanup releases dependencies in reverse order of construction
func (c *Container) cleanup() {
	ctxClean, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	lg := c.log

	if c.profiler != nil {
		if err := c.profiler.Stop(); err != nil {
			lg.Errorf("Failed to stop profiler: %v", err)
		}
	}

	if c.chWriter != nil {
		if err := c.chWriter.Close(ctxClean); err != nil {
			lg.Errorf("Failed to close by cleanup clickhouse writer: %v", err)
		}
	}
	if c.ch != nil {
		if err := c.ch.Close(); err != nil {
			lg.Errorf("Failed to close by cleanup clickhouse client: %v", err)
		}
	}

	if c.nc != nil {
		if err := c.nc.Close(); err != nil {
			lg.Errorf("Failed to close by cleanup nats client: %v", err)
		}
	}

	if c.memGuard != nil {
		c.memGuard.Close()
	}

	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			lg.Errorf("Failed to close by cleanup redis client: %v", err)
		}
	}

	lg.Info("Successfully cleaned up dependency")
}

// Construct image app
func Build(ctx context.Context, cfg *config.Config) (_ *Container, err error) {
	lg := logger.New(lgcfg.LoggerCfg{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	lg.Info("Successfully initialize logger")

	c := &Container{log: lg}
	// whatever was built so far is released on a failed build
	defer func() {
		if err != nil {
			c.cleanup()
		}
	}()

	if c.profiler, err = metrics.InitPProf(cfg.App.InstanceID, &cfg.Metrics.Pyroscope); err != nil {
		return nil, fmt.Errorf("pyroscope initialize failed: %w", err)
	}
	if c.profiler != nil {
		lg.Infof("Successfully initialize Pyroscope to %s as %s", cfg.Metrics.Pyroscope.ServerAddr, cfg.Metrics.Pyroscope.AppName)
	}

	// Redis client
	if c.redis, err = redis.New(ctx, lg, &cfg.Stores.Redis); err != nil {
		return nil, fmt.Errorf("failed to initialize redis client: %w", err)
	}
	lg.Infof("Successfully initialize redis client, addr=%s", cfg.Stores.Redis.Addr)

	store, err := redis.NewArtifactStore(lg, c.redis, cfg.Stores.Redis.Prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize artifact store: %w", err)
	}

	// Period guard
	var periodGuard guard.Guard
	switch strings.ToLower(cfg.Guard.Backend) {
	case "memory":
		c.memGuard = guard.NewMemoryGuard(lg, cfg.Guard.TTL, time.Minute)
		periodGuard = c.memGuard
	case "", "redis":
		if periodGuard, err = guardredis.NewRedisGuard(lg, &cfg.Guard, c.redis); err != nil {
			return nil, fmt.Errorf("failed to initialize redis guard: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown guard backend %q", cfg.Guard.Backend)
	}
	lg.Infof("Successfully initialize period guard, backend=%s", cfg.Guard.Backend)

	detector, err := classifier.NewDetector(lg, &cfg.Classifier)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize detector: %w", err)
	}

	// ClickHouse sink
	var sink clickhouse.ActivityWriter
	if cfg.Stores.ClickHouse.Enabled {
		if c.ch, err = clickhouse.New(ctx, &cfg.Stores.ClickHouse); err != nil {
			return nil, fmt.Errorf("failed to initialize clickhouse client: %w", err)
		}
		url := strings.Split(cfg.Stores.ClickHouse.DSN, "?")
		lg.Infof("Successfully initialize clickhouse client, url=%s", url[0])

		c.chWriter = clickhouse.NewWriter(lg, c.ch.Native, cfg.Stores.ClickHouse)
		if err = c.ch.EnsureTable(ctx, c.chWriter.Table()); err != nil {
			return nil, fmt.Errorf("failed to ensure clickhouse table: %w", err)
		}
		sink = c.chWriter
		lg.Info("Successfully initialize clickhouse writer")
	}

	// NATS Broadcaster
	var broadcaster pubsub.Broadcaster = pubsub.Noop{}
	if cfg.PubSub.NATS.Enabled {
		if c.nc, err = nats.New(lg, &cfg.PubSub.NATS); err != nil {
			return nil, fmt.Errorf("failed to initialize nats client: %w", err)
		}
		broadcaster = c.nc
		lg.Infof("Successfully initialize nats client, url=%s", cfg.PubSub.NATS.URL)
	}

	// Service Layer
	activity, err := service.NewActivityService(service.Deps{
		Log:           lg,
		Store:         store,
		Detector:      detector,
		Guard:         periodGuard,
		Sink:          sink,
		Broadcaster:   broadcaster,
		Rollup:        cfg.Rollup,
		SubjectPrefix: cfg.PubSub.NATS.SubjectPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize activity service: %w", err)
	}

	// Security
	var mws http.Middlewares
	mws.Log = mw.NewLogging(lg)

	var signer *security.RS256Signer
	if cfg.Security.JWT.Enabled {
		verifier, err := security.NewRS256Verifier(&cfg.Security.JWT)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize JWT-Verifier: %w", err)
		}
		mws.JWT = mw.NewJWTMiddleware(verifier)
		lg.Info("Successfully initialize JWT-Verifier")

		if cfg.Security.JWT.PrivateKeyPath != "" {
			// signer is not required for us -> continue
			if signer, err = security.NewRS256Signer(&cfg.Security.JWT); err != nil {
				lg.Errorf("Failed to initialize signer: %v", err)
				signer = nil
			} else {
				lg.Warn("Dev token signer enabled, /api/dev/token is exposed")
			}
		}
	}
	if cfg.RateLimit.Enabled {
		mws.RateLimit = mw.NewRateLimit(lg, c.redis, cfg.RateLimit)
	}
	if cfg.API.HTTP.CORS.Enabled {
		mws.CORS = mw.NewCORS(&cfg.API.HTTP.CORS)
	}

	// HTTP Server
	c.httpSrv = http.NewServer(&http.ServerDeps{
		Logger:      lg,
		Cfg:         &cfg.API.HTTP,
		Handler:     handlers.NewHandler(lg, activity, signer, cfg.App.BuildTimeout),
		Middlewares: mws,
	})
	lg.Info("Successfully initialize HTTP server")

	c.app = NewApp(lg, c.httpSrv)

	lg.Info("Successfully initialize Wiring")
	return c, nil
}
