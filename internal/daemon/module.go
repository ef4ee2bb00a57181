package daemon

import (
	"context"

	"github.com/matheus3301/wpp-puppet/internal/bus"
	"github.com/matheus3301/wpp-puppet/internal/cache"
	"github.com/matheus3301/wpp-puppet/internal/config"
	"github.com/matheus3301/wpp-puppet/internal/handler"
	"github.com/matheus3301/wpp-puppet/internal/lock"
	"github.com/matheus3301/wpp-puppet/internal/logging"
	"github.com/matheus3301/wpp-puppet/internal/outbox"
	"github.com/matheus3301/wpp-puppet/internal/puppet"
	"github.com/matheus3301/wpp-puppet/internal/reqpool"
	"github.com/matheus3301/wpp-puppet/internal/session"
	"github.com/matheus3301/wpp-puppet/internal/status"
	"github.com/matheus3301/wpp-puppet/internal/store"
	intsync "github.com/matheus3301/wpp-puppet/internal/sync"
	"github.com/matheus3301/wpp-puppet/internal/wa"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideOpener,
			provideCache,
			providePool,
			provideAdapter,
			provideHandler,
			provideBackfiller,
			provideSyncEngine,
			provideSender,
			providePuppet,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	return config.LoadOrDefault(session.ConfigPath())
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log, session.LogPath(p.SessionName), p.SessionName)
}

func provideBus(logger *zap.Logger) *bus.Bus {
	return bus.New(logger)
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName), "wppd")
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideOpener(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (store.Opener, error) {
	if cfg.Cache.Backend != config.BackendRedis {
		logger.Info("cache backend", zap.String("backend", config.BackendSQLite))
		return store.OpenSQLite, nil
	}
	pool, err := store.NewRedisPool(cfg.Cache.RedisAddr, cfg.Cache.RedisPoolSize)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error { return pool.Close() }})
	logger.Info("cache backend", zap.String("backend", config.BackendRedis), zap.String("addr", cfg.Cache.RedisAddr))
	return store.RedisOpener(pool), nil
}

func provideCache(p Params, open store.Opener, logger *zap.Logger) *cache.Manager {
	return cache.NewManager(session.CacheDir(p.SessionName), open, logger.Named("cache"))
}

func providePool(logger *zap.Logger) *reqpool.Pool {
	return reqpool.New(logger.Named("reqpool"))
}

func provideAdapter(p Params, cfg *config.Config, logger *zap.Logger) (*wa.Adapter, error) {
	return wa.NewAdapter(context.Background(), p.SessionName, cfg.Puppet.HistoryLimit, logger.Named("wa"))
}

func provideHandler(adapter *wa.Adapter, c *cache.Manager, pool *reqpool.Pool, b *bus.Bus, m *status.Machine, cfg *config.Config, logger *zap.Logger) *handler.Handler {
	return handler.New(adapter, c, pool, b, m, handler.Config{
		UserName:         cfg.Puppet.UserName,
		LogoutGrace:      cfg.Puppet.LogoutGrace.Duration,
		BatteryThreshold: cfg.Puppet.BatteryThreshold,
		LoginBatchSize:   cfg.Puppet.LoginBatchSize,
		ReadyBatchSize:   cfg.Puppet.ReadyBatchSize,
	}, logger.Named("handler"))
}

func provideBackfiller(adapter *wa.Adapter, c *cache.Manager, h *handler.Handler, b *bus.Bus, logger *zap.Logger) *intsync.Backfiller {
	return intsync.NewBackfiller(adapter, c, h, b, logger.Named("backfill"))
}

func provideSyncEngine(cfg *config.Config, h *handler.Handler, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(cfg.Puppet.SyncInterval.Duration, h.SyncTick, logger.Named("sync"))
}

func provideSender(adapter *wa.Adapter, pool *reqpool.Pool, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(adapter, pool, b, outbox.Config{
		Timeout: cfg.Puppet.RequestTimeout.Duration,
		Rate:    cfg.Puppet.SendRate,
		Burst:   cfg.Puppet.SendBurst,
	}, logger.Named("outbox"))
}

func providePuppet(adapter *wa.Adapter, c *cache.Manager, sender *outbox.Sender, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *puppet.Puppet {
	return puppet.New(adapter, c, sender, b, cfg.Puppet.UserName, logger.Named("puppet"))
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, adapter *wa.Adapter, h *handler.Handler, backfiller *intsync.Backfiller, engine *intsync.Engine, p *puppet.Puppet, pool *reqpool.Pool, c *cache.Manager, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			h.Attach(backfiller, engine)
			h.Start(context.Background())
			p.Start()

			// Start gRPC server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			if !adapter.IsLoggedIn() {
				logger.Info("no credentials found, waiting for QR scan")
			}
			go func() {
				if err := adapter.Connect(context.Background()); err != nil {
					logger.Error("connect failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Stop()
			engine.Stop()
			adapter.Disconnect()
			h.Stop()
			pool.Clear()
			if err := c.Release(); err != nil {
				logger.Debug("cache release", zap.Error(err))
			}
			srv.Stop(ctx)
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
