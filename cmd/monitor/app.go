package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"monitor-concorrentes/config"
	"monitor-concorrentes/internal/database"
	"monitor-concorrentes/internal/lease"
	"monitor-concorrentes/internal/logger"
	"monitor-concorrentes/internal/metrics"
	"monitor-concorrentes/internal/monitor"
	"monitor-concorrentes/internal/scraper"
)

// app reúne as dependências compartilhadas pelos comandos
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *database.DB
	redis   *redis.Client
	metrics *metrics.Metrics
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("erro ao carregar configurações: %w", err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return nil, err
	}

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("erro ao inicializar banco de dados: %w", err)
	}

	a := &app{cfg: cfg, logger: log, db: db, metrics: metrics.New(prometheus.DefaultRegisterer)}

	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("erro ao conectar no Redis %s: %w", cfg.RedisAddr, err)
		}
	}
	return a, nil
}

func (a *app) locker() lease.Locker {
	if a.redis != nil {
		a.logger.Info("Usando lease no Redis", zap.String("addr", a.cfg.RedisAddr))
		return lease.NewRedisLocker(a.redis, a.cfg.LeaseTTL)
	}
	return lease.NewLocalLocker()
}

func (a *app) newMonitor(notifier monitor.Notifier) *monitor.Monitor {
	crawler := scraper.New(scraper.Options{
		MaxPages:    a.cfg.MaxPages,
		HTTPTimeout: a.cfg.HTTPTimeout,
		UserAgent:   a.cfg.UserAgent,
		Currency:    a.cfg.DefaultCurrency,
	}, a.logger.Named("scraper"))

	return monitor.New(
		monitor.NewStore(a.db),
		crawler,
		notifier,
		a.locker(),
		monitor.Config{
			ScanTimeout:    a.cfg.ScanTimeout,
			Workers:        a.cfg.WorkerCount,
			Schedule:       a.cfg.ScanSchedule,
			AlertThreshold: a.cfg.AlertThreshold,
		},
		a.metrics,
		a.logger.Named("monitor"),
	)
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("Erro ao fechar banco de dados", zap.Error(err))
	}
	_ = a.logger.Sync()
}
