// Package monitor orquestra os scans de concorrentes: crawl, diff, gravação
// transacional e alertas.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"monitor-concorrentes/internal/database"
	"monitor-concorrentes/internal/diff"
	"monitor-concorrentes/internal/lease"
	"monitor-concorrentes/internal/metrics"
	"monitor-concorrentes/internal/models"
	"monitor-concorrentes/internal/scraper"
)

var (
	// ErrCompetitorNotFound é retornado quando o concorrente não existe
	ErrCompetitorNotFound = errors.New("concorrente não encontrado")

	// ErrAlreadyScanning é retornado quando já existe um scan em andamento
	// para o concorrente. Quem chamou pode tentar de novo mais tarde.
	ErrAlreadyScanning = errors.New("scan já em andamento para este concorrente")
)

// Store é o acesso ao banco usado pelo monitor
type Store interface {
	GetCompetitor(ctx context.Context, id int64) (*models.Competitor, error)
	ListCompetitors(ctx context.Context, status string) ([]models.Competitor, error)
	LoadActiveProducts(ctx context.Context, competitorID int64) ([]models.CompetitorProduct, error)
	SaveScanResult(ctx context.Context, r models.ScanResult) (int64, error)
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx são as escritas de um scan, feitas numa única transação
type Tx interface {
	UpsertProduct(ctx context.Context, competitorID int64, rec models.ProductRecord, now time.Time) (int64, error)
	MarkRemoved(ctx context.Context, productID int64, at time.Time) error
	UpdateMatched(ctx context.Context, productID int64, rec models.ProductRecord, at time.Time) error
	SetCurrentPrice(ctx context.Context, productID int64, price *float64) error
	AppendPricePoint(ctx context.Context, productID int64, point models.PricePoint) error
	SaveScanResult(ctx context.Context, r models.ScanResult) (int64, error)
	CountActiveProducts(ctx context.Context, competitorID int64) (int, error)
	UpdateCompetitor(ctx context.Context, competitorID int64, lastScanned time.Time, productCount int) error
}

// Crawler descobre os produtos de uma loja. Nunca falha: erros viram um
// resultado parcial com Complete=false.
type Crawler interface {
	Crawl(ctx context.Context, url string) scraper.CrawlResult
}

// Notifier recebe os alertas de um scan. Não deve bloquear.
type Notifier interface {
	Notify(ctx context.Context, alerts []models.Alert)
}

// Config ajusta o comportamento do monitor
type Config struct {
	ScanTimeout    time.Duration
	Workers        int
	Schedule       string
	AlertThreshold float64 // variação mínima de preço, em %, para alertar
}

// ScanSummary é o resumo de um scan executado
type ScanSummary struct {
	CompetitorID int64
	State        models.ScanState
	Result       models.ScanResult
	Diff         models.CatalogDiff
	Strategy     string
	Alerts       []models.Alert
}

// Monitor executa scans de concorrentes
type Monitor struct {
	store    Store
	crawler  Crawler
	notifier Notifier
	locker   lease.Locker
	metrics  *metrics.Metrics
	logger   *zap.Logger
	cfg      Config
	now      func() time.Time
}

// New cria uma nova instância do monitor. notifier e m podem ser nil.
func New(store Store, crawler Crawler, notifier Notifier, locker lease.Locker, cfg Config, m *metrics.Metrics, logger *zap.Logger) *Monitor {
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = 10 * time.Minute
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 6h"
	}
	if locker == nil {
		locker = lease.NewLocalLocker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		store:    store,
		crawler:  crawler,
		notifier: notifier,
		locker:   locker,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RunScan executa um scan completo do concorrente.
//
// O lease do concorrente é mantido do carregamento até o envio dos alertas.
// Falhas do crawl não são erro; falhas de escrita abortam o scan, deixam um
// ScanResult com status failed e são devolvidas para quem chamou.
func (m *Monitor) RunScan(ctx context.Context, competitorID int64) (*ScanSummary, error) {
	log := m.logger.With(zap.Int64("competitor_id", competitorID))

	l, err := m.locker.Acquire(ctx, competitorID)
	if err != nil {
		if errors.Is(err, lease.ErrHeld) {
			return nil, ErrAlreadyScanning
		}
		return nil, fmt.Errorf("erro ao adquirir lease: %w", err)
	}
	defer func() {
		if err := l.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("Erro ao liberar lease", zap.Error(err))
		}
	}()

	summary := &ScanSummary{CompetitorID: competitorID, State: models.ScanStarted}

	competitor, err := m.store.GetCompetitor(ctx, competitorID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrCompetitorNotFound
		}
		summary.State = models.ScanError
		return summary, fmt.Errorf("erro ao carregar concorrente: %w", err)
	}
	log = log.With(zap.String("url", competitor.URL))
	log.Info("Scan iniciado")

	stored, err := m.store.LoadActiveProducts(ctx, competitorID)
	if err != nil {
		return m.fail(ctx, log, summary, 0, fmt.Errorf("erro ao carregar produtos: %w", err))
	}

	start := time.Now()
	crawlCtx, cancel := context.WithTimeout(ctx, m.cfg.ScanTimeout)
	crawl := m.crawler.Crawl(crawlCtx, competitor.URL)
	cancel()
	duration := time.Since(start)

	summary.State = models.ScanCrawled
	summary.Strategy = crawl.Strategy
	log = log.With(zap.String("strategy", crawl.Strategy))
	if crawl.Err != nil {
		log.Warn("Crawl incompleto", zap.Error(crawl.Err), zap.Int("products", len(crawl.Products)))
	}
	log.Debug("Crawl concluído",
		zap.Int("products", len(crawl.Products)),
		zap.Int("pages", crawl.Pages),
		zap.Bool("complete", crawl.Complete),
		zap.Duration("duration", duration),
	)

	d := diff.ComputeCatalogDiffWithOptions(stored, crawl.Products, diff.Options{SkipRemovals: !crawl.Complete})
	summary.Diff = d
	summary.State = models.ScanDiffed

	now := m.now()
	result := models.ScanResult{
		CompetitorID:      competitorID,
		NewCount:          len(d.New),
		RemovedCount:      len(d.Removed),
		PriceChangedCount: len(d.PriceChanges),
		TitleChangedCount: len(d.TitleChanges),
		ScannedAt:         now,
		Duration:          duration,
		Status:            models.ScanCompleted,
	}
	if !crawl.Complete {
		result.Status = models.ScanPartial
		if crawl.Err != nil {
			result.Error = crawl.Err.Error()
		}
	}

	newIDs := make([]int64, 0, len(d.New))
	err = m.store.WithTx(ctx, func(tx Tx) error {
		newIDs = newIDs[:0]
		if err := applyDiff(ctx, tx, competitorID, d, now, &newIDs); err != nil {
			return err
		}

		id, err := tx.SaveScanResult(ctx, result)
		if err != nil {
			return err
		}
		result.ID = id

		count, err := tx.CountActiveProducts(ctx, competitorID)
		if err != nil {
			return err
		}
		return tx.UpdateCompetitor(ctx, competitorID, now, count)
	})
	if err != nil {
		result.ID = 0
		return m.fail(ctx, log, summary, duration, fmt.Errorf("erro ao gravar scan: %w", err))
	}
	summary.Result = result
	summary.State = models.ScanApplied

	summary.Alerts = BuildAlerts(competitorID, d, newIDs, m.cfg.AlertThreshold)
	if m.notifier != nil && len(summary.Alerts) > 0 {
		m.notifier.Notify(ctx, summary.Alerts)
	}

	m.metrics.ObserveScan(result.Status, duration)
	m.metrics.AddChanges(metrics.ChangeNew, result.NewCount)
	m.metrics.AddChanges(metrics.ChangeRemoved, result.RemovedCount)
	m.metrics.AddChanges(metrics.ChangePrice, result.PriceChangedCount)
	m.metrics.AddChanges(metrics.ChangeTitle, result.TitleChangedCount)

	summary.State = models.ScanSummarized
	log.Info("Scan finalizado",
		zap.String("status", result.Status),
		zap.Int("new", result.NewCount),
		zap.Int("removed", result.RemovedCount),
		zap.Int("price_changed", result.PriceChangedCount),
		zap.Int("title_changed", result.TitleChangedCount),
		zap.Int("alerts", len(summary.Alerts)),
	)
	return summary, nil
}

func applyDiff(ctx context.Context, tx Tx, competitorID int64, d models.CatalogDiff, now time.Time, newIDs *[]int64) error {
	for _, rec := range d.New {
		id, err := tx.UpsertProduct(ctx, competitorID, rec, now)
		if err != nil {
			return err
		}
		*newIDs = append(*newIDs, id)
	}
	for _, p := range d.Removed {
		if err := tx.MarkRemoved(ctx, p.ID, now); err != nil {
			return err
		}
	}
	for _, match := range d.Matched {
		if err := tx.UpdateMatched(ctx, match.Product.ID, match.Record, now); err != nil {
			return err
		}
	}
	for _, pc := range d.PriceChanges {
		if err := tx.SetCurrentPrice(ctx, pc.Product.ID, pc.NewPrice); err != nil {
			return err
		}
		// preço que sumiu não entra no histórico
		if pc.NewPrice == nil {
			continue
		}
		if err := tx.AppendPricePoint(ctx, pc.Product.ID, models.PricePoint{Date: now, Price: *pc.NewPrice}); err != nil {
			return err
		}
	}
	return nil
}

// fail registra o scan como failed, sem contagens, e devolve o erro
func (m *Monitor) fail(ctx context.Context, log *zap.Logger, summary *ScanSummary, duration time.Duration, err error) (*ScanSummary, error) {
	summary.State = models.ScanError
	log.Error("Scan falhou", zap.Error(err))

	marker := models.ScanResult{
		CompetitorID: summary.CompetitorID,
		ScannedAt:    m.now(),
		Duration:     duration,
		Status:       models.ScanFailed,
		Error:        err.Error(),
	}
	id, saveErr := m.store.SaveScanResult(context.WithoutCancel(ctx), marker)
	if saveErr != nil {
		log.Warn("Erro ao registrar scan com falha", zap.Error(saveErr))
	} else {
		marker.ID = id
	}
	summary.Result = marker

	m.metrics.ObserveScan(models.ScanFailed, duration)
	return summary, err
}
