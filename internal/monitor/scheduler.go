package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"monitor-concorrentes/internal/models"
)

// ScanAllResult resume uma rodada de scans
type ScanAllResult struct {
	Scanned int
	Skipped int // já em andamento
	Failed  int
}

// ScanAll escaneia todos os concorrentes ativos em paralelo, com no máximo
// Workers scans ao mesmo tempo. Erros de um concorrente não interrompem os demais.
func (m *Monitor) ScanAll(ctx context.Context) (ScanAllResult, error) {
	competitors, err := m.store.ListCompetitors(ctx, models.CompetitorActive)
	if err != nil {
		return ScanAllResult{}, fmt.Errorf("erro ao buscar concorrentes: %w", err)
	}

	var scanned, skipped, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)
	for _, c := range competitors {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			_, err := m.RunScan(gctx, c.ID)
			switch {
			case err == nil:
				scanned.Add(1)
			case errors.Is(err, ErrAlreadyScanning):
				skipped.Add(1)
				m.logger.Info("Scan já em andamento, pulando", zap.Int64("competitor_id", c.ID))
			default:
				failed.Add(1)
				m.logger.Error("Erro ao escanear concorrente", zap.Int64("competitor_id", c.ID), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	result := ScanAllResult{
		Scanned: int(scanned.Load()),
		Skipped: int(skipped.Load()),
		Failed:  int(failed.Load()),
	}
	m.logger.Info("Rodada de scans finalizada",
		zap.Int("competitors", len(competitors)),
		zap.Int("scanned", result.Scanned),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, ctx.Err()
}

// Start executa uma rodada imediatamente e depois segue o agendamento
// configurado até ctx ser cancelado.
func (m *Monitor) Start(ctx context.Context) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	if _, err := c.AddFunc(m.cfg.Schedule, func() { m.runRound(ctx) }); err != nil {
		return fmt.Errorf("agendamento inválido %q: %w", m.cfg.Schedule, err)
	}

	m.logger.Info("Monitor iniciado", zap.String("schedule", m.cfg.Schedule), zap.Int("workers", m.cfg.Workers))

	m.runRound(ctx)

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	m.logger.Info("Monitor parado")
	return nil
}

func (m *Monitor) runRound(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := m.ScanAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Error("Erro na rodada de scans", zap.Error(err))
	}
}
