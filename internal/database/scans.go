package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"monitor-concorrentes/internal/models"
)

type scanResultRow struct {
	models.ScanResult
	DurationMS int64 `db:"duration_ms"`
}

// SaveScanResult grava o resultado de um scan fora de transação.
// Usado para registrar scans que falharam.
func (db *DB) SaveScanResult(ctx context.Context, r models.ScanResult) (int64, error) {
	return saveScanResult(ctx, db.conn, r)
}

// SaveScanResult grava o resultado do scan na transação
func (t *Tx) SaveScanResult(ctx context.Context, r models.ScanResult) (int64, error) {
	return saveScanResult(ctx, t.tx, r)
}

func saveScanResult(ctx context.Context, exec sqlx.ExecerContext, r models.ScanResult) (int64, error) {
	if r.ScannedAt.IsZero() {
		r.ScannedAt = time.Now().UTC()
	}
	res, err := exec.ExecContext(ctx,
		`INSERT INTO scan_results
			(competitor_id, new_count, removed_count, price_changed_count, title_changed_count, scanned_at, duration_ms, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.CompetitorID, r.NewCount, r.RemovedCount, r.PriceChangedCount, r.TitleChangedCount,
		r.ScannedAt, r.Duration.Milliseconds(), r.Status, r.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("erro ao gravar resultado do scan: %w", err)
	}
	return res.LastInsertId()
}

// ListScanResults retorna os últimos scans de um concorrente, do mais recente ao mais antigo
func (db *DB) ListScanResults(ctx context.Context, competitorID int64, limit int) ([]models.ScanResult, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []scanResultRow
	err := db.conn.SelectContext(ctx, &rows,
		`SELECT id, competitor_id, new_count, removed_count, price_changed_count, title_changed_count,
			scanned_at, duration_ms, status, error
		FROM scan_results WHERE competitor_id = ? ORDER BY scanned_at DESC, id DESC LIMIT ?`,
		competitorID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("erro ao listar scans: %w", err)
	}

	results := make([]models.ScanResult, 0, len(rows))
	for _, row := range rows {
		r := row.ScanResult
		r.Duration = time.Duration(row.DurationMS) * time.Millisecond
		results = append(results, r)
	}
	return results, nil
}
