package database

import (
	"context"
	"fmt"
	"time"

	"monitor-concorrentes/internal/models"
)

const competitorColumns = `id, user_id, name, url, platform, status, last_scanned_at, product_count, created_at`

// AddCompetitor adiciona um novo concorrente e retorna o ID
func (db *DB) AddCompetitor(ctx context.Context, c models.Competitor) (int64, error) {
	if c.Platform == "" {
		c.Platform = models.PlatformCustom
	}
	if c.Status == "" {
		c.Status = models.CompetitorActive
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	res, err := db.conn.ExecContext(ctx,
		"INSERT INTO competitors (user_id, name, url, platform, status, product_count, created_at) VALUES (?, ?, ?, ?, ?, 0, ?)",
		c.UserID, c.Name, c.URL, c.Platform, c.Status, c.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("erro ao adicionar concorrente: %w", err)
	}
	return res.LastInsertId()
}

// GetCompetitor retorna um concorrente pelo ID
func (db *DB) GetCompetitor(ctx context.Context, id int64) (*models.Competitor, error) {
	var c models.Competitor
	err := db.conn.GetContext(ctx, &c, "SELECT "+competitorColumns+" FROM competitors WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// ListCompetitors retorna os concorrentes com o status informado (todos se vazio)
func (db *DB) ListCompetitors(ctx context.Context, status string) ([]models.Competitor, error) {
	query := "SELECT " + competitorColumns + " FROM competitors"
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY id"

	var competitors []models.Competitor
	if err := db.conn.SelectContext(ctx, &competitors, query, args...); err != nil {
		return nil, fmt.Errorf("erro ao listar concorrentes: %w", err)
	}
	return competitors, nil
}

// SetCompetitorStatus altera o status de um concorrente (active/paused/error)
func (db *DB) SetCompetitorStatus(ctx context.Context, id int64, status string) error {
	res, err := db.conn.ExecContext(ctx, "UPDATE competitors SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// DeleteCompetitor apaga o concorrente junto com seus produtos e histórico de scans
func (db *DB) DeleteCompetitor(ctx context.Context, id int64) error {
	return db.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.tx.ExecContext(ctx, "DELETE FROM competitor_products WHERE competitor_id = ?", id); err != nil {
			return err
		}
		if _, err := tx.tx.ExecContext(ctx, "DELETE FROM scan_results WHERE competitor_id = ?", id); err != nil {
			return err
		}
		res, err := tx.tx.ExecContext(ctx, "DELETE FROM competitors WHERE id = ?", id)
		if err != nil {
			return err
		}
		return checkAffected(res)
	})
}

// UpdateCompetitor grava a data do último scan e a contagem de produtos ativos
func (t *Tx) UpdateCompetitor(ctx context.Context, competitorID int64, lastScanned time.Time, productCount int) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE competitors SET last_scanned_at = ?, product_count = ? WHERE id = ?",
		lastScanned, productCount, competitorID,
	)
	if err != nil {
		return fmt.Errorf("erro ao atualizar concorrente: %w", err)
	}
	return checkAffected(res)
}
