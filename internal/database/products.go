package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"monitor-concorrentes/internal/models"
)

const productColumns = `id, competitor_id, title, url, image_url, current_price, currency,
	first_seen_at, last_seen_at, price_history, status`

// LoadActiveProducts retorna os produtos ativos de um concorrente
func (db *DB) LoadActiveProducts(ctx context.Context, competitorID int64) ([]models.CompetitorProduct, error) {
	var products []models.CompetitorProduct
	err := db.conn.SelectContext(ctx, &products,
		"SELECT "+productColumns+" FROM competitor_products WHERE competitor_id = ? AND status = ? ORDER BY id",
		competitorID, models.ProductActive,
	)
	if err != nil {
		return nil, fmt.Errorf("erro ao carregar produtos ativos: %w", err)
	}
	return products, nil
}

// GetProduct retorna um produto pelo ID
func (db *DB) GetProduct(ctx context.Context, id int64) (*models.CompetitorProduct, error) {
	var p models.CompetitorProduct
	err := db.conn.GetContext(ctx, &p, "SELECT "+productColumns+" FROM competitor_products WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// UpsertProduct insere um produto novo com histórico de um ponto. Se a URL já
// existe para o concorrente (produto removido que voltou), o registro é
// reativado e o preço é acrescentado ao histórico.
func (t *Tx) UpsertProduct(ctx context.Context, competitorID int64, rec models.ProductRecord, now time.Time) (int64, error) {
	history := models.PriceHistory{}
	var point any
	if rec.Price != nil {
		p := models.PricePoint{Date: now, Price: *rec.Price}
		history = append(history, p)
		b, err := json.Marshal(p)
		if err != nil {
			return 0, err
		}
		point = string(b)
	}

	var id int64
	err := t.tx.GetContext(ctx, &id, `
		INSERT INTO competitor_products
			(competitor_id, title, url, image_url, current_price, currency, first_seen_at, last_seen_at, price_history, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (competitor_id, url) DO UPDATE SET
			title = excluded.title,
			image_url = excluded.image_url,
			current_price = excluded.current_price,
			currency = excluded.currency,
			last_seen_at = excluded.last_seen_at,
			status = excluded.status,
			price_history = CASE
				WHEN ? IS NULL THEN competitor_products.price_history
				ELSE json_insert(competitor_products.price_history, '$[#]', json(?))
			END
		RETURNING id`,
		competitorID, rec.Title, rec.URL, rec.ImageURL, rec.Price, rec.Currency, now, now, history, models.ProductActive,
		point, point,
	)
	if err != nil {
		return 0, fmt.Errorf("erro ao gravar produto %s: %w", rec.URL, err)
	}
	return id, nil
}

// MarkRemoved marca o produto como removido. O registro é mantido.
func (t *Tx) MarkRemoved(ctx context.Context, productID int64, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE competitor_products SET status = ?, last_seen_at = ? WHERE id = ?",
		models.ProductRemoved, at, productID,
	)
	if err != nil {
		return fmt.Errorf("erro ao marcar produto %d como removido: %w", productID, err)
	}
	return checkAffected(res)
}

// UpdateMatched atualiza título, imagem, moeda e last-seen de um produto
// encontrado no crawl. O preço atual só muda por SetCurrentPrice.
func (t *Tx) UpdateMatched(ctx context.Context, productID int64, rec models.ProductRecord, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE competitor_products
		SET title = ?, image_url = ?, currency = ?, last_seen_at = ?
		WHERE id = ?`,
		rec.Title, rec.ImageURL, rec.Currency, at, productID,
	)
	if err != nil {
		return fmt.Errorf("erro ao atualizar produto %d: %w", productID, err)
	}
	return checkAffected(res)
}

// SetCurrentPrice grava o novo preço atual de um produto com mudança de preço
func (t *Tx) SetCurrentPrice(ctx context.Context, productID int64, price *float64) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE competitor_products SET current_price = ? WHERE id = ?",
		price, productID,
	)
	if err != nil {
		return fmt.Errorf("erro ao atualizar preço do produto %d: %w", productID, err)
	}
	return checkAffected(res)
}

// AppendPricePoint acrescenta um ponto ao fim do histórico de preços.
// Pontos anteriores nunca são reescritos.
func (t *Tx) AppendPricePoint(ctx context.Context, productID int64, point models.PricePoint) error {
	b, err := json.Marshal(point)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx,
		"UPDATE competitor_products SET price_history = json_insert(price_history, '$[#]', json(?)) WHERE id = ?",
		string(b), productID,
	)
	if err != nil {
		return fmt.Errorf("erro ao gravar histórico do produto %d: %w", productID, err)
	}
	return checkAffected(res)
}

// CountActiveProducts conta os produtos ativos do concorrente
func (t *Tx) CountActiveProducts(ctx context.Context, competitorID int64) (int, error) {
	var n int
	err := t.tx.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM competitor_products WHERE competitor_id = ? AND status = ?",
		competitorID, models.ProductActive,
	)
	if err != nil {
		return 0, fmt.Errorf("erro ao contar produtos: %w", err)
	}
	return n, nil
}
