package models

import "time"

// Status de um concorrente
const (
	CompetitorActive = "active"
	CompetitorPaused = "paused"
	CompetitorError  = "error"
)

// Plataformas conhecidas
const (
	PlatformShopify = "shopify"
	PlatformCustom  = "custom"
)

// Competitor representa uma loja concorrente monitorada
type Competitor struct {
	ID            int64      `db:"id"`
	UserID        int64      `db:"user_id"`
	Name          string     `db:"name"`
	URL           string     `db:"url"`
	Platform      string     `db:"platform"`
	Status        string     `db:"status"`
	LastScannedAt *time.Time `db:"last_scanned_at"`
	ProductCount  int        `db:"product_count"`
	CreatedAt     time.Time  `db:"created_at"`
}
