package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Status do ciclo de vida de um produto monitorado
const (
	ProductActive  = "active"
	ProductRemoved = "removed"
)

// CompetitorProduct representa um produto do catálogo de um concorrente
type CompetitorProduct struct {
	ID           int64        `db:"id"`
	CompetitorID int64        `db:"competitor_id"`
	Title        string       `db:"title"`
	URL          string       `db:"url"` // URL canônica, chave de identidade dentro do concorrente
	ImageURL     string       `db:"image_url"`
	Price        *float64     `db:"current_price"`
	Currency     string       `db:"currency"`
	FirstSeenAt  time.Time    `db:"first_seen_at"`
	LastSeenAt   time.Time    `db:"last_seen_at"`
	PriceHistory PriceHistory `db:"price_history"`
	Status       string       `db:"status"`
}

// PricePoint é um ponto do histórico de preços
type PricePoint struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// PriceHistory é o histórico de preços, somente acrescentado e em ordem cronológica.
// Persistido como um array JSON.
type PriceHistory []PricePoint

// Value implementa driver.Valuer
func (h PriceHistory) Value() (driver.Value, error) {
	if h == nil {
		return "[]", nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implementa sql.Scanner
func (h *PriceHistory) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*h = PriceHistory{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("price_history: tipo não suportado %T", src)
	}
	if len(raw) == 0 {
		*h = PriceHistory{}
		return nil
	}
	return json.Unmarshal(raw, h)
}

// Last retorna o ponto mais recente do histórico
func (h PriceHistory) Last() (PricePoint, bool) {
	if len(h) == 0 {
		return PricePoint{}, false
	}
	return h[len(h)-1], true
}

// Variant é uma variante de produto retornada pela loja
type Variant struct {
	Title string
	SKU   string
	Price *float64
}

// ProductRecord é o formato canônico de um produto encontrado no crawl
type ProductRecord struct {
	Title       string
	URL         string
	Price       *float64
	Currency    string
	ImageURL    string
	Description string // Prévia em texto puro
	Variants    []Variant
}
