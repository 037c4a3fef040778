package models

// Tipos de alerta
const (
	AlertNewProduct     = "new_product"
	AlertPriceDrop      = "price_drop"
	AlertPriceRise      = "price_rise"
	AlertProductRemoved = "product_removed"
)

// Severidade
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Alert é um evento de mudança relevante enviado para a notificação
type Alert struct {
	CompetitorID int64
	ProductID    int64
	Type         string
	Severity     string
	Data         map[string]any
}
