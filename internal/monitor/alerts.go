package monitor

import (
	"math"

	"monitor-concorrentes/internal/models"
)

// Limites de variação de preço (em %) para a severidade do alerta
const (
	highSeverityPercent   = 20.0
	mediumSeverityPercent = 10.0
)

// BuildAlerts gera um alerta por mudança relevante do diff: produtos novos,
// variações de preço a partir de threshold por cento e remoções.
// newIDs são os IDs gravados para d.New, na mesma ordem.
func BuildAlerts(competitorID int64, d models.CatalogDiff, newIDs []int64, threshold float64) []models.Alert {
	var alerts []models.Alert

	for i, rec := range d.New {
		var id int64
		if i < len(newIDs) {
			id = newIDs[i]
		}
		data := map[string]any{
			"title": rec.Title,
			"url":   rec.URL,
		}
		if rec.Price != nil {
			data["price"] = *rec.Price
			data["currency"] = rec.Currency
		}
		alerts = append(alerts, models.Alert{
			CompetitorID: competitorID,
			ProductID:    id,
			Type:         models.AlertNewProduct,
			Severity:     models.SeverityLow,
			Data:         data,
		})
	}

	for _, pc := range d.PriceChanges {
		// sem percentual não há como medir a variação (preço antigo ou novo ausente)
		if pc.ChangePercent == nil {
			continue
		}
		pct := *pc.ChangePercent
		if math.Abs(pct) < threshold {
			continue
		}
		alertType := models.AlertPriceRise
		if pct < 0 {
			alertType = models.AlertPriceDrop
		}
		alerts = append(alerts, models.Alert{
			CompetitorID: competitorID,
			ProductID:    pc.Product.ID,
			Type:         alertType,
			Severity:     priceSeverity(pct),
			Data: map[string]any{
				"title":          pc.Record.Title,
				"url":            pc.Product.URL,
				"old_price":      *pc.OldPrice,
				"new_price":      *pc.NewPrice,
				"change_percent": pct,
				"currency":       pc.Record.Currency,
			},
		})
	}

	for _, p := range d.Removed {
		alerts = append(alerts, models.Alert{
			CompetitorID: competitorID,
			ProductID:    p.ID,
			Type:         models.AlertProductRemoved,
			Severity:     models.SeverityMedium,
			Data: map[string]any{
				"title": p.Title,
				"url":   p.URL,
			},
		})
	}

	return alerts
}

func priceSeverity(pct float64) string {
	switch abs := math.Abs(pct); {
	case abs >= highSeverityPercent:
		return models.SeverityHigh
	case abs >= mediumSeverityPercent:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
