package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monitor-concorrentes/internal/models"
)

func pct(v float64) *float64 { return &v }

func priceChange(id int64, oldPrice, newPrice float64) models.PriceChange {
	change := (newPrice - oldPrice) / oldPrice * 100
	return models.PriceChange{
		Product:       models.CompetitorProduct{ID: id, URL: "https://x/products/p"},
		Record:        models.ProductRecord{Title: "P"},
		OldPrice:      pct(oldPrice),
		NewPrice:      pct(newPrice),
		ChangePercent: &change,
	}
}

func TestBuildAlertsThreshold(t *testing.T) {
	d := models.CatalogDiff{
		PriceChanges: []models.PriceChange{
			priceChange(1, 100, 97), // -3%, abaixo do limite
			priceChange(2, 100, 94), // -6%
			priceChange(3, 100, 115),
			priceChange(4, 100, 50),
		},
	}

	alerts := BuildAlerts(7, d, nil, 5)

	require.Len(t, alerts, 3)
	assert.Equal(t, int64(2), alerts[0].ProductID)
	assert.Equal(t, models.AlertPriceDrop, alerts[0].Type)
	assert.Equal(t, models.SeverityLow, alerts[0].Severity)
	assert.Equal(t, models.AlertPriceRise, alerts[1].Type)
	assert.Equal(t, models.SeverityMedium, alerts[1].Severity)
	assert.Equal(t, models.SeverityHigh, alerts[2].Severity)
	for _, a := range alerts {
		assert.Equal(t, int64(7), a.CompetitorID)
	}
}

func TestBuildAlertsSkipsChangesWithoutPercent(t *testing.T) {
	d := models.CatalogDiff{
		PriceChanges: []models.PriceChange{
			{Product: models.CompetitorProduct{ID: 1}, NewPrice: pct(10)},
			{Product: models.CompetitorProduct{ID: 2}, OldPrice: pct(10)},
		},
	}

	assert.Empty(t, BuildAlerts(1, d, nil, 0))
}

func TestBuildAlertsNewAndRemoved(t *testing.T) {
	d := models.CatalogDiff{
		New:     []models.ProductRecord{{Title: "Novo", URL: "https://x/products/novo", Price: pct(9.9), Currency: "BRL"}},
		Removed: []models.CompetitorProduct{{ID: 5, Title: "Velho", URL: "https://x/products/velho"}},
	}

	alerts := BuildAlerts(1, d, []int64{42}, 5)

	require.Len(t, alerts, 2)
	assert.Equal(t, models.AlertNewProduct, alerts[0].Type)
	assert.Equal(t, int64(42), alerts[0].ProductID)
	assert.Equal(t, 9.9, alerts[0].Data["price"])
	assert.Equal(t, models.AlertProductRemoved, alerts[1].Type)
	assert.Equal(t, models.SeverityMedium, alerts[1].Severity)
}
