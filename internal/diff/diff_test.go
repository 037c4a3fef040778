package diff_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monitor-concorrentes/internal/diff"
	"monitor-concorrentes/internal/models"
)

func price(v float64) *float64 { return &v }

func storedProduct(id int64, url, title string, p *float64) models.CompetitorProduct {
	return models.CompetitorProduct{
		ID:           id,
		CompetitorID: 1,
		Title:        title,
		URL:          url,
		Price:        p,
		Status:       models.ProductActive,
	}
}

func record(url, title string, p *float64) models.ProductRecord {
	return models.ProductRecord{Title: title, URL: url, Price: p}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://Store.com/Products/Widget/?ref=1#reviews", "https://store.com/products/widget"},
		{"https://store.com/products/widget", "https://store.com/products/widget"},
		{"HTTP://STORE.COM/", "http://store.com"},
		{"https://store.com/a#frag?notquery", "https://store.com/a"},
		{"https://store.com/a///", "https://store.com/a"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, diff.NormalizeURL(tt.in))
		})
	}
}

func TestNormalizeURL_Idempotent(t *testing.T) {
	inputs := []string{
		"https://Store.com/Products/Widget/?ref=1#reviews",
		"http://EXAMPLE.org/path/to/Item/",
		"  https://shop.example.com/collections/all?page=2  ",
		"store.com/products/x/",
		"https://store.com/?#",
		"/",
		"",
	}
	for _, in := range inputs {
		once := diff.NormalizeURL(in)
		assert.Equal(t, once, diff.NormalizeURL(once), "input %q", in)
	}
}

func TestPricesDiffer(t *testing.T) {
	assert.False(t, diff.PricesDiffer(nil, nil))
	for _, x := range []float64{0, 0.01, 29.99, 1234.5} {
		assert.False(t, diff.PricesDiffer(price(x), price(x)), "price %v", x)
	}
	assert.True(t, diff.PricesDiffer(nil, price(29.99)))
	assert.True(t, diff.PricesDiffer(price(29.99), nil))
	assert.False(t, diff.PricesDiffer(price(29.99), price(29.991)))
	assert.True(t, diff.PricesDiffer(price(29.99), price(30.00)))
	assert.True(t, diff.PricesDiffer(price(29.99), price(24.99)))
}

func TestCalculateChangePercent(t *testing.T) {
	got := diff.CalculateChangePercent(price(100), price(120))
	require.NotNil(t, got)
	assert.InDelta(t, 20.0, *got, 1e-9)

	got = diff.CalculateChangePercent(price(100), price(80))
	require.NotNil(t, got)
	assert.InDelta(t, -20.0, *got, 1e-9)

	assert.Nil(t, diff.CalculateChangePercent(price(0), price(29.99)))
	assert.Nil(t, diff.CalculateChangePercent(nil, price(29.99)))
}

func TestComputeCatalogDiff_AllNew(t *testing.T) {
	var crawled []models.ProductRecord
	for i := range 5 {
		crawled = append(crawled, record(fmt.Sprintf("https://store.com/products/p%d", i), "P", price(10)))
	}

	d := diff.ComputeCatalogDiff(nil, crawled)

	assert.Len(t, d.New, 5)
	assert.Empty(t, d.Removed)
	assert.Empty(t, d.PriceChanges)
	assert.Empty(t, d.TitleChanges)
}

func TestComputeCatalogDiff_EmptyCrawlRemovesEverything(t *testing.T) {
	stored := []models.CompetitorProduct{
		storedProduct(1, "https://store.com/products/a", "A", price(10)),
		storedProduct(2, "https://store.com/products/b", "B", price(20)),
		storedProduct(3, "https://store.com/products/c", "C", nil),
	}

	d := diff.ComputeCatalogDiff(stored, nil)

	assert.Empty(t, d.New)
	require.Len(t, d.Removed, 3)
	assert.Equal(t, int64(1), d.Removed[0].ID)
	assert.Equal(t, int64(3), d.Removed[2].ID)
}

func TestComputeCatalogDiff_SkipRemovals(t *testing.T) {
	stored := []models.CompetitorProduct{
		storedProduct(1, "https://store.com/products/a", "A", price(10)),
		storedProduct(2, "https://store.com/products/b", "B", price(20)),
	}
	crawled := []models.ProductRecord{
		record("https://store.com/products/a", "A", price(12)),
		record("https://store.com/products/new", "New", price(5)),
	}

	d := diff.ComputeCatalogDiffWithOptions(stored, crawled, diff.Options{SkipRemovals: true})

	assert.Empty(t, d.Removed)
	assert.Len(t, d.New, 1)
	assert.Len(t, d.PriceChanges, 1)
}

func TestComputeCatalogDiff_Unchanged(t *testing.T) {
	stored := []models.CompetitorProduct{
		storedProduct(1, "https://store.com/products/a", "A", price(10)),
		storedProduct(2, "https://store.com/products/b", "B", nil),
	}
	crawled := []models.ProductRecord{
		record("https://store.com/products/b", "B", nil),
		record("https://store.com/products/a", "A", price(10)),
	}

	d := diff.ComputeCatalogDiff(stored, crawled)

	assert.True(t, d.Empty())
	assert.Len(t, d.Matched, 2)
}

func TestComputeCatalogDiff_PriceChange(t *testing.T) {
	stored := []models.CompetitorProduct{
		storedProduct(7, "https://store.com/products/widget", "Widget", price(29.99)),
	}
	crawled := []models.ProductRecord{
		record("https://Store.com/Products/Widget/?ref=1#reviews", "Widget", price(24.99)),
	}

	d := diff.ComputeCatalogDiff(stored, crawled)

	assert.Empty(t, d.New)
	assert.Empty(t, d.Removed)
	require.Len(t, d.PriceChanges, 1)
	change := d.PriceChanges[0]
	assert.Equal(t, int64(7), change.Product.ID)
	assert.InDelta(t, 29.99, *change.OldPrice, 1e-9)
	assert.InDelta(t, 24.99, *change.NewPrice, 1e-9)
	require.NotNil(t, change.ChangePercent)
	assert.InDelta(t, -16.67, *change.ChangePercent, 0.01)
}

func TestComputeCatalogDiff_TitleChange(t *testing.T) {
	stored := []models.CompetitorProduct{
		storedProduct(1, "https://store.com/products/a", "Old title", price(10)),
	}
	crawled := []models.ProductRecord{
		record("https://store.com/products/a", "New title", price(10)),
	}

	d := diff.ComputeCatalogDiff(stored, crawled)

	assert.Empty(t, d.PriceChanges)
	require.Len(t, d.TitleChanges, 1)
	assert.Equal(t, "Old title", d.TitleChanges[0].OldTitle)
	assert.Equal(t, "New title", d.TitleChanges[0].NewTitle)
}

func TestComputeCatalogDiff_DuplicateKeysFirstWins(t *testing.T) {
	stored := []models.CompetitorProduct{
		storedProduct(1, "https://store.com/products/a", "A", price(10)),
	}
	crawled := []models.ProductRecord{
		record("https://store.com/products/a", "A", price(10)),
		record("https://store.com/products/A/", "A dup", price(99)),
		record("https://store.com/products/n", "N1", price(1)),
		record("https://store.com/products/n?variant=2", "N2", price(2)),
	}

	d := diff.ComputeCatalogDiff(stored, crawled)

	assert.Empty(t, d.PriceChanges)
	assert.Empty(t, d.TitleChanges)
	require.Len(t, d.New, 1)
	assert.Equal(t, "N1", d.New[0].Title)
	assert.Empty(t, d.Removed)
}

func TestComputeCatalogDiff_NullPrices(t *testing.T) {
	stored := []models.CompetitorProduct{
		storedProduct(1, "https://store.com/products/a", "A", nil),
		storedProduct(2, "https://store.com/products/b", "B", price(5)),
	}
	crawled := []models.ProductRecord{
		record("https://store.com/products/a", "A", price(29.99)),
		record("https://store.com/products/b", "B", nil),
	}

	d := diff.ComputeCatalogDiff(stored, crawled)

	require.Len(t, d.PriceChanges, 2)
	assert.Nil(t, d.PriceChanges[0].ChangePercent)
	assert.Nil(t, d.PriceChanges[1].ChangePercent)
}
