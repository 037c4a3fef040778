package models

// PriceChange é uma mudança de preço detectada entre o produto salvo e o crawl
type PriceChange struct {
	Product       CompetitorProduct
	Record        ProductRecord
	OldPrice      *float64
	NewPrice      *float64
	ChangePercent *float64
}

// TitleChange é uma mudança de título
type TitleChange struct {
	Product  CompetitorProduct
	Record   ProductRecord
	OldTitle string
	NewTitle string
}

// Match liga um produto salvo ao registro correspondente do crawl
type Match struct {
	Product CompetitorProduct
	Record  ProductRecord
}

// CatalogDiff contém as diferenças entre o catálogo salvo e o crawl atual.
// Não é persistido.
type CatalogDiff struct {
	New          []ProductRecord
	Removed      []CompetitorProduct
	PriceChanges []PriceChange
	TitleChanges []TitleChange
	Matched      []Match
}

// Empty indica que não há nenhuma diferença
func (d CatalogDiff) Empty() bool {
	return len(d.New) == 0 && len(d.Removed) == 0 && len(d.PriceChanges) == 0 && len(d.TitleChanges) == 0
}
