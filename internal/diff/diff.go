// Package diff reconcilia o catálogo salvo de um concorrente com o resultado de um crawl.
// Não faz I/O e não guarda estado, podendo ser chamado concorrentemente.
package diff

import "monitor-concorrentes/internal/models"

// Options ajusta o cálculo do diff
type Options struct {
	// SkipRemovals não classifica como removidos os produtos ausentes do crawl.
	// Usado quando o crawl não terminou.
	SkipRemovals bool
}

// ComputeCatalogDiff calcula o diff entre os produtos ativos salvos e os registros do crawl
func ComputeCatalogDiff(stored []models.CompetitorProduct, crawled []models.ProductRecord) models.CatalogDiff {
	return ComputeCatalogDiffWithOptions(stored, crawled, Options{})
}

// ComputeCatalogDiffWithOptions é ComputeCatalogDiff com opções.
//
// Registros repetidos no mesmo crawl (mesma chave canônica) são ignorados
// depois da primeira ocorrência.
func ComputeCatalogDiffWithOptions(stored []models.CompetitorProduct, crawled []models.ProductRecord, opts Options) models.CatalogDiff {
	lookup := make(map[string]models.CompetitorProduct, len(stored))
	for _, p := range stored {
		key := NormalizeURL(p.URL)
		if _, exists := lookup[key]; !exists {
			lookup[key] = p
		}
	}

	var result models.CatalogDiff
	seen := make(map[string]struct{}, len(crawled))

	for _, record := range crawled {
		key := NormalizeURL(record.URL)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		product, found := lookup[key]
		if !found {
			result.New = append(result.New, record)
			continue
		}
		delete(lookup, key)

		result.Matched = append(result.Matched, models.Match{Product: product, Record: record})

		if PricesDiffer(product.Price, record.Price) {
			result.PriceChanges = append(result.PriceChanges, models.PriceChange{
				Product:       product,
				Record:        record,
				OldPrice:      product.Price,
				NewPrice:      record.Price,
				ChangePercent: CalculateChangePercent(product.Price, record.Price),
			})
		}
		if product.Title != record.Title {
			result.TitleChanges = append(result.TitleChanges, models.TitleChange{
				Product:  product,
				Record:   record,
				OldTitle: product.Title,
				NewTitle: record.Title,
			})
		}
	}

	if opts.SkipRemovals {
		return result
	}

	// ordem dos produtos salvos, para um resultado determinístico
	for _, p := range stored {
		key := NormalizeURL(p.URL)
		if remaining, ok := lookup[key]; ok && remaining.ID == p.ID {
			result.Removed = append(result.Removed, p)
			delete(lookup, key)
		}
	}

	return result
}
