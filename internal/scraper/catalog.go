package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

const (
	catalogPageSize    = 250
	maxCatalogBodySize = 10 << 20
)

// CatalogStrategy percorre a API JSON paginada de catálogo (/products.json)
type CatalogStrategy struct {
	client    *http.Client
	userAgent string
	currency  string
	maxPages  int
	logger    *zap.Logger
}

// NewCatalogStrategy cria a estratégia de API de catálogo
func NewCatalogStrategy(client *http.Client, opts Options, logger *zap.Logger) *CatalogStrategy {
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &CatalogStrategy{
		client:    client,
		userAgent: opts.UserAgent,
		currency:  opts.Currency,
		maxPages:  maxPages,
		logger:    logger,
	}
}

// Name implementa Strategy
func (s *CatalogStrategy) Name() string { return "catalog_api" }

// CanHandle aceita URLs de loja, não de produto individual
func (s *CatalogStrategy) CanHandle(url string) bool {
	return isHTTPURL(url) && !isProductURL(url)
}

// Crawl pede página após página até receber uma página vazia ou atingir o limite
func (s *CatalogStrategy) Crawl(ctx context.Context, storeURL string) CrawlResult {
	base := baseURL(storeURL)
	var result CrawlResult

	for page := 1; page <= s.maxPages; page++ {
		raws, err := s.fetchPage(ctx, base, page)
		if err != nil {
			result.Err = fmt.Errorf("página %d: %w", page, err)
			return result
		}
		result.Pages = page

		if len(raws) == 0 {
			result.Complete = true
			return result
		}

		for _, raw := range raws {
			record := Normalize(raw, base, s.currency)
			if record == nil {
				continue
			}
			result.Products = append(result.Products, *record)
		}

		s.logger.Debug("Página do catálogo processada",
			zap.String("url", base),
			zap.Int("page", page),
			zap.Int("products", len(raws)),
		)
	}

	result.Err = ErrPageLimit
	return result
}

func (s *CatalogStrategy) fetchPage(ctx context.Context, base string, page int) ([]ShopifyProduct, error) {
	pageURL := fmt.Sprintf("%s/products.json?limit=%d&page=%d", base, catalogPageSize, page)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status code: %d", resp.StatusCode)
	}

	var payload struct {
		Products []ShopifyProduct `json:"products"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxCatalogBodySize)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("erro ao decodificar catálogo: %w", err)
	}
	return payload.Products, nil
}

var _ Strategy = (*CatalogStrategy)(nil)
