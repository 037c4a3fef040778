package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"monitor-concorrentes/internal/diff"
	"monitor-concorrentes/internal/models"
)

var (
	offersPriceRe = regexp.MustCompile(`"offers"[^}]*"price"\s*:\s*"?([0-9.,]+)"?`)
	anyPriceRe    = regexp.MustCompile(`"price"\s*:\s*"?([0-9.,]+)"?`)
	currencyRe    = regexp.MustCompile(`"priceCurrency"\s*:\s*"([A-Za-z]{3})"`)
	productTypeRe = regexp.MustCompile(`"@type"\s*:\s*"Product"`)
)

// DetailStrategy extrai um único produto dos metadados da página (Open Graph)
type DetailStrategy struct {
	userAgent string
	timeout   time.Duration
	currency  string
	logger    *zap.Logger
}

// NewDetailStrategy cria a estratégia de página de produto
func NewDetailStrategy(opts Options, logger *zap.Logger) *DetailStrategy {
	timeout := opts.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &DetailStrategy{
		userAgent: opts.UserAgent,
		timeout:   timeout,
		currency:  opts.Currency,
		logger:    logger,
	}
}

// Name implementa Strategy
func (s *DetailStrategy) Name() string { return "detail_page" }

// CanHandle aceita qualquer URL http(s)
func (s *DetailStrategy) CanHandle(url string) bool {
	return isHTTPURL(url)
}

// Crawl busca a página e monta o produto a partir das meta tags.
// Uma página sem título gera zero produtos.
func (s *DetailStrategy) Crawl(ctx context.Context, pageURL string) CrawlResult {
	var result CrawlResult

	opts := []colly.CollectorOption{
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
	}
	if s.userAgent != "" {
		opts = append(opts, colly.UserAgent(s.userAgent))
	}
	c := colly.NewCollector(opts...)
	c.SetRequestTimeout(s.timeout)

	record := models.ProductRecord{URL: diff.NormalizeURL(pageURL)}
	parsed, isProduct := false, false

	c.OnHTML("html", func(e *colly.HTMLElement) {
		parsed = true
		isProduct = extractPageMeta(e.DOM, &record)
	})

	var fetchErr error
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = fmt.Errorf("status code %d: %w", r.StatusCode, err)
			return
		}
		fetchErr = err
	})

	if err := c.Visit(pageURL); err != nil && fetchErr == nil {
		fetchErr = err
	}
	result.Pages = 1

	switch {
	case fetchErr != nil:
		result.Err = fetchErr
	case !parsed:
		result.Err = fmt.Errorf("resposta sem HTML")
	case strings.TrimSpace(record.Title) == "":
		result.Err = fmt.Errorf("título não encontrado na página")
	case !isProduct && !isProductURL(pageURL):
		// página da loja (home, coleção) sem metadados de produto
		result.Err = ErrNotProductPage
	default:
		if record.Currency == "" {
			record.Currency = s.currency
		}
		result.Products = []models.ProductRecord{record}
		result.Complete = true
	}
	return result
}

// extractPageMeta preenche título, preço, moeda e imagem a partir dos metadados.
// Retorna true se a página se declara um produto (og:type, preço ou JSON-LD Product).
func extractPageMeta(doc *goquery.Selection, record *models.ProductRecord) bool {
	record.Title = firstContent(doc,
		"meta[property='og:title']",
		"meta[name='twitter:title']",
	)
	if record.Title == "" {
		record.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	record.ImageURL = firstContent(doc,
		"meta[property='og:image']",
		"meta[property='og:image:secure_url']",
		"meta[name='twitter:image']",
	)

	priceText := firstContent(doc,
		"meta[property='og:price:amount']",
		"meta[property='product:price:amount']",
		"[itemprop='price']",
	)
	record.Currency = strings.ToUpper(firstContent(doc,
		"meta[property='og:price:currency']",
		"meta[property='product:price:currency']",
		"[itemprop='priceCurrency']",
	))

	// JSON-LD, priorizando o preço em "offers"
	if priceText == "" || record.Currency == "" {
		doc.Find("script[type='application/ld+json']").EachWithBreak(func(i int, s *goquery.Selection) bool {
			jsonText := s.Text()
			if priceText == "" {
				if m := offersPriceRe.FindStringSubmatch(jsonText); len(m) > 1 {
					priceText = m[1]
				} else if m := anyPriceRe.FindStringSubmatch(jsonText); len(m) > 1 {
					priceText = m[1]
				}
			}
			if record.Currency == "" {
				if m := currencyRe.FindStringSubmatch(jsonText); len(m) > 1 {
					record.Currency = strings.ToUpper(m[1])
				}
			}
			return priceText == "" || record.Currency == ""
		})
	}

	record.Price = ParsePrice(priceText)

	isProduct := priceText != "" ||
		strings.HasPrefix(strings.ToLower(firstContent(doc, "meta[property='og:type']")), "product")
	if !isProduct {
		doc.Find("script[type='application/ld+json']").EachWithBreak(func(i int, s *goquery.Selection) bool {
			isProduct = productTypeRe.MatchString(s.Text())
			return !isProduct
		})
	}

	if desc := firstContent(doc, "meta[property='og:description']", "meta[name='description']"); desc != "" {
		record.Description = truncate(StripHTML(desc), descriptionPreviewLength)
	}
	return isProduct
}

// firstContent retorna o primeiro valor não vazio entre os seletores
// (atributo content, depois o texto do elemento)
func firstContent(doc *goquery.Selection, selectors ...string) string {
	for _, selector := range selectors {
		var value string
		doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
			value = strings.TrimSpace(s.AttrOr("content", ""))
			if value == "" {
				value = strings.TrimSpace(s.Text())
			}
			return value == ""
		})
		if value != "" {
			return value
		}
	}
	return ""
}

var _ Strategy = (*DetailStrategy)(nil)
