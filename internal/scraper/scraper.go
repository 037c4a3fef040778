// Package scraper descobre os produtos de uma loja concorrente.
//
// O Crawler nunca devolve erro para quem chama: falhas de rede, timeout e
// parse viram um resultado parcial ou vazio com Complete=false.
package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"monitor-concorrentes/internal/models"
)

const (
	// DefaultMaxPages limita a paginação da API de catálogo
	DefaultMaxPages = 50

	defaultHTTPTimeout = 30 * time.Second
	defaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var (
	// ErrPageLimit indica que o crawl parou no limite de páginas
	ErrPageLimit = errors.New("limite de páginas atingido")
	// ErrNoStrategy indica que nenhuma estratégia aceita a URL
	ErrNoStrategy = errors.New("nenhuma estratégia para a URL")
	// ErrNotProductPage indica que a página visitada não descreve um produto
	ErrNotProductPage = errors.New("página não é de produto")
)

// CrawlResult é o resultado, possivelmente parcial, de um crawl
type CrawlResult struct {
	Products []models.ProductRecord
	Pages    int
	// Complete é false quando o crawl falhou ou foi interrompido; nesse caso a
	// ausência de um produto não significa que ele saiu do catálogo.
	Complete bool
	Strategy string
	Err      error
}

// Strategy define uma forma de descobrir produtos de uma loja
type Strategy interface {
	Name() string
	CanHandle(url string) bool
	Crawl(ctx context.Context, url string) CrawlResult
}

// Registry mantém as estratégias disponíveis, na ordem em que são tentadas
type Registry struct {
	strategies []Strategy
}

// NewRegistry cria um novo registro de estratégias
func NewRegistry(strategies ...Strategy) *Registry {
	return &Registry{strategies: strategies}
}

// FindStrategies retorna as estratégias que aceitam a URL, em ordem
func (r *Registry) FindStrategies(url string) []Strategy {
	var found []Strategy
	for _, s := range r.strategies {
		if s.CanHandle(url) {
			found = append(found, s)
		}
	}
	return found
}

// Options configura o Crawler
type Options struct {
	MaxPages    int
	HTTPTimeout time.Duration
	UserAgent   string
	Currency    string
}

// Crawler executa as estratégias em ordem, caindo para a próxima quando uma falha
type Crawler struct {
	registry *Registry
	logger   *zap.Logger
}

// New cria um Crawler com as estratégias padrão: API de catálogo e página de produto
func New(opts Options, logger *zap.Logger) *Crawler {
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = defaultHTTPTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	client := &http.Client{Timeout: opts.HTTPTimeout}
	registry := NewRegistry(
		NewCatalogStrategy(client, opts, logger),
		NewDetailStrategy(opts, logger),
	)
	return NewCrawler(registry, logger)
}

// NewCrawler cria um Crawler a partir de um registro
func NewCrawler(registry *Registry, logger *zap.Logger) *Crawler {
	return &Crawler{registry: registry, logger: logger}
}

// Crawl descobre os produtos da loja. Nunca retorna erro: falhas ficam em
// CrawlResult.Err e tornam o resultado incompleto.
func (c *Crawler) Crawl(ctx context.Context, storeURL string) CrawlResult {
	log := c.logger.With(zap.String("url", storeURL))

	strategies := c.registry.FindStrategies(storeURL)
	if len(strategies) == 0 {
		log.Warn("Nenhuma estratégia de crawl para a URL")
		return CrawlResult{Err: ErrNoStrategy}
	}

	var last CrawlResult
	for i, s := range strategies {
		result := s.Crawl(ctx, storeURL)
		result.Strategy = s.Name()

		if result.Err != nil {
			log.Warn("Falha no crawl",
				zap.String("strategy", s.Name()),
				zap.Int("pages", result.Pages),
				zap.Int("products", len(result.Products)),
				zap.Error(result.Err),
			)
		}

		if result.Complete || len(result.Products) > 0 {
			// resultado de uma estratégia de fallback não representa o catálogo inteiro
			if i > 0 {
				result.Complete = false
			}
			return result
		}
		last = result

		if ctx.Err() != nil {
			break
		}
	}

	last.Complete = false
	return last
}

// isProductURL indica se a URL aponta para um único produto (/products/<handle>)
func isProductURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := strings.Trim(u.Path, "/")
	idx := strings.Index(path, "products/")
	if idx < 0 || (idx > 0 && path[idx-1] != '/') {
		return false
	}
	return len(path) > idx+len("products/")
}

// isHTTPURL indica se a URL é http(s) com host
func isHTTPURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// baseURL remove query, fragmento e barra final preservando maiúsculas
func baseURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return strings.TrimRight(rawURL, "/")
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String()
}
