package scraper

import (
	"strings"

	"monitor-concorrentes/internal/diff"
	"monitor-concorrentes/internal/models"
)

const descriptionPreviewLength = 200

// ShopifyProduct é o registro bruto retornado por /products.json
type ShopifyProduct struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Handle   string `json:"handle"`
	BodyHTML string `json:"body_html"`
	Vendor   string `json:"vendor"`
	Images   []struct {
		Src string `json:"src"`
	} `json:"images"`
	Variants []struct {
		Title string `json:"title"`
		SKU   string `json:"sku"`
		Price string `json:"price"`
	} `json:"variants"`
}

// Normalize converte um registro bruto da loja para o formato canônico.
// Retorna nil se o registro não tem título.
func Normalize(raw ShopifyProduct, storeURL, currency string) *models.ProductRecord {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return nil
	}

	record := &models.ProductRecord{
		Title:       title,
		URL:         productURL(storeURL, raw.Handle),
		Currency:    currency,
		Description: truncate(StripHTML(raw.BodyHTML), descriptionPreviewLength),
	}

	if len(raw.Images) > 0 {
		record.ImageURL = raw.Images[0].Src
	}

	for _, v := range raw.Variants {
		record.Variants = append(record.Variants, models.Variant{
			Title: v.Title,
			SKU:   v.SKU,
			Price: ParsePrice(v.Price),
		})
	}
	if len(record.Variants) > 0 {
		record.Price = record.Variants[0].Price
	}

	return record
}

// productURL monta a URL canônica do produto a partir da loja e do handle
func productURL(storeURL, handle string) string {
	base := strings.TrimRight(diff.NormalizeURL(storeURL), "/")
	return diff.NormalizeURL(base + "/products/" + strings.Trim(handle, "/"))
}
