package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// StripHTML remove as tags e devolve o texto legível, com espaços colapsados.
// Usado apenas para prévias de descrição.
func StripHTML(text string) string {
	if !strings.ContainsAny(text, "<&") {
		return collapseSpaces(text)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return collapseSpaces(text)
	}
	doc.Find("script, style").Remove()

	// quebras de bloco viram espaço para não colar palavras de parágrafos diferentes
	doc.Find("br, p, div, li, h1, h2, h3, h4, h5, h6, tr, td").Each(func(i int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			n.AppendChild(&html.Node{Type: html.TextNode, Data: " "})
		}
	})

	return collapseSpaces(doc.Text())
}

func collapseSpaces(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// truncate corta o texto em max runas
func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}
