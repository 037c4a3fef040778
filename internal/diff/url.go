package diff

import (
	"strings"
	"unicode"
)

// NormalizeURL reduz uma URL à chave canônica usada para identificar um produto
// entre scans: minúsculas, sem query string, sem fragmento e sem barra final.
// NormalizeURL(NormalizeURL(u)) == NormalizeURL(u).
func NormalizeURL(rawURL string) string {
	u := strings.TrimSpace(rawURL)
	if i := strings.IndexByte(u, '#'); i >= 0 {
		u = u[:i]
	}
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	u = strings.TrimRightFunc(u, func(r rune) bool {
		return r == '/' || unicode.IsSpace(r)
	})
	return strings.ToLower(u)
}
