package diff

import "math"

// PriceEpsilon é a menor diferença absoluta considerada mudança de preço
const PriceEpsilon = 0.01

// PricesDiffer compara dois preços opcionais ignorando ruído de ponto flutuante
func PricesDiffer(oldPrice, newPrice *float64) bool {
	if oldPrice == nil && newPrice == nil {
		return false
	}
	if oldPrice == nil || newPrice == nil {
		return true
	}
	// margem para 29.99 vs 30.00, cuja diferença em float64 fica abaixo de 0.01
	return math.Abs(*oldPrice-*newPrice) >= PriceEpsilon-1e-9
}

// CalculateChangePercent retorna a variação percentual de oldPrice para newPrice.
// Retorna nil quando não há preço anterior ou ele é zero.
func CalculateChangePercent(oldPrice, newPrice *float64) *float64 {
	if oldPrice == nil || *oldPrice == 0 || newPrice == nil {
		return nil
	}
	pct := (*newPrice - *oldPrice) / *oldPrice * 100
	return &pct
}
