package scraper

import (
	"strconv"
	"strings"
)

// ParsePrice converte um texto de preço em número, aceitando formatos como
// "R$ 1.234,56", "$1,234.56", "19,99" e "19.99". Retorna nil quando não há número.
//
// Se "." e "," aparecem juntos, o separador mais à direita é o decimal.
// Sem ".", a última "," é decimal quando seguida de exatamente dois dígitos no
// fim; nos outros casos "," separa milhares.
func ParsePrice(text string) *float64 {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	s := strings.TrimRight(b.String(), ".,")
	if s == "" {
		return nil
	}

	lastDot := strings.LastIndexByte(s, '.')
	lastComma := strings.LastIndexByte(s, ',')

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = removeAllButLast(s, ',')
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
			s = removeAllButLast(s, '.')
		}
	case lastComma >= 0:
		if len(s)-lastComma-1 == 2 {
			s = removeAllButLast(s, ',')
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Count(s, ".") > 1:
		// "1.234.567": pontos como separador de milhar
		s = strings.ReplaceAll(s, ".", "")
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &value
}

// removeAllButLast remove as ocorrências de sep exceto a última
func removeAllButLast(s string, sep byte) string {
	last := strings.LastIndexByte(s, sep)
	if last < 0 {
		return s
	}
	return strings.ReplaceAll(s[:last], string(sep), "") + s[last:]
}
