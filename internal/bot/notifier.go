package bot

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"monitor-concorrentes/internal/models"
)

const defaultQueueSize = 256

// Notifier entrega alertas de scans num chat do Telegram.
// Notify só enfileira; o envio acontece em Run.
type Notifier struct {
	sender Sender
	chatID int64
	queue  chan models.Alert
	logger *zap.Logger
}

// NewNotifier cria um Notifier. queueSize <= 0 usa o tamanho padrão.
func NewNotifier(sender Sender, chatID int64, queueSize int, logger *zap.Logger) *Notifier {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Notifier{
		sender: sender,
		chatID: chatID,
		queue:  make(chan models.Alert, queueSize),
		logger: logger,
	}
}

// Notify enfileira os alertas sem bloquear. Com a fila cheia o alerta é descartado.
func (n *Notifier) Notify(_ context.Context, alerts []models.Alert) {
	for _, a := range alerts {
		select {
		case n.queue <- a:
		default:
			n.logger.Warn("Fila de alertas cheia, alerta descartado",
				zap.Int64("competitor_id", a.CompetitorID),
				zap.Int64("product_id", a.ProductID),
				zap.String("type", a.Type),
			)
		}
	}
}

// Run envia os alertas enfileirados até ctx ser cancelado
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-n.queue:
			if err := sendHTML(n.sender, n.chatID, formatAlert(a), n.logger); err != nil {
				n.logger.Error("Erro ao enviar alerta",
					zap.Int64("competitor_id", a.CompetitorID),
					zap.String("type", a.Type),
					zap.Error(err),
				)
			}
		}
	}
}

func formatAlert(a models.Alert) string {
	title := escapeHTML(stringField(a.Data, "title"))
	url := stringField(a.Data, "url")
	currency := stringField(a.Data, "currency")

	var b strings.Builder
	switch a.Type {
	case models.AlertNewProduct:
		b.WriteString("🆕 <b>Novo produto no concorrente</b>\n\n")
		fmt.Fprintf(&b, "📦 %s\n", title)
		if p, ok := a.Data["price"].(float64); ok {
			fmt.Fprintf(&b, "💰 Preço: %s\n", formatPrice(p, currency))
		}
	case models.AlertPriceDrop, models.AlertPriceRise:
		icon, label := "📉", "Preço caiu"
		if a.Type == models.AlertPriceRise {
			icon, label = "📈", "Preço subiu"
		}
		fmt.Fprintf(&b, "%s <b>%s</b>%s\n\n", icon, label, severityTag(a.Severity))
		fmt.Fprintf(&b, "📦 %s\n", title)
		oldPrice, _ := a.Data["old_price"].(float64)
		newPrice, _ := a.Data["new_price"].(float64)
		pct, _ := a.Data["change_percent"].(float64)
		fmt.Fprintf(&b, "💰 %s → <b>%s</b> (%+.1f%%)\n", formatPrice(oldPrice, currency), formatPrice(newPrice, currency), pct)
	case models.AlertProductRemoved:
		b.WriteString("❌ <b>Produto removido do catálogo</b>\n\n")
		fmt.Fprintf(&b, "📦 %s\n", title)
	default:
		fmt.Fprintf(&b, "ℹ️ <b>%s</b>\n\n📦 %s\n", escapeHTML(a.Type), title)
	}

	fmt.Fprintf(&b, "🏪 Concorrente #%d\n", a.CompetitorID)
	if url != "" {
		fmt.Fprintf(&b, "🔗 %s", escapeHTML(url))
	}
	return b.String()
}

func severityTag(severity string) string {
	switch severity {
	case models.SeverityHigh:
		return " 🔥"
	case models.SeverityMedium:
		return " ⚠️"
	default:
		return ""
	}
}

func formatPrice(p float64, currency string) string {
	if currency == "" {
		return fmt.Sprintf("%.2f", p)
	}
	return fmt.Sprintf("%s %.2f", currency, p)
}

func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}
