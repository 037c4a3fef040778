package bot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"monitor-concorrentes/internal/database"
	"monitor-concorrentes/internal/models"
	"monitor-concorrentes/internal/monitor"
)

// Store é o acesso ao banco usado pelos comandos
type Store interface {
	AddCompetitor(ctx context.Context, c models.Competitor) (int64, error)
	GetCompetitor(ctx context.Context, id int64) (*models.Competitor, error)
	ListCompetitors(ctx context.Context, status string) ([]models.Competitor, error)
	SetCompetitorStatus(ctx context.Context, id int64, status string) error
	DeleteCompetitor(ctx context.Context, id int64) error
	ListScanResults(ctx context.Context, competitorID int64, limit int) ([]models.ScanResult, error)
}

// Scanner dispara um scan manual
type Scanner interface {
	RunScan(ctx context.Context, competitorID int64) (*monitor.ScanSummary, error)
}

// Handler trata os comandos recebidos pelo bot
type Handler struct {
	sender  Sender
	store   Store
	scanner Scanner
	chatID  int64 // 0 aceita qualquer chat
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewHandler cria o tratador de comandos
func NewHandler(sender Sender, store Store, scanner Scanner, authorizedChatID int64, logger *zap.Logger) *Handler {
	return &Handler{
		sender:  sender,
		store:   store,
		scanner: scanner,
		chatID:  authorizedChatID,
		logger:  logger,
	}
}

// Listen consome as atualizações do Telegram até ctx ser cancelado.
// Scans manuais rodam em goroutines próprias para não travar o bot.
func (h *Handler) Listen(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	defer h.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			msg := update.Message
			if parseCommand(msg.Text) == "/scan" {
				h.wg.Add(1)
				go func() {
					defer h.wg.Done()
					h.HandleMessage(ctx, msg)
				}()
				continue
			}
			h.HandleMessage(ctx, msg)
		}
	}
}

// parseCommand extrai o comando, sem o @botname
func parseCommand(text string) string {
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return ""
	}
	command := strings.ToLower(parts[0])
	if idx := strings.Index(command, "@"); idx > 0 {
		command = command[:idx]
	}
	return command
}

// HandleMessage executa um comando
func (h *Handler) HandleMessage(ctx context.Context, message *tgbotapi.Message) {
	command := parseCommand(message.Text)
	if command == "" {
		return
	}
	chatID := message.Chat.ID

	// Comandos públicos não precisam de autorização
	isPublicCommand := command == "/start" || command == "/help"
	if !isPublicCommand && h.chatID != 0 && chatID != h.chatID {
		sendText(h.sender, chatID, "Você não está autorizado a usar este bot.", h.logger)
		return
	}

	args := strings.Fields(message.Text)[1:]

	switch command {
	case "/start", "/help":
		h.handleHelp(chatID)
	case "/add":
		h.handleAdd(ctx, chatID, args)
	case "/list":
		h.handleList(ctx, chatID)
	case "/pause":
		h.handleSetStatus(ctx, chatID, args, models.CompetitorPaused)
	case "/resume":
		h.handleSetStatus(ctx, chatID, args, models.CompetitorActive)
	case "/remove":
		h.handleRemove(ctx, chatID, args)
	case "/scan":
		h.handleScan(ctx, chatID, args)
	case "/history":
		h.handleHistory(ctx, chatID, args)
	default:
		sendText(h.sender, chatID, "Comando não reconhecido. Use /help para ver os comandos disponíveis.", h.logger)
	}
}

func (h *Handler) handleHelp(chatID int64) {
	helpText := `🤖 <b>Monitor de Concorrentes</b>

<b>Comandos disponíveis:</b>

<b>/add &lt;URL&gt; &lt;nome&gt;</b> - Monitorar uma loja concorrente
Exemplo: /add https://loja.exemplo.com Loja Exemplo

<b>/list</b> - Listar os concorrentes monitorados

<b>/pause &lt;id&gt;</b> - Pausar o monitoramento
<b>/resume &lt;id&gt;</b> - Retomar o monitoramento

<b>/remove &lt;id&gt;</b> - Remover concorrente e seus produtos
Exemplo: /remove 1

<b>/scan &lt;id&gt;</b> - Escanear o catálogo agora
Exemplo: /scan 1

<b>/history &lt;id&gt;</b> - Últimos scans do concorrente

<b>/help</b> - Mostrar esta mensagem de ajuda
`
	if err := sendHTML(h.sender, chatID, helpText, h.logger); err != nil {
		h.logger.Error("Erro ao enviar mensagem de ajuda", zap.Error(err))
	}
}

func (h *Handler) handleAdd(ctx context.Context, chatID int64, args []string) {
	if len(args) < 2 {
		sendText(h.sender, chatID, "❌ Formato incorreto.\n\nUso: /add <URL> <nome>\n\nExemplo: /add https://loja.exemplo.com Loja Exemplo", h.logger)
		return
	}

	storeURL := strings.TrimRight(args[0], "/")
	u, err := url.Parse(storeURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		sendText(h.sender, chatID, "❌ URL inválida. Use o endereço completo da loja, com http:// ou https://", h.logger)
		return
	}
	name := strings.Join(args[1:], " ")

	id, err := h.store.AddCompetitor(ctx, models.Competitor{
		UserID:   chatID,
		Name:     name,
		URL:      storeURL,
		Platform: DetectPlatform(u),
	})
	if err != nil {
		h.logger.Error("Erro ao adicionar concorrente", zap.String("url", storeURL), zap.Error(err))
		sendText(h.sender, chatID, fmt.Sprintf("❌ Erro ao adicionar concorrente: %v", err), h.logger)
		return
	}

	sendText(h.sender, chatID, fmt.Sprintf(
		"✅ Concorrente adicionado com sucesso!\n\nID: %d\nNome: %s\nURL: %s\n\nUse /scan %d para o primeiro scan.",
		id, name, storeURL, id,
	), h.logger)
}

// DetectPlatform identifica a plataforma da loja pelo domínio
func DetectPlatform(u *url.URL) string {
	if strings.HasSuffix(strings.ToLower(u.Hostname()), ".myshopify.com") {
		return models.PlatformShopify
	}
	return models.PlatformCustom
}

func (h *Handler) handleList(ctx context.Context, chatID int64) {
	competitors, err := h.store.ListCompetitors(ctx, "")
	if err != nil {
		sendText(h.sender, chatID, fmt.Sprintf("❌ Erro ao listar concorrentes: %v", err), h.logger)
		return
	}

	if len(competitors) == 0 {
		sendText(h.sender, chatID, "📋 Nenhum concorrente sendo monitorado no momento.", h.logger)
		return
	}

	var response strings.Builder
	response.WriteString("📋 <b>Concorrentes em Monitoramento:</b>\n\n")

	for _, c := range competitors {
		fmt.Fprintf(&response, "🆔 <b>ID: %d</b> %s\n", c.ID, statusIcon(c.Status))
		fmt.Fprintf(&response, "🏪 %s\n", escapeHTML(c.Name))
		fmt.Fprintf(&response, "📦 Produtos ativos: %d\n", c.ProductCount)
		if c.LastScannedAt != nil {
			fmt.Fprintf(&response, "🕐 Último scan: %s\n", c.LastScannedAt.Format("02/01/2006 15:04"))
		} else {
			response.WriteString("🕐 Último scan: Nunca\n")
		}
		fmt.Fprintf(&response, "🔗 %s\n\n", escapeHTML(c.URL))
	}

	if err := sendHTML(h.sender, chatID, response.String(), h.logger); err != nil {
		h.logger.Error("Erro ao enviar lista de concorrentes", zap.Error(err))
	}
}

func statusIcon(status string) string {
	switch status {
	case models.CompetitorPaused:
		return "⏸️"
	case models.CompetitorError:
		return "⚠️"
	default:
		return "▶️"
	}
}

// parseID lê o ID do primeiro argumento, respondendo ao usuário em caso de erro
func (h *Handler) parseID(chatID int64, args []string, usage string) (int64, bool) {
	if len(args) < 1 {
		sendText(h.sender, chatID, "❌ Formato incorreto.\n\nUso: "+usage, h.logger)
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		sendText(h.sender, chatID, "❌ ID inválido.", h.logger)
		return 0, false
	}
	return id, true
}

func (h *Handler) handleSetStatus(ctx context.Context, chatID int64, args []string, status string) {
	usage := "/pause <id>"
	done := "⏸️ Monitoramento pausado: %s"
	if status == models.CompetitorActive {
		usage = "/resume <id>"
		done = "▶️ Monitoramento retomado: %s"
	}

	id, ok := h.parseID(chatID, args, usage)
	if !ok {
		return
	}

	competitor, err := h.store.GetCompetitor(ctx, id)
	if err != nil {
		h.replyLookupError(chatID, err)
		return
	}

	if err := h.store.SetCompetitorStatus(ctx, id, status); err != nil {
		sendText(h.sender, chatID, fmt.Sprintf("❌ Erro ao atualizar concorrente: %v", err), h.logger)
		return
	}
	sendText(h.sender, chatID, fmt.Sprintf(done, competitor.Name), h.logger)
}

func (h *Handler) handleRemove(ctx context.Context, chatID int64, args []string) {
	id, ok := h.parseID(chatID, args, "/remove <id>\n\nExemplo: /remove 1")
	if !ok {
		return
	}

	competitor, err := h.store.GetCompetitor(ctx, id)
	if err != nil {
		h.replyLookupError(chatID, err)
		return
	}

	if err := h.store.DeleteCompetitor(ctx, id); err != nil {
		sendText(h.sender, chatID, fmt.Sprintf("❌ Erro ao remover concorrente: %v", err), h.logger)
		return
	}
	sendText(h.sender, chatID, fmt.Sprintf("✅ Concorrente removido: %s", competitor.Name), h.logger)
}

func (h *Handler) handleScan(ctx context.Context, chatID int64, args []string) {
	id, ok := h.parseID(chatID, args, "/scan <id>\n\nExemplo: /scan 1")
	if !ok {
		return
	}

	waitMsg := tgbotapi.NewMessage(chatID, "⏳ Escaneando catálogo...")
	sentMessageID := 0
	if sent, err := h.sender.Send(waitMsg); err == nil {
		sentMessageID = sent.MessageID
	}

	summary, err := h.scanner.RunScan(ctx, id)
	var response string
	switch {
	case errors.Is(err, monitor.ErrAlreadyScanning):
		response = "⏳ Já existe um scan em andamento para este concorrente. Tente novamente mais tarde."
	case errors.Is(err, monitor.ErrCompetitorNotFound):
		response = "❌ Concorrente não encontrado."
	case err != nil:
		h.logger.Error("Erro no scan manual", zap.Int64("competitor_id", id), zap.Error(err))
		response = fmt.Sprintf("❌ Erro ao escanear: %s", escapeHTML(err.Error()))
	default:
		response = formatSummary(summary)
	}

	if sentMessageID != 0 {
		edit := tgbotapi.NewEditMessageText(chatID, sentMessageID, response)
		edit.ParseMode = tgbotapi.ModeHTML
		if _, err := h.sender.Send(edit); err == nil {
			return
		}
		h.logger.Warn("Erro ao editar mensagem, enviando nova", zap.Int64("chat_id", chatID))
	}
	if err := sendHTML(h.sender, chatID, response, h.logger); err != nil {
		h.logger.Error("Erro ao enviar resultado do scan", zap.Error(err))
	}
}

func formatSummary(s *monitor.ScanSummary) string {
	r := s.Result
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>Scan do concorrente #%d</b>\n\n", s.CompetitorID)
	fmt.Fprintf(&b, "🆕 Novos: %d\n", r.NewCount)
	fmt.Fprintf(&b, "❌ Removidos: %d\n", r.RemovedCount)
	fmt.Fprintf(&b, "💰 Preços alterados: %d\n", r.PriceChangedCount)
	fmt.Fprintf(&b, "✏️ Títulos alterados: %d\n", r.TitleChangedCount)
	fmt.Fprintf(&b, "⏱️ Duração: %s\n", r.Duration.Round(100*time.Millisecond))
	if s.Strategy != "" {
		fmt.Fprintf(&b, "🔎 Estratégia: %s\n", s.Strategy)
	}
	if r.Status == models.ScanPartial {
		b.WriteString("\n⚠️ Crawl incompleto: remoções não foram aplicadas.")
		if r.Error != "" {
			fmt.Fprintf(&b, "\nMotivo: %s", escapeHTML(r.Error))
		}
	}
	return b.String()
}

func (h *Handler) handleHistory(ctx context.Context, chatID int64, args []string) {
	id, ok := h.parseID(chatID, args, "/history <id>")
	if !ok {
		return
	}

	competitor, err := h.store.GetCompetitor(ctx, id)
	if err != nil {
		h.replyLookupError(chatID, err)
		return
	}

	results, err := h.store.ListScanResults(ctx, id, 5)
	if err != nil {
		sendText(h.sender, chatID, fmt.Sprintf("❌ Erro ao buscar histórico: %v", err), h.logger)
		return
	}
	if len(results) == 0 {
		sendText(h.sender, chatID, "📋 Nenhum scan registrado para este concorrente.", h.logger)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 <b>Últimos scans: %s</b>\n\n", escapeHTML(competitor.Name))
	for _, r := range results {
		fmt.Fprintf(&b, "🕐 %s · <b>%s</b>\n", r.ScannedAt.Format("02/01/2006 15:04"), r.Status)
		if r.Status == models.ScanFailed {
			fmt.Fprintf(&b, "   %s\n\n", escapeHTML(r.Error))
			continue
		}
		fmt.Fprintf(&b, "   +%d / -%d / 💰%d / ✏️%d\n\n", r.NewCount, r.RemovedCount, r.PriceChangedCount, r.TitleChangedCount)
	}

	if err := sendHTML(h.sender, chatID, b.String(), h.logger); err != nil {
		h.logger.Error("Erro ao enviar histórico", zap.Error(err))
	}
}

func (h *Handler) replyLookupError(chatID int64, err error) {
	if errors.Is(err, database.ErrNotFound) {
		sendText(h.sender, chatID, "❌ Concorrente não encontrado.", h.logger)
		return
	}
	sendText(h.sender, chatID, fmt.Sprintf("❌ Erro ao buscar concorrente: %v", err), h.logger)
}
