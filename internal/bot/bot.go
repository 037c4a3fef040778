package bot

import (
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender envia mensagens para o Telegram. Implementado por *tgbotapi.BotAPI.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Init inicializa o bot do Telegram
func Init(token string, logger *zap.Logger) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN não configurado. Verifique o arquivo .env")
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		if err.Error() == "Unauthorized" {
			return nil, errors.New("token do Telegram inválido ou expirado. Verifique o TELEGRAM_BOT_TOKEN no arquivo .env. Para obter um token, fale com @BotFather no Telegram")
		}
		return nil, fmt.Errorf("erro ao conectar com Telegram: %w", err)
	}

	bot.Debug = false
	logger.Info("Bot autorizado", zap.String("username", bot.Self.UserName))
	return bot, nil
}

// escapeHTML escapa caracteres especiais do HTML
func escapeHTML(text string) string {
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	return text
}

// sendHTML envia a mensagem formatada em HTML; se o Telegram rejeitar,
// tenta de novo sem formatação
func sendHTML(sender Sender, chatID int64, text string, logger *zap.Logger) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := sender.Send(msg); err != nil {
		logger.Warn("Erro ao enviar mensagem com HTML, tentando sem formatação", zap.Error(err))
		msg.ParseMode = ""
		if _, err2 := sender.Send(msg); err2 != nil {
			return fmt.Errorf("erro ao enviar mensagem: %w", err2)
		}
	}
	return nil
}

// sendText envia uma mensagem simples, só registrando falhas
func sendText(sender Sender, chatID int64, text string, logger *zap.Logger) {
	if _, err := sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		logger.Warn("Erro ao enviar mensagem", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
