package notify

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// TelegramOperator sends alerts straight to the operator chat. Used for the
// conditions that need a human: gateway refusals during cancellation,
// reconciliation deactivating accounts, signature mismatches.
type TelegramOperator struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

func NewTelegramOperator(token string, chatID int64, logger *zap.Logger) (*TelegramOperator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	return &TelegramOperator{bot: bot, chatID: chatID, logger: logger}, nil
}

func (t *TelegramOperator) NotifyOperator(_ context.Context, text string) {
	if t.bot == nil || t.chatID == 0 || text == "" {
		return
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Warn("deliver operator alert", zap.Error(err))
	}
}
