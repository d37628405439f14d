// Package notify pushes optional out-of-band pings to form owners. Delivery
// is best effort; a failed ping never affects the request that triggered it.
package notify

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Notifier sends a short text to an owner-specific destination.
type Notifier interface {
	Notify(chatID int64, text string) error
}

// TelegramNotifier delivers pings through a Telegram bot.
type TelegramNotifier struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramNotifier connects the bot. Returns nil when no token is
// configured so callers can treat the notifier as absent.
func NewTelegramNotifier(token string) *TelegramNotifier {
	if token == "" {
		return nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		zap.S().Warnw("telegram bot unavailable, owner pings disabled", "error", err)
		return nil
	}
	return &TelegramNotifier{bot: bot}
}

// Notify implements Notifier.
func (t *TelegramNotifier) Notify(chatID int64, text string) error {
	if t == nil || chatID == 0 {
		return nil
	}
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := t.bot.Send(msg)
	return err
}

// NotifyInBackground fires the ping from a goroutine and logs failures.
func NotifyInBackground(n Notifier, chatID int64, text string) {
	if n == nil || chatID == 0 {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				zap.S().Errorw("panic sending telegram ping", "panic", r)
			}
		}()
		if err := n.Notify(chatID, text); err != nil {
			zap.S().Warnw("failed to send telegram ping", "chatId", chatID, "error", err)
		}
	}()
}
