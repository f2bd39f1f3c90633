package notify

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender is the subset of the bot API used for notifications.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts short notices to the configured operator chats.
type TelegramNotifier struct {
	bot     TelegramSender
	chatIDs []int64
}

func NewTelegramBot(token string, debug bool) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

func NewTelegramNotifier(bot TelegramSender, chatIDs []int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatIDs: chatIDs}
}

// Broadcast sends text to every chat. It tries all chats and returns the joined errors.
func (n *TelegramNotifier) Broadcast(ctx context.Context, text string) error {
	var errs []error
	for _, chatID := range n.chatIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := n.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}
