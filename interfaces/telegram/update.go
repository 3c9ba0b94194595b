// Package telegram connects the conversation router to the Telegram Bot API,
// by long polling or by webhook.
package telegram

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/maxsergeev/YD-Project-2/application/conversation"
)

// TransportName labels delivery failures from this package
const TransportName = "telegram"

// Handler routes one message and replies through out
type Handler interface {
	Handle(ctx context.Context, msg conversation.Message, out conversation.ReplySender)
}

// ToMessage converts an update into a conversation message. It reports false
// for updates that carry no text message.
func ToMessage(update tgbotapi.Update) (conversation.Message, int64, bool) {
	m := update.Message
	if m == nil || m.From == nil || m.Chat == nil || m.Text == "" {
		return conversation.Message{}, 0, false
	}

	return conversation.Message{
		Sender: conversation.Sender{
			ID:          strconv.FormatInt(m.From.ID, 10),
			DisplayName: displayName(m.From),
		},
		Text:      m.Text,
		IsCommand: m.IsCommand(),
	}, m.Chat.ID, true
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	if u.UserName != "" {
		return u.UserName
	}
	return strconv.FormatInt(u.ID, 10)
}

// Dispatcher hands updates to the router with a reply sender bound to the chat
type Dispatcher struct {
	api     Sender
	handler Handler
	logger  *zap.Logger
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(api Sender, handler Handler, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{api: api, handler: handler, logger: logger}
}

// Dispatch handles one update. Updates without text are skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, update tgbotapi.Update) {
	msg, chatID, ok := ToMessage(update)
	if !ok {
		d.logger.Debug("Ignoring update without text message", zap.Int("update_id", update.UpdateID))
		return
	}
	d.handler.Handle(ctx, msg, NewReplySender(d.api, chatID))
}

// chatKey is the routing key that keeps one chat's updates in order
func chatKey(update tgbotapi.Update) int64 {
	if chat := update.FromChat(); chat != nil {
		return chat.ID
	}
	return 0
}
