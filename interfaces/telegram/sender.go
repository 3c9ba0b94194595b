package telegram

import (
	"context"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/maxsergeev/YD-Project-2/application/conversation"
	pkgerrors "github.com/maxsergeev/YD-Project-2/pkg/errors"
)

// MaxMessageLength is Telegram's limit for one text message
const MaxMessageLength = 4096

// Sender is the part of the Bot API used to deliver replies
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ReplySender delivers replies to one chat
type ReplySender struct {
	api    Sender
	chatID int64
}

// NewReplySender binds a reply sender to chatID
func NewReplySender(api Sender, chatID int64) *ReplySender {
	return &ReplySender{api: api, chatID: chatID}
}

// SendReply implements conversation.ReplySender
func (s *ReplySender) SendReply(ctx context.Context, reply conversation.Reply) error {
	if err := ctx.Err(); err != nil {
		return pkgerrors.NewTransportDeliveryError(TransportName, err)
	}
	if _, err := s.api.Send(newMessage(s.chatID, reply)); err != nil {
		return pkgerrors.NewTransportDeliveryError(TransportName, err)
	}
	return nil
}

func newMessage(chatID int64, reply conversation.Reply) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, truncate(reply.Text, MaxMessageLength))
	if reply.HTML {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	if reply.Keyboard != nil {
		msg.ReplyMarkup = replyKeyboard(reply.Keyboard)
	}
	return msg
}

func replyKeyboard(kb *conversation.Keyboard) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
		}
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
	}

	markup := tgbotapi.NewReplyKeyboard(rows...)
	markup.InputFieldPlaceholder = kb.Placeholder
	return markup
}

// truncate cuts s to at most limit characters, marking the cut with an ellipsis
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}
