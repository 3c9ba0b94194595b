package telegram

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// UpdateParser decodes a webhook request into an update
type UpdateParser interface {
	HandleUpdate(r *http.Request) (*tgbotapi.Update, error)
}

// Requester sends Bot API requests that are not messages
type Requester interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// NewBot connects to the Bot API and routes its logging through logger
func NewBot(token string, logger *zap.Logger) (*tgbotapi.BotAPI, error) {
	if err := tgbotapi.SetLogger(zap.NewStdLog(logger.Named("telegram"))); err != nil {
		return nil, fmt.Errorf("failed to set telegram logger: %w", err)
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	logger.Info("Connected to Telegram", zap.String("bot", bot.Self.UserName))
	return bot, nil
}

// RegisterWebhook points Telegram at url
func RegisterWebhook(api Requester, url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if _, err := api.Request(wh); err != nil {
		return fmt.Errorf("failed to register webhook: %w", err)
	}
	return nil
}

// DeleteWebhook switches the bot back to long polling
func DeleteWebhook(api Requester) error {
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return nil
}

// WebhookHandler serves POST /telegram/webhook/{secret}
type WebhookHandler struct {
	parser     UpdateParser
	dispatcher *Dispatcher
	secret     string
	logger     *zap.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(parser UpdateParser, dispatcher *Dispatcher, secret string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		parser:     parser,
		dispatcher: dispatcher,
		secret:     secret,
		logger:     logger,
	}
}

// ServeHTTP implements http.Handler. Once an update is accepted the answer is
// 200 whatever the outcome, since Telegram redelivers on any other status.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	given := chi.URLParam(r, "secret")
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(given), []byte(h.secret)) != 1 {
		http.NotFound(w, r)
		return
	}

	update, err := h.parser.HandleUpdate(r)
	if err != nil {
		h.logger.Warn("Rejected webhook update", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	h.dispatcher.Dispatch(r.Context(), *update)
	w.WriteHeader(http.StatusOK)
}
