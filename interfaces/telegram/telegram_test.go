package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/maxsergeev/YD-Project-2/application/conversation"
	pkgerrors "github.com/maxsergeev/YD-Project-2/pkg/errors"
)

// MockBot is a mock implementation of Sender
type MockBot struct {
	mock.Mock
}

func (m *MockBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

// recordingHandler remembers every routed message and answers with its text
type recordingHandler struct {
	mu   sync.Mutex
	msgs []conversation.Message
}

func (h *recordingHandler) Handle(ctx context.Context, msg conversation.Message, out conversation.ReplySender) {
	h.mu.Lock()
	h.msgs = append(h.msgs, msg)
	h.mu.Unlock()
	_ = out.SendReply(ctx, conversation.Reply{Text: msg.Text})
}

func (h *recordingHandler) messages() []conversation.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]conversation.Message(nil), h.msgs...)
}

// fakeSource feeds updates from a channel. Stopping closes the channel, as
// the Bot API client does once its pending request returns.
type fakeSource struct {
	ch      chan tgbotapi.Update
	stopped chan struct{}
	once    sync.Once
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan tgbotapi.Update, 64), stopped: make(chan struct{})}
}

func (f *fakeSource) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.ch
}

func (f *fakeSource) StopReceivingUpdates() {
	f.once.Do(func() {
		close(f.stopped)
		close(f.ch)
	})
}

func textUpdate(id int, chatID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: id,
		From:      &tgbotapi.User{ID: chatID, FirstName: "Ada", LastName: "Lovelace"},
		Chat:      &tgbotapi.Chat{ID: chatID, Type: "private"},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}}
	}
	return tgbotapi.Update{UpdateID: id, Message: msg}
}

func TestToMessage(t *testing.T) {
	msg, chatID, ok := ToMessage(textUpdate(1, 99, "/start"))
	require.True(t, ok)
	assert.Equal(t, int64(99), chatID)
	assert.Equal(t, "99", msg.Sender.ID)
	assert.Equal(t, "Ada Lovelace", msg.Sender.DisplayName)
	assert.True(t, msg.IsCommand)

	msg, _, ok = ToMessage(textUpdate(2, 99, "a lovely day"))
	require.True(t, ok)
	assert.False(t, msg.IsCommand)

	_, _, ok = ToMessage(tgbotapi.Update{UpdateID: 3})
	assert.False(t, ok)

	sticker := textUpdate(4, 99, "")
	_, _, ok = ToMessage(sticker)
	assert.False(t, ok)
}

func TestDisplayNameFallbacks(t *testing.T) {
	assert.Equal(t, "ada", displayName(&tgbotapi.User{ID: 1, UserName: "ada"}))
	assert.Equal(t, "7", displayName(&tgbotapi.User{ID: 7}))
}

func TestReplySender_BuildsMessage(t *testing.T) {
	bot := new(MockBot)
	bot.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		if !ok || msg.ChatID != 5 || msg.ParseMode != tgbotapi.ModeHTML {
			return false
		}
		kb, ok := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
		return ok &&
			kb.ResizeKeyboard &&
			kb.InputFieldPlaceholder == "Choose a command..." &&
			len(kb.Keyboard) == 2 &&
			kb.Keyboard[0][0].Text == "/add" &&
			kb.Keyboard[1][0].Text == "/help"
	})).Return(nil)

	err := NewReplySender(bot, 5).SendReply(context.Background(), conversation.Reply{
		Text: "<b>hi</b>",
		HTML: true,
		Keyboard: &conversation.Keyboard{
			Rows:        conversation.CommandKeyboardRows,
			Placeholder: "Choose a command...",
		},
	})
	require.NoError(t, err)
	bot.AssertExpectations(t)
}

func TestReplySender_PlainReplyHasNoMarkup(t *testing.T) {
	bot := new(MockBot)
	bot.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg := c.(tgbotapi.MessageConfig)
		return msg.ParseMode == "" && msg.ReplyMarkup == nil
	})).Return(nil)

	require.NoError(t, NewReplySender(bot, 5).SendReply(context.Background(), conversation.Reply{Text: "ok"}))
}

func TestReplySender_DeliveryFailure(t *testing.T) {
	bot := new(MockBot)
	bot.On("Send", mock.Anything).Return(errors.New("Forbidden: bot was blocked by the user"))

	err := NewReplySender(bot, 5).SendReply(context.Background(), conversation.Reply{Text: "ok"})
	require.Error(t, err)
	appErr := pkgerrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.ErrorTypeTransportDelivery, appErr.Type)
	assert.Equal(t, TransportName, appErr.Details["transport"])
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("ж", MaxMessageLength+10)
	out := truncate(long, MaxMessageLength)
	assert.Equal(t, MaxMessageLength, utf8.RuneCountInString(out))
	assert.True(t, strings.HasSuffix(out, "…"))

	assert.Equal(t, "short", truncate("short", MaxMessageLength))
}

func TestPoller_KeepsPerChatOrder(t *testing.T) {
	bot := new(MockBot)
	bot.On("Send", mock.Anything).Return(nil)
	handler := &recordingHandler{}
	source := newFakeSource()
	poller := NewPoller(source, NewDispatcher(bot, handler, zap.NewNop()), 4, time.Second, zap.NewNop())

	const perChat = 10
	id := 0
	for i := 0; i < perChat; i++ {
		for _, chat := range []int64{1, 2, -1003} {
			id++
			source.ch <- textUpdate(id, chat, fmt.Sprintf("%d-%d", chat, i))
		}
	}
	source.ch <- tgbotapi.Update{UpdateID: 999}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	require.Eventually(t, func() bool { return len(handler.messages()) == 3*perChat }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop")
	}
	<-source.stopped

	next := map[string]int{}
	for _, msg := range handler.messages() {
		want := fmt.Sprintf("%s-%d", msg.Sender.ID, next[msg.Sender.ID])
		assert.Equal(t, want, msg.Text)
		next[msg.Sender.ID]++
	}
	bot.AssertNumberOfCalls(t, "Send", 3*perChat)
}

func TestPoller_HandlesBufferedUpdatesOnStop(t *testing.T) {
	bot := new(MockBot)
	bot.On("Send", mock.Anything).Return(nil)
	handler := &recordingHandler{}
	source := newFakeSource()
	poller := NewPoller(source, NewDispatcher(bot, handler, zap.NewNop()), 2, time.Second, zap.NewNop())

	for i := 1; i <= 20; i++ {
		source.ch <- textUpdate(i, int64(i%3+1), fmt.Sprintf("entry %d", i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, poller.Run(ctx))
	<-source.stopped
	assert.Len(t, handler.messages(), 20)
	bot.AssertNumberOfCalls(t, "Send", 20)
}

func TestPoller_LogsStartOnce(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	source := newFakeSource()
	poller := NewPoller(source, NewDispatcher(new(MockBot), &recordingHandler{}, zap.NewNop()), 3, time.Second, zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, poller.Run(ctx))

	started := logs.FilterMessage("Polling Telegram for updates").All()
	require.Len(t, started, 1)
	assert.Equal(t, int64(3), started[0].ContextMap()["workers"])
}

func TestPoller_ClosedChannelIsAnError(t *testing.T) {
	source := newFakeSource()
	close(source.ch)
	poller := NewPoller(source, NewDispatcher(new(MockBot), &recordingHandler{}, zap.NewNop()), 2, time.Second, zap.NewNop())

	assert.Error(t, poller.Run(context.Background()))
}

func newWebhookServer(t *testing.T, handler *recordingHandler, bot *MockBot) *httptest.Server {
	t.Helper()
	wh := NewWebhookHandler(&tgbotapi.BotAPI{}, NewDispatcher(bot, handler, zap.NewNop()), "s3cretvalue", zap.NewNop())
	r := chi.NewRouter()
	r.Method(http.MethodPost, "/telegram/webhook/{secret}", wh)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestWebhook(t *testing.T) {
	body := `{"update_id":1,"message":{"message_id":1,"date":0,` +
		`"from":{"id":42,"is_bot":false,"first_name":"Ada"},` +
		`"chat":{"id":42,"type":"private"},"text":"hello"}}`

	t.Run("accepts update with the right secret", func(t *testing.T) {
		bot := new(MockBot)
		bot.On("Send", mock.Anything).Return(nil)
		handler := &recordingHandler{}
		srv := newWebhookServer(t, handler, bot)

		resp, err := http.Post(srv.URL+"/telegram/webhook/s3cretvalue", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		require.Len(t, handler.messages(), 1)
		assert.Equal(t, "hello", handler.messages()[0].Text)
		assert.Equal(t, "42", handler.messages()[0].Sender.ID)
	})

	t.Run("wrong secret is not found", func(t *testing.T) {
		handler := &recordingHandler{}
		srv := newWebhookServer(t, handler, new(MockBot))

		resp, err := http.Post(srv.URL+"/telegram/webhook/guess", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Empty(t, handler.messages())
	})

	t.Run("malformed body is rejected", func(t *testing.T) {
		handler := &recordingHandler{}
		srv := newWebhookServer(t, handler, new(MockBot))

		resp, err := http.Post(srv.URL+"/telegram/webhook/s3cretvalue", "application/json", strings.NewReader("{"))
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

// MockRequester is a mock implementation of Requester
type MockRequester struct {
	mock.Mock
}

func (m *MockRequester) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	args := m.Called(c)
	return &tgbotapi.APIResponse{Ok: args.Error(0) == nil}, args.Error(0)
}

func TestRegisterWebhook(t *testing.T) {
	api := new(MockRequester)
	api.On("Request", mock.AnythingOfType("tgbotapi.WebhookConfig")).Return(nil)
	require.NoError(t, RegisterWebhook(api, "https://bot.example.com/telegram/webhook/s3cretvalue"))

	api = new(MockRequester)
	api.On("Request", mock.AnythingOfType("tgbotapi.DeleteWebhookConfig")).Return(errors.New("unauthorized"))
	assert.Error(t, DeleteWebhook(api))
}
