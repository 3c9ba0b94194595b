package conversation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/maxsergeev/YD-Project-2/application/commands"
	commandbus "github.com/maxsergeev/YD-Project-2/application/commands/bus"
	commandhandlers "github.com/maxsergeev/YD-Project-2/application/commands/handlers"
	"github.com/maxsergeev/YD-Project-2/application/conversation"
	"github.com/maxsergeev/YD-Project-2/application/ports"
	"github.com/maxsergeev/YD-Project-2/application/queries"
	querybus "github.com/maxsergeev/YD-Project-2/application/queries/bus"
	queryhandlers "github.com/maxsergeev/YD-Project-2/application/queries/handlers"
	"github.com/maxsergeev/YD-Project-2/domain/core/valueobjects"
	"github.com/maxsergeev/YD-Project-2/infrastructure/messaging/eventbridge"
	"github.com/maxsergeev/YD-Project-2/infrastructure/persistence/memory"
	pkgerrors "github.com/maxsergeev/YD-Project-2/pkg/errors"
	"github.com/maxsergeev/YD-Project-2/pkg/observability"
)

// MockEntryStore is a mock implementation of ports.EntryStore
type MockEntryStore struct {
	mock.Mock
}

func (m *MockEntryStore) AppendEntry(ctx context.Context, userID valueobjects.UserID, date valueobjects.DiaryDate, text string) (ports.AppendResult, error) {
	args := m.Called(ctx, userID, date, text)
	return args.Get(0).(ports.AppendResult), args.Error(1)
}

func (m *MockEntryStore) GetEntries(ctx context.Context, userID valueobjects.UserID, date valueobjects.DiaryDate) ([]string, error) {
	args := m.Called(ctx, userID, date)
	entries, _ := args.Get(0).([]string)
	return entries, args.Error(1)
}

func (m *MockEntryStore) Ping(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *MockEntryStore) Close() error                   { return nil }

// captureSender records every reply it is asked to deliver
type captureSender struct {
	replies []conversation.Reply
	err     error
}

func (c *captureSender) SendReply(_ context.Context, reply conversation.Reply) error {
	c.replies = append(c.replies, reply)
	return c.err
}

func (c *captureSender) last(t *testing.T) conversation.Reply {
	t.Helper()
	require.NotEmpty(t, c.replies)
	return c.replies[len(c.replies)-1]
}

var fixedNow = time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)

func newRouter(t *testing.T, store ports.EntryStore, logger *zap.Logger) *conversation.Router {
	t.Helper()

	appendHandler := commandhandlers.NewAppendEntryHandler(store, eventbridge.NoopPublisher{}, observability.NewNop(), logger)
	cmdBus := commandbus.NewCommandBus()
	require.NoError(t, cmdBus.Register(commands.AppendEntryCommand{}, appendHandler.BusHandler()))

	getHandler := queryhandlers.NewGetEntriesHandler(store, logger)
	qryBus := querybus.NewQueryBus()
	require.NoError(t, qryBus.Register(queries.GetEntriesQuery{}, getHandler.BusHandler()))

	return conversation.NewRouter(cmdBus, qryBus, observability.NewNop(), logger,
		conversation.WithClock(func() time.Time { return fixedNow }),
		conversation.WithLocation(time.UTC),
	)
}

func text(userID, body string) conversation.Message {
	return conversation.Message{
		Sender: conversation.Sender{ID: userID, DisplayName: "Ann"},
		Text:   body,
	}
}

func command(userID, body string) conversation.Message {
	msg := text(userID, body)
	msg.IsCommand = true
	return msg
}

func TestRouter_Commands(t *testing.T) {
	defaults := conversation.DefaultReplies()
	tests := []struct {
		name         string
		text         string
		wantText     string
		wantKeyboard bool
	}{
		{"add prompt", "/add", defaults.AddPrompt, false},
		{"get prompt", "/get", defaults.GetPrompt, false},
		{"help", "/help", defaults.Help, true},
		{"help with bot suffix", "/help@diary_bot", defaults.Help, true},
		{"unknown command falls back to help", "/delete", defaults.Help, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockEntryStore)
			router := newRouter(t, store, zap.NewNop())
			out := &captureSender{}

			router.Handle(context.Background(), command("1", tt.text), out)

			require.Len(t, out.replies, 1)
			assert.Equal(t, tt.wantText, out.replies[0].Text)
			assert.Equal(t, tt.wantKeyboard, out.replies[0].Keyboard != nil)
			store.AssertNotCalled(t, "AppendEntry", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRouter_StartGreetsWithEscapedMention(t *testing.T) {
	router := newRouter(t, memory.NewEntryStore(), zap.NewNop())
	out := &captureSender{}
	msg := command("77", "/start")
	msg.Sender.DisplayName = "<Ann & Bob>"

	router.Handle(context.Background(), msg, out)

	reply := out.last(t)
	assert.True(t, reply.HTML)
	assert.Contains(t, reply.Text, `<a href="tg://user?id=77">&lt;Ann &amp; Bob&gt;</a>`)
	require.NotNil(t, reply.Keyboard)
	assert.Equal(t, conversation.CommandKeyboardRows, reply.Keyboard.Rows)
	assert.Equal(t, "Choose a command...", reply.Keyboard.Placeholder)
}

func TestRouter_AddThenFreeTextThenRead(t *testing.T) {
	ctx := context.Background()
	store := memory.NewEntryStore()
	router := newRouter(t, store, zap.NewNop())
	out := &captureSender{}

	router.Handle(ctx, command("1", "/add"), out)
	router.Handle(ctx, text("1", "Went hiking"), out)
	router.Handle(ctx, text("1", "Read a book"), out)
	router.Handle(ctx, text("1", "2024-05-01"), out)

	require.Len(t, out.replies, 4)
	assert.Equal(t, conversation.DefaultReplies().Saved, out.replies[1].Text)
	assert.NotNil(t, out.replies[1].Keyboard)
	assert.Equal(t, "📆 Entries for 2024-05-01:\n\n• Went hiking\n• Read a book", out.replies[3].Text)
	assert.NotNil(t, out.replies[3].Keyboard)
}

func TestRouter_EntriesAreStoredUnderToday(t *testing.T) {
	ctx := context.Background()
	store := memory.NewEntryStore()
	router := newRouter(t, store, zap.NewNop())

	router.Handle(ctx, text("1", "Hello"), &captureSender{})

	uid, _ := valueobjects.NewUserID("1")
	day, _ := valueobjects.ParseDiaryDate("2024-05-01")
	entries, err := store.GetEntries(ctx, uid, day)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello"}, entries)
}

func TestRouter_DateQueryWithoutEntries(t *testing.T) {
	router := newRouter(t, memory.NewEntryStore(), zap.NewNop())
	out := &captureSender{}

	router.Handle(context.Background(), text("1", "1999-01-01"), out)

	reply := out.last(t)
	assert.Equal(t, conversation.DefaultReplies().NoEntries, reply.Text)
	assert.Nil(t, reply.Keyboard)
}

func TestRouter_MalformedDateIsNotSaved(t *testing.T) {
	store := new(MockEntryStore)
	router := newRouter(t, store, zap.NewNop())
	out := &captureSender{}

	router.Handle(context.Background(), text("1", "2024-13-40"), out)

	require.Len(t, out.replies, 1)
	assert.Equal(t, conversation.DefaultReplies().InvalidDate, out.replies[0].Text)
	store.AssertNotCalled(t, "AppendEntry", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "GetEntries", mock.Anything, mock.Anything, mock.Anything)
}

func TestRouter_DateAfterAddIsStillAQuery(t *testing.T) {
	store := new(MockEntryStore)
	store.On("GetEntries", mock.Anything, mock.Anything, mock.Anything).Return([]string{}, nil)
	router := newRouter(t, store, zap.NewNop())
	out := &captureSender{}

	router.Handle(context.Background(), command("1", "/add"), out)
	router.Handle(context.Background(), text("1", "2024-05-01"), out)

	assert.Equal(t, conversation.DefaultReplies().NoEntries, out.last(t).Text)
	store.AssertNotCalled(t, "AppendEntry", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRouter_StorageFailures(t *testing.T) {
	unavailable := pkgerrors.NewStorageUnavailableError("append_entry", context.DeadlineExceeded)

	t.Run("save", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		store := new(MockEntryStore)
		store.On("AppendEntry", mock.Anything, mock.Anything, mock.Anything, "note").
			Return(ports.AppendResult{}, unavailable)
		router := newRouter(t, store, zap.New(core))
		out := &captureSender{}

		router.Handle(context.Background(), text("1", "note"), out)

		require.Len(t, out.replies, 1)
		assert.Equal(t, conversation.DefaultReplies().SaveFailed, out.replies[0].Text)
		errorsLogged := logs.FilterLevelExact(zapcore.ErrorLevel).FilterMessage("Failed to save entry")
		assert.Equal(t, 1, errorsLogged.Len())
	})

	t.Run("read", func(t *testing.T) {
		store := new(MockEntryStore)
		store.On("GetEntries", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, pkgerrors.NewStorageUnavailableError("get_entries", errors.New("connection refused")))
		router := newRouter(t, store, zap.NewNop())
		out := &captureSender{}

		router.Handle(context.Background(), text("1", "2024-05-01"), out)

		require.Len(t, out.replies, 1)
		assert.Equal(t, conversation.DefaultReplies().ReadFailed, out.replies[0].Text)
	})
}

func TestRouter_PanicBecomesApology(t *testing.T) {
	store := new(MockEntryStore)
	store.On("GetEntries", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { panic("driver bug") }).
		Return(nil, nil)
	router := newRouter(t, store, zap.NewNop())
	out := &captureSender{}

	assert.NotPanics(t, func() {
		router.Handle(context.Background(), text("1", "2024-05-01"), out)
	})
	require.Len(t, out.replies, 1)
	assert.Equal(t, conversation.DefaultReplies().ReadFailed, out.replies[0].Text)
}

func TestRouter_DeliveryFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	router := newRouter(t, memory.NewEntryStore(), zap.New(core))
	out := &captureSender{err: pkgerrors.NewTransportDeliveryError("telegram", errors.New("blocked by user"))}

	router.Handle(context.Background(), command("1", "/help"), out)

	assert.Len(t, out.replies, 1)
	failures := logs.FilterMessage("Failed to deliver reply")
	require.Equal(t, 1, failures.Len())
	assert.Equal(t, "telegram", failures.All()[0].ContextMap()["transport"])
}

func TestRouter_BlankTextGetsHelp(t *testing.T) {
	store := new(MockEntryStore)
	router := newRouter(t, store, zap.NewNop())
	out := &captureSender{}

	router.Handle(context.Background(), text("1", "   "), out)

	assert.Equal(t, conversation.DefaultReplies().Help, out.last(t).Text)
	store.AssertNotCalled(t, "AppendEntry", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRouter_CustomReplies(t *testing.T) {
	replies, err := conversation.DefaultReplies().WithOverrides(map[string]string{"saved": "Got it"})
	require.NoError(t, err)

	store := memory.NewEntryStore()
	cmdBus := commandbus.NewCommandBus()
	handler := commandhandlers.NewAppendEntryHandler(store, eventbridge.NoopPublisher{}, observability.NewNop(), zap.NewNop())
	require.NoError(t, cmdBus.Register(commands.AppendEntryCommand{}, handler.BusHandler()))
	router := conversation.NewRouter(cmdBus, querybus.NewQueryBus(), observability.NewNop(), zap.NewNop(),
		conversation.WithReplies(replies))
	out := &captureSender{}

	router.Handle(context.Background(), text("1", "note"), out)

	assert.Equal(t, "Got it", out.last(t).Text)
}

func TestReplies_UnknownOverride(t *testing.T) {
	_, err := conversation.DefaultReplies().WithOverrides(map[string]string{"goodbye": "bye"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "goodbye")
}
