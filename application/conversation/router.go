package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maxsergeev/YD-Project-2/application/commands"
	commandbus "github.com/maxsergeev/YD-Project-2/application/commands/bus"
	"github.com/maxsergeev/YD-Project-2/application/queries"
	querybus "github.com/maxsergeev/YD-Project-2/application/queries/bus"
	"github.com/maxsergeev/YD-Project-2/domain/core/valueobjects"
	"github.com/maxsergeev/YD-Project-2/pkg/errors"
	"github.com/maxsergeev/YD-Project-2/pkg/observability"
)

// Router classifies each message, runs the matching flow and sends one reply
type Router struct {
	commands *commandbus.CommandBus
	queries  *querybus.QueryBus
	replies  Replies
	clock    valueobjects.Clock
	location *time.Location
	metrics  observability.Recorder
	tracer   *observability.Tracer
	logger   *zap.Logger
}

// Option configures a Router
type Option func(*Router)

// WithReplies replaces the default reply texts
func WithReplies(replies Replies) Option {
	return func(r *Router) { r.replies = replies }
}

// WithClock sets the clock used to date new entries
func WithClock(clock valueobjects.Clock) Option {
	return func(r *Router) { r.clock = clock }
}

// WithLocation sets the time zone in which "today" is computed
func WithLocation(loc *time.Location) Option {
	return func(r *Router) { r.location = loc }
}

// WithTracer enables tracing of routed messages
func WithTracer(tracer *observability.Tracer) Option {
	return func(r *Router) { r.tracer = tracer }
}

// NewRouter creates a new conversation router
func NewRouter(
	commands *commandbus.CommandBus,
	queries *querybus.QueryBus,
	metrics observability.Recorder,
	logger *zap.Logger,
	opts ...Option,
) *Router {
	r := &Router{
		commands: commands,
		queries:  queries,
		replies:  DefaultReplies(),
		clock:    valueobjects.SystemClock,
		location: time.Local,
		metrics:  metrics,
		tracer:   observability.NewTracer("diarybot", false),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle routes one message and sends exactly one reply through out.
// Failures are logged and turned into an apology; nothing is returned.
func (r *Router) Handle(ctx context.Context, msg Message, out ReplySender) {
	intent := Classify(msg)
	logger := r.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("user_id", msg.Sender.ID),
		zap.Stringer("intent", intent.Kind),
	)

	ctx, end := r.tracer.Start(ctx, "conversation."+intent.Kind.String())
	r.tracer.AddAnnotation(ctx, "intent", intent.Kind.String())

	reply, err := r.dispatch(ctx, logger, msg, intent)
	outcome := observability.OutcomeOK
	if err != nil {
		reply, outcome = r.replyForError(logger, intent, err)
	}
	end(err)
	r.metrics.MessageHandled(intent.Kind.String(), outcome)

	if err := out.SendReply(ctx, reply); err != nil {
		transport := "unknown"
		if appErr := errors.GetAppError(err); appErr != nil {
			if name, ok := appErr.Details["transport"].(string); ok {
				transport = name
			}
		}
		r.metrics.DeliveryFailed(transport)
		logger.Error("Failed to deliver reply", zap.String("transport", transport), zap.Error(err))
	}
}

// dispatch runs the flow for intent. A panic inside a flow becomes an internal error.
func (r *Router) dispatch(ctx context.Context, logger *zap.Logger, msg Message, intent Intent) (reply Reply, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.NewInternalError(fmt.Sprintf("panic: %v", rec))
		}
	}()

	switch intent.Kind {
	case KindCommand:
		return r.handleCommand(logger, msg, intent.Command), nil
	case KindDateCandidate:
		return r.handleDateQuery(ctx, logger, msg, intent.Text)
	default:
		return r.handleFreeText(ctx, logger, msg, intent.Text)
	}
}

func (r *Router) handleCommand(logger *zap.Logger, msg Message, name string) Reply {
	switch name {
	case CommandStart:
		logger.Info("User started the bot")
		return r.replies.welcome(msg.Sender)
	case CommandAdd:
		logger.Info("User began adding an entry")
		return Reply{Text: r.replies.AddPrompt}
	case CommandGet:
		logger.Info("User asked for entries")
		return Reply{Text: r.replies.GetPrompt}
	case CommandHelp:
		logger.Info("User requested help")
	default:
		logger.Info("Unknown command, sending help", zap.String("command", name))
	}
	return Reply{Text: r.replies.Help, Keyboard: r.replies.keyboard()}
}

func (r *Router) handleDateQuery(ctx context.Context, logger *zap.Logger, msg Message, text string) (Reply, error) {
	date, err := valueobjects.ParseDiaryDate(text)
	if err != nil {
		return Reply{}, err
	}

	res, err := r.queries.Ask(ctx, queries.GetEntriesQuery{
		UserID: msg.Sender.ID,
		Date:   date.String(),
	})
	if err != nil {
		return Reply{}, err
	}
	result, ok := res.(*queries.GetEntriesResult)
	if !ok {
		return Reply{}, errors.NewInternalError(fmt.Sprintf("unexpected query result %T", res))
	}

	if len(result.Entries) == 0 {
		logger.Info("No entries for date", zap.String("date", date.String()))
		return Reply{Text: r.replies.NoEntries}, nil
	}

	logger.Info("User fetched entries",
		zap.String("date", date.String()),
		zap.Int("count", len(result.Entries)),
	)
	return r.replies.entries(date.String(), result.Entries), nil
}

func (r *Router) handleFreeText(ctx context.Context, logger *zap.Logger, msg Message, text string) (Reply, error) {
	if strings.TrimSpace(text) == "" {
		logger.Info("Blank message, sending help")
		return Reply{Text: r.replies.Help, Keyboard: r.replies.keyboard()}, nil
	}

	today := valueobjects.DiaryDateOf(r.clock(), r.location)
	err := r.commands.Send(ctx, commands.AppendEntryCommand{
		UserID: msg.Sender.ID,
		Date:   today.String(),
		Text:   text,
	})
	if err != nil {
		return Reply{}, err
	}

	logger.Info("User added an entry", zap.String("date", today.String()))
	return Reply{Text: r.replies.Saved, Keyboard: r.replies.keyboard()}, nil
}

// replyForError maps an error to its taxonomy entry and the matching canned reply
func (r *Router) replyForError(logger *zap.Logger, intent Intent, err error) (Reply, string) {
	if errors.IsInvalidDateFormat(err) {
		logger.Info("Invalid date requested", zap.String("input", intent.Text))
		return Reply{Text: r.replies.InvalidDate}, observability.OutcomeInvalidDate
	}

	outcome := observability.OutcomeInternal
	if errors.IsStorageUnavailable(err) {
		outcome = observability.OutcomeStorage
	}

	switch intent.Kind {
	case KindFreeText:
		logger.Error("Failed to save entry", zap.String("outcome", outcome), zap.Error(err))
		return Reply{Text: r.replies.SaveFailed}, outcome
	case KindDateCandidate:
		logger.Error("Failed to fetch entries", zap.String("outcome", outcome), zap.Error(err))
		return Reply{Text: r.replies.ReadFailed}, outcome
	default:
		logger.Error("Failed to handle message", zap.String("outcome", outcome), zap.Error(err))
		return Reply{Text: r.replies.Failed}, outcome
	}
}
