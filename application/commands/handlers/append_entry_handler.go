package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/maxsergeev/YD-Project-2/application/commands"
	"github.com/maxsergeev/YD-Project-2/application/commands/bus"
	"github.com/maxsergeev/YD-Project-2/application/ports"
	"github.com/maxsergeev/YD-Project-2/domain/core/valueobjects"
	"github.com/maxsergeev/YD-Project-2/domain/events"
	"github.com/maxsergeev/YD-Project-2/pkg/observability"
	"go.uber.org/zap"
)

// AppendEntryHandler handles diary entry commands
type AppendEntryHandler struct {
	store     ports.EntryStore
	publisher ports.EventPublisher
	metrics   observability.Recorder
	logger    *zap.Logger
	now       func() time.Time
}

// NewAppendEntryHandler creates a new append entry handler
func NewAppendEntryHandler(
	store ports.EntryStore,
	publisher ports.EventPublisher,
	metrics observability.Recorder,
	logger *zap.Logger,
) *AppendEntryHandler {
	return &AppendEntryHandler{
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Handle executes the append entry command
func (h *AppendEntryHandler) Handle(ctx context.Context, cmd commands.AppendEntryCommand) (ports.AppendResult, error) {
	if err := cmd.Validate(); err != nil {
		return ports.AppendResult{}, fmt.Errorf("invalid command: %w", err)
	}

	userID, err := valueobjects.NewUserID(cmd.UserID)
	if err != nil {
		return ports.AppendResult{}, err
	}
	date, err := valueobjects.ParseDiaryDate(cmd.Date)
	if err != nil {
		return ports.AppendResult{}, err
	}

	result, err := h.store.AppendEntry(ctx, userID, date, cmd.Text)
	if err != nil {
		return ports.AppendResult{}, err
	}

	if result.CreatedNewUser {
		h.metrics.UserCreated()
		h.logger.Info("Created new user", zap.String("user_id", userID.String()))
	}

	// Event delivery is best effort; the entry is already stored.
	event := events.NewEntryAppended(userID.String(), date.String(), result.CreatedNewUser, h.now().UTC())
	if err := h.publisher.Publish(ctx, event); err != nil {
		h.logger.Warn("Failed to publish entry appended event",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	}

	return result, nil
}

// BusHandler adapts the handler to the command bus
func (h *AppendEntryHandler) BusHandler() bus.CommandHandler {
	return bus.CommandHandlerFunc(func(ctx context.Context, cmd bus.Command) error {
		appendCmd, ok := cmd.(commands.AppendEntryCommand)
		if !ok {
			return fmt.Errorf("invalid command type %T", cmd)
		}
		_, err := h.Handle(ctx, appendCmd)
		return err
	})
}
