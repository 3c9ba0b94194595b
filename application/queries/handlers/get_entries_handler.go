package handlers

import (
	"context"
	"fmt"

	"github.com/maxsergeev/YD-Project-2/application/ports"
	"github.com/maxsergeev/YD-Project-2/application/queries"
	"github.com/maxsergeev/YD-Project-2/application/queries/bus"
	"github.com/maxsergeev/YD-Project-2/domain/core/valueobjects"
	"go.uber.org/zap"
)

// GetEntriesHandler handles diary day queries
type GetEntriesHandler struct {
	store  ports.EntryStore
	logger *zap.Logger
}

// NewGetEntriesHandler creates a new get entries handler
func NewGetEntriesHandler(store ports.EntryStore, logger *zap.Logger) *GetEntriesHandler {
	return &GetEntriesHandler{
		store:  store,
		logger: logger,
	}
}

// Handle executes the get entries query
func (h *GetEntriesHandler) Handle(ctx context.Context, query queries.GetEntriesQuery) (*queries.GetEntriesResult, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	userID, err := valueobjects.NewUserID(query.UserID)
	if err != nil {
		return nil, err
	}
	date, err := valueobjects.ParseDiaryDate(query.Date)
	if err != nil {
		return nil, err
	}

	entries, err := h.store.GetEntries(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []string{}
	}

	h.logger.Debug("Loaded diary entries",
		zap.String("user_id", userID.String()),
		zap.String("date", date.String()),
		zap.Int("count", len(entries)),
	)

	return &queries.GetEntriesResult{
		UserID:  userID.String(),
		Date:    date.String(),
		Entries: entries,
	}, nil
}

// BusHandler adapts the handler to the query bus
func (h *GetEntriesHandler) BusHandler() bus.QueryHandler {
	return bus.QueryHandlerFunc(func(ctx context.Context, query bus.Query) (interface{}, error) {
		entriesQuery, ok := query.(queries.GetEntriesQuery)
		if !ok {
			return nil, fmt.Errorf("invalid query type %T", query)
		}
		return h.Handle(ctx, entriesQuery)
	})
}
