package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/maxsergeev/YD-Project-2/application/queries"
	querybus "github.com/maxsergeev/YD-Project-2/application/queries/bus"
	"github.com/maxsergeev/YD-Project-2/domain/core/valueobjects"
	"github.com/maxsergeev/YD-Project-2/pkg/auth"
	pkgerrors "github.com/maxsergeev/YD-Project-2/pkg/errors"
)

// EntriesRequest holds the path parameters of an entries lookup
type EntriesRequest struct {
	UserID string `validate:"required,max=64"`
	Date   string `validate:"required,diarydate"`
}

// NewValidator returns a validator that understands the diarydate tag
func NewValidator() *validator.Validate {
	v := validator.New()
	// Registration only fails for an empty tag or a nil function.
	_ = v.RegisterValidation("diarydate", func(fl validator.FieldLevel) bool {
		return valueobjects.IsValidDate(fl.Field().String())
	})
	return v
}

// EntriesHandler serves the operator view of one diary day
type EntriesHandler struct {
	queryBus   *querybus.QueryBus
	validate   *validator.Validate
	errHandler *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewEntriesHandler creates a new entries handler
func NewEntriesHandler(
	queryBus *querybus.QueryBus,
	errHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *EntriesHandler {
	return &EntriesHandler{
		queryBus:   queryBus,
		validate:   NewValidator(),
		errHandler: errHandler,
		logger:     logger,
	}
}

// GetEntries handles GET /api/v1/diaries/{userID}/entries/{date}
func (h *EntriesHandler) GetEntries(w http.ResponseWriter, r *http.Request) {
	req := EntriesRequest{
		UserID: chi.URLParam(r, "userID"),
		Date:   chi.URLParam(r, "date"),
	}
	if err := h.validate.Struct(req); err != nil {
		h.errHandler.Handle(w, r, validationError(req, err))
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.GetEntriesQuery{
		UserID: req.UserID,
		Date:   req.Date,
	})
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	res, ok := result.(*queries.GetEntriesResult)
	if !ok {
		h.errHandler.Handle(w, r, pkgerrors.NewInternalError("unexpected query result"))
		return
	}

	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		h.logger.Info("Operator read diary day",
			zap.String("operator", claims.Subject),
			zap.String("user_id", res.UserID),
			zap.String("date", res.Date),
		)
	}

	respondJSON(w, http.StatusOK, res)
}

func validationError(req EntriesRequest, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return pkgerrors.NewValidationError(err.Error())
	}
	for _, fe := range verrs {
		if fe.Tag() == "diarydate" {
			return pkgerrors.NewInvalidDateFormatError(req.Date)
		}
	}
	return pkgerrors.NewValidationError(fmt.Sprintf("%s failed on '%s'", verrs[0].Field(), verrs[0].Tag()))
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
