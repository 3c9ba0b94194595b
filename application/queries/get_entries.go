package queries

import (
	"errors"
	"strings"

	"github.com/maxsergeev/YD-Project-2/domain/core/valueobjects"
)

// GetEntriesQuery represents a query for one day of a user's diary
type GetEntriesQuery struct {
	UserID string
	Date   string
}

// Validate validates the GetEntriesQuery
func (q GetEntriesQuery) Validate() error {
	if strings.TrimSpace(q.UserID) == "" {
		return errors.New("user ID is required")
	}
	if _, err := valueobjects.ParseDiaryDate(q.Date); err != nil {
		return err
	}
	return nil
}

// GetEntriesResult represents the entries of one day in submission order
type GetEntriesResult struct {
	UserID  string   `json:"user_id"`
	Date    string   `json:"date"`
	Entries []string `json:"entries"`
}
