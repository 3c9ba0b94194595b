package commands

import (
	"errors"
	"strings"

	"github.com/maxsergeev/YD-Project-2/domain/core/valueobjects"
)

// AppendEntryCommand represents the command to add a diary entry
type AppendEntryCommand struct {
	UserID string `json:"user_id"`
	Date   string `json:"date"`
	Text   string `json:"text"`
}

// Validate validates the AppendEntryCommand
func (c AppendEntryCommand) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return errors.New("user ID is required")
	}
	if _, err := valueobjects.ParseDiaryDate(c.Date); err != nil {
		return err
	}
	if strings.TrimSpace(c.Text) == "" {
		return errors.New("entry text is required")
	}
	return nil
}
