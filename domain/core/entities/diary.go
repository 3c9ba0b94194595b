package entities

import (
	"github.com/maxsergeev/YD-Project-2/domain/core/valueobjects"
	pkgerrors "github.com/maxsergeev/YD-Project-2/pkg/errors"
)

// Diary is one user's collection of dated pages.
// Pages only grow: an append never removes or reorders earlier entries,
// and a date without entries has no page at all.
type Diary struct {
	userID valueobjects.UserID
	pages  map[string][]string
}

// NewDiary creates an empty diary for a user
func NewDiary(userID valueobjects.UserID) (*Diary, error) {
	if userID.IsZero() {
		return nil, pkgerrors.NewValidationError("userID cannot be empty")
	}
	return &Diary{
		userID: userID,
		pages:  make(map[string][]string),
	}, nil
}

// UserID returns the owner of the diary
func (d *Diary) UserID() valueobjects.UserID { return d.userID }

// Append adds text to the end of the page for date.
func (d *Diary) Append(date valueobjects.DiaryDate, text string) error {
	if date.IsZero() {
		return pkgerrors.NewValidationError("date cannot be empty")
	}
	d.pages[date.String()] = append(d.pages[date.String()], text)
	return nil
}

// Entries returns a copy of the entries for date in submission order.
// An unknown date yields an empty, non-nil slice.
func (d *Diary) Entries(date valueobjects.DiaryDate) []string {
	page := d.pages[date.String()]
	out := make([]string, len(page))
	copy(out, page)
	return out
}
