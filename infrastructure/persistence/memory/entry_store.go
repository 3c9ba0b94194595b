// Package memory keeps diaries in process memory. Nothing survives a restart.
package memory

import (
	"context"
	"sync"

	"github.com/maxsergeev/YD-Project-2/application/ports"
	"github.com/maxsergeev/YD-Project-2/domain/core/entities"
	"github.com/maxsergeev/YD-Project-2/domain/core/valueobjects"
)

// EntryStore is a mutex-guarded map of diaries keyed by user ID
type EntryStore struct {
	mu      sync.RWMutex
	diaries map[string]*entities.Diary
}

// NewEntryStore creates an empty in-memory store
func NewEntryStore() *EntryStore {
	return &EntryStore{
		diaries: make(map[string]*entities.Diary),
	}
}

// AppendEntry implements ports.EntryStore
func (s *EntryStore) AppendEntry(ctx context.Context, userID valueobjects.UserID, date valueobjects.DiaryDate, text string) (ports.AppendResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.AppendResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	diary, ok := s.diaries[userID.String()]
	if !ok {
		var err error
		diary, err = entities.NewDiary(userID)
		if err != nil {
			return ports.AppendResult{}, err
		}
	}
	if err := diary.Append(date, text); err != nil {
		return ports.AppendResult{}, err
	}
	s.diaries[diary.UserID().String()] = diary

	return ports.AppendResult{CreatedNewUser: !ok}, nil
}

// GetEntries implements ports.EntryStore
func (s *EntryStore) GetEntries(ctx context.Context, userID valueobjects.UserID, date valueobjects.DiaryDate) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	diary, ok := s.diaries[userID.String()]
	if !ok {
		return []string{}, nil
	}
	return diary.Entries(date), nil
}

// Ping implements ports.EntryStore
func (s *EntryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close implements ports.EntryStore
func (s *EntryStore) Close() error {
	return nil
}

// UserCount returns the number of diaries held
func (s *EntryStore) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.diaries)
}

var _ ports.EntryStore = (*EntryStore)(nil)
