package storage

import (
	"context"
	"errors"
	"time"

	"github.com/michaelbrown/decipher/internal/trace"
)

// ErrNotFound is returned when no entry matches an ID or ID prefix.
var ErrNotFound = errors.New("entry not found")

// Entry is one saved code submission.
type Entry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Code      string    `json:"code"`
	Language  string    `json:"language"`
	Inputs    []string  `json:"inputs"`
	Outcome   string    `json:"outcome,omitempty"` // final sandbox state, empty if never run
	Error     string    `json:"error,omitempty"`
	StepCount int       `json:"step_count"`
	CreatedAt time.Time `json:"created_at"`
}

// ListOptions controls pagination for ListEntries.
type ListOptions struct {
	Limit  int
	Offset int
}

// Store is the persistence interface for code history.
type Store interface {
	// SaveEntry inserts a new entry. The ID field must be set by the caller.
	// tr may be nil for submissions that were saved without running.
	SaveEntry(ctx context.Context, e *Entry, tr *trace.Trace) error

	// GetEntry returns an entry by ID or ID prefix.
	GetEntry(ctx context.Context, id string) (*Entry, error)

	// ListEntries returns a user's entries, newest first.
	ListEntries(ctx context.Context, userID string, opts ListOptions) ([]Entry, error)

	// LoadTrace returns the trace stored with an entry, or nil.
	LoadTrace(ctx context.Context, id string) (*trace.Trace, error)

	// DeleteEntry removes an entry and its trace.
	DeleteEntry(ctx context.Context, id string) error

	// ClearUser removes all of a user's entries and reports how many.
	ClearUser(ctx context.Context, userID string) (int, error)

	// Close releases resources.
	Close() error
}
