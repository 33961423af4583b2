package history

import (
	"context"
	"errors"
	"time"

	"github.com/isdmx/dataquery/config"
	"github.com/isdmx/dataquery/sandbox"
)

// ErrNotFound is returned by Get for an unknown run id
var ErrNotFound = errors.New("run not found")

// DefaultListLimit caps List when no positive limit is given
const DefaultListLimit = 50

// Entry is one recorded run
type Entry struct {
	ID        string          `json:"id" yaml:"id"`
	Question  string          `json:"question,omitempty" yaml:"question,omitempty"`
	Column    string          `json:"column,omitempty" yaml:"column,omitempty"`
	Script    string          `json:"script" yaml:"script"`
	Outcome   sandbox.Outcome `json:"outcome" yaml:"outcome"`
	CreatedAt time.Time       `json:"created_at" yaml:"created_at"`
}

// Store persists run entries
type Store interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, limit int) ([]Entry, error)
	Get(ctx context.Context, id string) (*Entry, error)
	Close() error
}

// NewFromConfig opens the configured store, or a no-op store when history is disabled
func NewFromConfig(cfg *config.Config) (Store, error) {
	if !cfg.History.Enabled {
		return NopStore{}, nil
	}
	return Open(cfg.History.Path)
}

// NopStore discards every entry
type NopStore struct{}

// Record does nothing
func (NopStore) Record(context.Context, Entry) error { return nil }

// List returns no entries
func (NopStore) List(context.Context, int) ([]Entry, error) { return nil, nil }

// Get never finds an entry
func (NopStore) Get(context.Context, string) (*Entry, error) { return nil, ErrNotFound }

// Close does nothing
func (NopStore) Close() error { return nil }
