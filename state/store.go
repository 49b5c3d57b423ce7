package state

import (
	"context"
	"fmt"
	"strings"

	"github.com/streamingfast/substreams-cursor-source/cursor"
)

// Checkpointer persists one checkpoint per split identity. Absence of a
// checkpoint is reported as a nil checkpoint and a nil error, a checkpoint
// that exists but cannot be decoded is an error.
//
// Implementations accept one writer per split id at a time, the split owner.
type Checkpointer interface {
	Load(ctx context.Context, splitID string) (*Checkpoint, error)
	Save(ctx context.Context, splitID string, checkpoint *Checkpoint) error
}

// Checkpoint is a resume point. Token is stored and handed back to the
// server exactly as it was issued, Cursor is its decoded form.
type Checkpoint struct {
	Token  string
	Cursor *cursor.Cursor
}

// NewCheckpoint decodes token, failing with a *cursor.DecodeError.
func NewCheckpoint(token string) (*Checkpoint, error) {
	c, err := cursor.FromOpaque(token)
	if err != nil {
		return nil, err
	}

	return &Checkpoint{Token: token, Cursor: c}, nil
}

// Saveable is a frozen checkpoint that can be persisted later, typically
// once the data it covers has been durably written.
type Saveable interface {
	Save(ctx context.Context) error
}

// Tracker follows the latest cursor of a single split and hands out
// snapshots of it.
type Tracker struct {
	checkpointer Checkpointer
	splitID      string

	current *Checkpoint
}

func NewTracker(checkpointer Checkpointer, splitID string) *Tracker {
	return &Tracker{
		checkpointer: checkpointer,
		splitID:      splitID,
	}
}

func (t *Tracker) SplitID() string {
	return t.splitID
}

func (t *Tracker) ReadCheckpoint(ctx context.Context) (*Checkpoint, error) {
	return t.checkpointer.Load(ctx, t.splitID)
}

// SetCursor records token, as issued by the server, and its decoded form c.
// A nil c clears the tracker.
func (t *Tracker) SetCursor(token string, c *cursor.Cursor) {
	if c == nil {
		t.current = nil
		return
	}

	t.current = &Checkpoint{Token: token, Cursor: c}
}

func (t *Tracker) Cursor() *cursor.Cursor {
	if t.current == nil {
		return nil
	}
	return t.current.Cursor
}

func (t *Tracker) GetState() (Saveable, error) {
	if t.current == nil {
		return noopSaveable{}, nil
	}

	snapshot := *t.current.Cursor
	return &trackedState{
		checkpointer: t.checkpointer,
		splitID:      t.splitID,
		checkpoint:   &Checkpoint{Token: t.current.Token, Cursor: &snapshot},
	}, nil
}

type trackedState struct {
	checkpointer Checkpointer
	splitID      string
	checkpoint   *Checkpoint
}

func (s *trackedState) Save(ctx context.Context) error {
	return s.checkpointer.Save(ctx, s.splitID, s.checkpoint)
}

type noopSaveable struct{}

func (noopSaveable) Save(context.Context) error { return nil }

// Scheme returns the lowercased scheme of a store URL, or an empty string
// when there is none.
func Scheme(storeURL string) string {
	idx := strings.Index(storeURL, "://")
	if idx <= 0 {
		return ""
	}

	return strings.ToLower(storeURL[:idx])
}

func validateSplitID(splitID string) error {
	if splitID == "" {
		return fmt.Errorf("split id is empty")
	}

	return nil
}
