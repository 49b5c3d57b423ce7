package state

import (
	"context"
	"sync"
)

var _ Checkpointer = (*MemoryCheckpointer)(nil)

type MemoryCheckpointer struct {
	mu     sync.Mutex
	tokens map[string]string
}

func NewMemoryCheckpointer() *MemoryCheckpointer {
	return &MemoryCheckpointer{tokens: map[string]string{}}
}

func (m *MemoryCheckpointer) Load(_ context.Context, splitID string) (*Checkpoint, error) {
	m.mu.Lock()
	token, found := m.tokens[splitID]
	m.mu.Unlock()

	if !found {
		return nil, nil
	}

	return NewCheckpoint(token)
}

func (m *MemoryCheckpointer) Save(_ context.Context, splitID string, checkpoint *Checkpoint) error {
	if err := validateSplitID(splitID); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.tokens[splitID] = checkpoint.Token
	return nil
}

// SetToken stores a raw token, letting tests plant corrupted checkpoints.
func (m *MemoryCheckpointer) SetToken(splitID string, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tokens[splitID] = token
}
