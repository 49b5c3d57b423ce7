package state

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/streamingfast/derr"
	"github.com/streamingfast/dstore"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var _ Checkpointer = (*DStoreCheckpointer)(nil)

// DStoreCheckpointer keeps one YAML state file per split in a dstore, so any
// backend dstore supports (local, gs://, s3://, az://) can hold checkpoints.
type DStoreCheckpointer struct {
	store         dstore.Store
	retryAttempts uint64
	zlogger       *zap.Logger
}

func NewDStoreCheckpointer(store dstore.Store, zlogger *zap.Logger) *DStoreCheckpointer {
	return &DStoreCheckpointer{
		store:         store,
		retryAttempts: 3,
		zlogger:       zlogger,
	}
}

type syncState struct {
	SplitID string     `yaml:"split_id"`
	Cursor  string     `yaml:"cursor"`
	Block   blockState `yaml:"block"`
	Step    string     `yaml:"step"`

	LastSyncedAt time.Time `yaml:"last_synced_at,omitempty"`
}

type blockState struct {
	ID     string `yaml:"id"`
	Number uint64 `yaml:"number"`
}

// StateFilename is the object name holding the checkpoint of splitID. Split
// ids embed URLs, the name is derived from their hash.
func StateFilename(splitID string) string {
	sum := sha256.Sum256([]byte(splitID))
	return "state-" + hex.EncodeToString(sum[:8]) + ".yaml"
}

func (s *DStoreCheckpointer) Load(ctx context.Context, splitID string) (*Checkpoint, error) {
	if err := validateSplitID(splitID); err != nil {
		return nil, err
	}

	filename := StateFilename(splitID)
	exists, err := s.store.FileExists(ctx, filename)
	if err != nil {
		return nil, fmt.Errorf("check state file %q: %w", filename, err)
	}

	if !exists {
		s.zlogger.Info("no checkpoint found", zap.String("split_id", splitID), zap.String("filename", filename))
		return nil, nil
	}

	reader, err := s.store.OpenObject(ctx, filename)
	if err != nil {
		if errors.Is(err, dstore.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("open state file %q: %w", filename, err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read state file %q: %w", filename, err)
	}

	state := &syncState{}
	if err := yaml.Unmarshal(content, state); err != nil {
		return nil, fmt.Errorf("unmarshal state file %q: %w", filename, err)
	}

	if state.SplitID != "" && state.SplitID != splitID {
		return nil, fmt.Errorf("state file %q belongs to split %q, not %q", filename, state.SplitID, splitID)
	}

	checkpoint, err := NewCheckpoint(state.Cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor of state file %q: %w", filename, err)
	}

	return checkpoint, nil
}

func (s *DStoreCheckpointer) Save(ctx context.Context, splitID string, checkpoint *Checkpoint) error {
	if err := validateSplitID(splitID); err != nil {
		return err
	}

	c := checkpoint.Cursor
	content, err := yaml.Marshal(&syncState{
		SplitID:      splitID,
		Cursor:       checkpoint.Token,
		Block:        blockState{ID: c.Block.ID, Number: c.Block.Num},
		Step:         c.Step.String(),
		LastSyncedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("unable to marshal state: %w", err)
	}

	filename := StateFilename(splitID)
	s.zlogger.Debug("saving checkpoint", zap.String("filename", filename), zap.Object("cursor", c))

	err = derr.Retry(s.retryAttempts, func(ctx context.Context) error {
		return s.store.WriteObject(ctx, filename, bytes.NewReader(content))
	})
	if err != nil {
		return fmt.Errorf("unable to write state file %q: %w", filename, err)
	}

	return nil
}
