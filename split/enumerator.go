package split

import (
	"context"
	"fmt"

	"github.com/streamingfast/substreams-cursor-source/state"
	"go.uber.org/zap"
)

// Enumerator decides at start up whether work remains. It never splits the
// block range, at most one descriptor is produced per call.
type Enumerator struct {
	config       *Config
	checkpointer state.Checkpointer
	zlogger      *zap.Logger
}

func NewEnumerator(config *Config, checkpointer state.Checkpointer, zlogger *zap.Logger) *Enumerator {
	return &Enumerator{
		config:       config,
		checkpointer: checkpointer,
		zlogger:      zlogger,
	}
}

func (e *Enumerator) ListSplits(ctx context.Context) ([]*Descriptor, error) {
	splitID := NewDescriptor(e.config, "").ID()

	checkpoint, err := e.checkpointer.Load(ctx, splitID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint of split %q: %w", splitID, err)
	}

	if checkpoint == nil {
		e.zlogger.Info("no cursor found, starting from configured start block",
			zap.String("split_id", splitID),
			zap.Uint64("start_block", e.config.StartBlock),
		)
		return []*Descriptor{NewDescriptor(e.config, "")}, nil
	}

	c := checkpoint.Cursor
	descriptor := NewDescriptor(e.config, checkpoint.Token)

	e.zlogger.Info("cursor found", zap.String("split_id", splitID), zap.Object("cursor", c))
	if descriptor.IsComplete(c) {
		e.zlogger.Info("stop block reached, no split left",
			zap.Uint64("stop_block", e.config.StopBlock),
			zap.Uint64("cursor_block", c.Block.Num),
		)
		return []*Descriptor{}, nil
	}

	return []*Descriptor{descriptor}, nil
}
