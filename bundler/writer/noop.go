package writer

import (
	"context"

	"github.com/streamingfast/bstream"
	"github.com/streamingfast/dstore"
	"go.uber.org/zap"
)

var _ Writer = (*Noop)(nil)

// Noop discards records, boundaries still close so checkpoints keep moving.
type Noop struct {
	zlogger  *zap.Logger
	fileType FileType
}

func NewNoop(
	fileType FileType,
	zlogger *zap.Logger,
) *Noop {
	return &Noop{
		fileType: fileType,
		zlogger:  zlogger,
	}
}

func (n *Noop) StartBoundary(b *bstream.Range) error {
	n.zlogger.Debug("noop starting boundary", zap.Stringer("boundary", b))
	return nil
}

func (n *Noop) CloseBoundary(ctx context.Context) (Uploadeable, error) {
	return UploadeableFunc(func(context.Context, dstore.Store) (string, error) {
		return "", nil
	}), nil
}

func (n *Noop) Write(data []byte) (int, error) {
	return len(data), nil
}

func (n *Noop) Type() FileType {
	return n.fileType
}
