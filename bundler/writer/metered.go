package writer

import (
	"context"
	"time"

	"github.com/streamingfast/bstream"
	"github.com/streamingfast/dstore"
	"go.uber.org/zap"
)

var _ Writer = (*Metered)(nil)

// Metered times how long boundaries take to fill and to upload.
type Metered struct {
	w       Writer
	stats   *stats
	zlogger *zap.Logger
}

func NewMeteredWriter(writer Writer, zlogger *zap.Logger) *Metered {
	return &Metered{
		w:       writer,
		stats:   newStats(),
		zlogger: zlogger,
	}
}

func (m *Metered) Write(data []byte) (int, error) {
	return m.w.Write(data)
}

func (m *Metered) Type() FileType {
	return m.w.Type()
}

func (m *Metered) AdjustBoundary(blockRange *bstream.Range) {
	if adjustable, ok := m.w.(BoundaryAdjustable); ok {
		adjustable.AdjustBoundary(blockRange)
	}
}

func (m *Metered) StartBoundary(b *bstream.Range) error {
	if err := m.w.StartBoundary(b); err != nil {
		return err
	}
	m.stats.startCollecting()
	return nil
}

func (m *Metered) CloseBoundary(ctx context.Context) (Uploadeable, error) {
	file, err := m.w.CloseBoundary(ctx)
	if err != nil {
		return nil, err
	}
	m.stats.stopCollecting()

	return UploadeableFunc(func(ctx context.Context, store dstore.Store) (string, error) {
		t0 := time.Now()
		path, err := file.Upload(ctx, store)
		if err != nil {
			return "", err
		}
		m.stats.addUpload(time.Since(t0))

		m.zlogger.Info("writer stats", zap.Object("stats", m.stats))
		return path, nil
	}), nil
}
