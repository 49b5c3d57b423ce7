package writer

import (
	"context"
	"io"

	"github.com/streamingfast/bstream"
	"github.com/streamingfast/dstore"
)

// Writer accumulates the encoded records of one boundary at a time.
type Writer interface {
	io.Writer

	StartBoundary(*bstream.Range) error
	CloseBoundary(ctx context.Context) (Uploadeable, error)
	Type() FileType
}

// BoundaryAdjustable is implemented by writers able to shrink the active
// boundary before it is closed, used when flushing a partial boundary.
type BoundaryAdjustable interface {
	AdjustBoundary(*bstream.Range)
}

type Uploadeable interface {
	Upload(ctx context.Context, store dstore.Store) (string, error)
}

type UploadeableFunc func(ctx context.Context, store dstore.Store) (string, error)

func (f UploadeableFunc) Upload(ctx context.Context, store dstore.Store) (string, error) {
	return f(ctx, store)
}
