package bundler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/streamingfast/bstream"
	"github.com/streamingfast/dhammer"
	"github.com/streamingfast/dstore"
	"github.com/streamingfast/shutter"
	"github.com/streamingfast/substreams-cursor-source/bundler/writer"
	"github.com/streamingfast/substreams-cursor-source/encoder"
	"github.com/streamingfast/substreams-cursor-source/state"
	"github.com/streamingfast/substreams-cursor-source/stream"
	"go.uber.org/zap"
)

// Bundler groups records into files of blockCount blocks. The checkpoint
// covering a file is saved only once that file is uploaded.
type Bundler struct {
	*shutter.Shutter

	blockCount     uint64
	stats          *boundaryStats
	boundaryWriter writer.Writer
	encoder        encoder.Encoder
	outputStore    dstore.Store
	tracker        *state.Tracker

	activeBoundary     *bstream.Range
	lastProcessedBlock uint64

	uploadQueue *dhammer.Nailer
	uploadsDone chan struct{}

	// queueLock serializes sends to the upload queue with its closing.
	queueLock   sync.Mutex
	queueClosed bool

	zlogger *zap.Logger
}

var ErrBundlerClosed = errors.New("bundler is closed")

func New(
	blockCount uint64,
	boundaryWriter writer.Writer,
	encoder encoder.Encoder,
	tracker *state.Tracker,
	outputStore dstore.Store,
	zlogger *zap.Logger,
) (*Bundler, error) {
	if blockCount == 0 {
		return nil, fmt.Errorf("block count must be greater than 0")
	}

	b := &Bundler{
		Shutter:        shutter.New(),
		blockCount:     blockCount,
		stats:          newStats(),
		boundaryWriter: boundaryWriter,
		encoder:        encoder,
		outputStore:    outputStore,
		tracker:        tracker,
		zlogger:        zlogger,
	}

	b.uploadQueue = dhammer.NewNailer(5, b.uploadBoundary, dhammer.NailerLogger(zlogger))

	return b, nil
}

func (b *Bundler) Launch(ctx context.Context) {
	b.OnTerminating(func(err error) {
		b.zlogger.Info("shutting down bundler", zap.Error(err))
		b.Close()
	})

	b.uploadsDone = make(chan struct{})
	b.uploadQueue.Start(ctx)

	go func() {
		defer close(b.uploadsDone)

		failed := false
		for v := range b.uploadQueue.Out {
			if failed {
				continue
			}

			bf := v.(*boundaryFile)
			if err := bf.state.Save(ctx); err != nil {
				failed = true
				go b.Shutdown(fmt.Errorf("unable to save state: %w", err))
				continue
			}
			b.zlogger.Debug("checkpoint saved", zap.String("boundary", bf.name))
		}

		if err := b.uploadQueue.Err(); err != nil {
			go b.Shutdown(fmt.Errorf("upload queue failed: %w", err))
		}
	}()
}

// Close waits for queued boundaries to be uploaded and their checkpoints
// saved. The active boundary is not flushed.
func (b *Bundler) Close() {
	b.queueLock.Lock()
	if b.queueClosed {
		b.queueLock.Unlock()
		return
	}
	b.queueClosed = true
	b.zlogger.Info("closing upload queue")
	b.uploadQueue.Close()
	b.queueLock.Unlock()

	b.zlogger.Info("waiting till queue is drained")
	b.uploadQueue.WaitUntilEmpty(context.Background())

	if b.uploadsDone != nil {
		<-b.uploadsDone
	}
	b.zlogger.Info("boundary uploaded completed")
}

func (b *Bundler) ActiveBoundary() *bstream.Range {
	return b.activeBoundary
}

// HandleRecord writes record to the active boundary, rolling to a new one
// first when record is past its end. Retractions never roll.
func (b *Bundler) HandleRecord(ctx context.Context, record *stream.Record) error {
	t0 := time.Now()

	if err := b.roll(ctx, record.BlockNumber); err != nil {
		return fmt.Errorf("roll to block %d: %w", record.BlockNumber, err)
	}

	if err := b.encoder.EncodeTo(record, b.boundaryWriter); err != nil {
		return fmt.Errorf("encode record %q: %w", record.Key, err)
	}

	if record.BlockNumber > b.lastProcessedBlock {
		b.lastProcessedBlock = record.BlockNumber
	}

	b.tracker.SetCursor(record.Cursor, record.Position)
	b.stats.addRecord(time.Since(t0))
	return nil
}

// Flush closes the active boundary at the last processed block so everything
// handled so far gets uploaded and checkpointed. It is a no-op when the
// active boundary holds no record.
func (b *Bundler) Flush(ctx context.Context) error {
	if b.activeBoundary == nil || b.stats.records == 0 {
		return nil
	}

	flushed := bstream.NewRangeExcludingEnd(b.activeBoundary.StartBlock(), b.lastProcessedBlock+1)
	b.zlogger.Info("flushing partial boundary",
		zap.Stringer("active_boundary", b.activeBoundary),
		zap.Stringer("flushed_boundary", flushed),
	)

	if adjustable, ok := b.boundaryWriter.(writer.BoundaryAdjustable); ok {
		adjustable.AdjustBoundary(flushed)
	}
	b.activeBoundary = flushed

	return b.stop(ctx)
}

func (b *Bundler) roll(ctx context.Context, blockNum uint64) error {
	if b.activeBoundary == nil {
		return b.start(blockNum)
	}

	if blockNum < *b.activeBoundary.EndBlock() {
		return nil
	}

	boundaries := boundariesToSkip(b.activeBoundary, blockNum, b.blockCount)

	b.zlogger.Debug("block_num is not in active boundary",
		zap.Stringer("active_boundary", b.activeBoundary),
		zap.Int("boundaries_to_skip", len(boundaries)),
		zap.Uint64("block_num", blockNum),
	)

	if err := b.stop(ctx); err != nil {
		return fmt.Errorf("stop active boundary: %w", err)
	}

	for _, boundary := range boundaries {
		if err := b.start(boundary.StartBlock()); err != nil {
			return fmt.Errorf("start skipping boundary: %w", err)
		}
		if err := b.stop(ctx); err != nil {
			return fmt.Errorf("stop skipping boundary: %w", err)
		}
	}

	return b.start(blockNum)
}

func (b *Bundler) start(blockNum uint64) error {
	boundaryRange := bstream.NewRangeExcludingEnd(blockNum, computeEndBlock(blockNum, b.blockCount))

	if err := b.boundaryWriter.StartBoundary(boundaryRange); err != nil {
		return fmt.Errorf("start file: %w", err)
	}

	b.activeBoundary = boundaryRange
	b.stats.startBoundary(boundaryRange)
	b.zlogger.Debug("boundary started", zap.Stringer("boundary", boundaryRange))
	return nil
}

func (b *Bundler) stop(ctx context.Context) error {
	file, err := b.boundaryWriter.CloseBoundary(ctx)
	if err != nil {
		return fmt.Errorf("closing file: %w", err)
	}

	state, err := b.tracker.GetState()
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	if err := b.enqueue(ctx, &boundaryFile{name: b.activeBoundary.String(), file: file, state: state}); err != nil {
		return err
	}

	b.activeBoundary = nil
	b.stats.endBoundary()
	b.zlogger.Info("bundler stats", b.stats.Log()...)
	return nil
}

func (b *Bundler) enqueue(ctx context.Context, bf *boundaryFile) error {
	b.queueLock.Lock()
	defer b.queueLock.Unlock()

	if b.queueClosed {
		return ErrBundlerClosed
	}

	b.zlogger.Debug("queuing boundary upload", zap.String("boundary", bf.name))
	select {
	case b.uploadQueue.In <- bf:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.Terminating():
		return ErrBundlerClosed
	}
}

func boundariesToSkip(lastBoundary *bstream.Range, blockNum uint64, size uint64) (out []*bstream.Range) {
	iter := *lastBoundary.EndBlock()
	endBlock := computeEndBlock(iter, size)
	for blockNum >= endBlock {
		out = append(out, bstream.NewRangeExcludingEnd(iter, endBlock))
		iter = endBlock
		endBlock = computeEndBlock(iter, size)
	}
	return out
}

// computeEndBlock is the first multiple of size strictly above startBlockNum.
func computeEndBlock(startBlockNum, size uint64) uint64 {
	return (startBlockNum + size) - (startBlockNum+size)%size
}

type boundaryFile struct {
	name  string
	file  writer.Uploadeable
	state state.Saveable
}

func (b *Bundler) uploadBoundary(ctx context.Context, v interface{}) (interface{}, error) {
	bf := v.(*boundaryFile)

	outputPath, err := bf.file.Upload(ctx, b.outputStore)
	if err != nil {
		return nil, fmt.Errorf("unable to upload: %w", err)
	}

	b.zlogger.Info("boundary uploaded",
		zap.String("boundary", bf.name),
		zap.String("output_path", outputPath),
	)

	return bf, nil
}
