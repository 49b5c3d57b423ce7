package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/streamingfast/shutter"
	"github.com/streamingfast/substreams-cursor-source/cursor"
	"github.com/streamingfast/substreams-cursor-source/split"
	pbsubstreamsrpc "github.com/streamingfast/substreams/pb/sf/substreams/rpc/v2"
	pbsubstreams "github.com/streamingfast/substreams/pb/sf/substreams/v1"
	"go.uber.org/zap"
)

// RecordHandler receives every record in stream order. Returning an error
// stops the consumer, the record is considered not acknowledged.
type RecordHandler func(ctx context.Context, record *Record) error

// ParkedHandler is invoked each time the consumer parks, before waiting.
type ParkedHandler func(ctx context.Context, reason ParkReason) error

type Option func(c *Consumer)

func WithFinalBlocksOnly(enabled bool) Option {
	return func(c *Consumer) { c.finalBlocksOnly = enabled }
}

func WithProductionMode(enabled bool) Option {
	return func(c *Consumer) { c.productionMode = enabled }
}

func WithParkedHandler(handler ParkedHandler) Option {
	return func(c *Consumer) { c.onParked = handler }
}

var errStopBlockReached = errors.New("stop block reached")

// Consumer drives the block stream of a single split.
type Consumer struct {
	*shutter.Shutter

	descriptor *split.Descriptor
	client     Client
	modules    *pbsubstreams.Modules

	finalBlocksOnly bool
	productionMode  bool
	onParked        ParkedHandler

	state      atomic.Int32
	running    atomic.Bool
	wake       chan struct{}
	parkReason ParkReason

	mu        sync.RWMutex
	cursor    *cursor.Cursor
	opaque    string
	cancelRun context.CancelFunc

	zlogger *zap.Logger
}

// NewFromSplits builds the consumer of the only split in splits. Nothing else
// than exactly one split is supported.
func NewFromSplits(splits []*split.Descriptor, client Client, modules *pbsubstreams.Modules, zlogger *zap.Logger, opts ...Option) (*Consumer, error) {
	if len(splits) != 1 {
		return nil, fmt.Errorf("expected exactly one split, got %d", len(splits))
	}

	return New(splits[0], client, modules, zlogger, opts...)
}

func New(descriptor *split.Descriptor, client Client, modules *pbsubstreams.Modules, zlogger *zap.Logger, opts ...Option) (*Consumer, error) {
	resume, err := descriptor.Cursor()
	if err != nil {
		return nil, fmt.Errorf("resume cursor of split %q: %w", descriptor.ID(), err)
	}

	c := &Consumer{
		Shutter:    shutter.New(),
		descriptor: descriptor,
		client:     client,
		modules:    modules,
		wake:       make(chan struct{}, 1),
		cursor:     resume,
		opaque:     descriptor.ResumeCursor,
		zlogger:    zlogger.With(zap.String("split_id", descriptor.ID())),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.OnTerminating(func(_ error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.cancelRun != nil {
			c.cancelRun()
		}
	})

	return c, nil
}

func (c *Consumer) State() State {
	return State(c.state.Load())
}

func (c *Consumer) ParkReason() ParkReason {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.parkReason
}

// Token is the opaque form of Cursor, exactly as the server issued it.
func (c *Consumer) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.opaque
}

// Cursor returns the position of the last record handed to the handler, or
// the resume cursor when nothing was emitted yet.
func (c *Consumer) Cursor() *cursor.Cursor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cursor
}

// Wake asks a parked consumer to reconnect. It never blocks, waking a
// consumer that is not parked is recorded and consumed at the next park.
func (c *Consumer) Wake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Run consumes the split until the context is cancelled, the handler fails
// or the stream faults. It may be called again after it returned.
func (c *Consumer) Run(ctx context.Context, handler RecordHandler) error {
	if !c.running.CompareAndSwap(false, true) {
		return fmt.Errorf("consumer of split %q is already running", c.descriptor.ID())
	}
	defer c.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.cancelRun = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.cancelRun = nil
		c.mu.Unlock()
	}()

	if c.IsTerminating() {
		cancel()
	}

	for {
		if c.descriptor.IsComplete(c.Cursor()) {
			if err := c.park(ctx, ParkReasonEndOfRange); err != nil {
				return err
			}
			continue
		}

		err := c.streamOnce(ctx, handler)
		switch {
		case err == nil:
			if err := c.park(ctx, ParkReasonCaughtUp); err != nil {
				return err
			}

		case errors.Is(err, errStopBlockReached):
			if err := c.park(ctx, ParkReasonEndOfRange); err != nil {
				return err
			}

		case ctx.Err() != nil:
			c.setState(StateIdle)
			return ctx.Err()

		default:
			c.setState(StateFaulted)
			SubstreamsErrorCount.Inc()
			return err
		}
	}
}

func (c *Consumer) park(ctx context.Context, reason ParkReason) error {
	c.mu.Lock()
	c.parkReason = reason
	c.mu.Unlock()
	c.setState(StateParked)

	c.zlogger.Info("consumer parked", zap.String("reason", string(reason)), zap.Stringer("cursor", c.Cursor()))

	if c.onParked != nil {
		if err := c.onParked(ctx, reason); err != nil {
			c.setState(StateFaulted)
			return fmt.Errorf("parked handler: %w", err)
		}
	}

	select {
	case <-ctx.Done():
		c.setState(StateIdle)
		return ctx.Err()
	case <-c.wake:
		c.zlogger.Debug("consumer woken up", zap.String("reason", string(reason)))
		c.mu.Lock()
		c.parkReason = ParkReasonNone
		c.mu.Unlock()
		return nil
	}
}

func (c *Consumer) streamOnce(ctx context.Context, handler RecordHandler) error {
	c.setState(StateConnecting)

	req := c.request()
	c.zlogger.Info("connecting to substreams endpoint",
		zap.String("endpoint", c.descriptor.Endpoint),
		zap.String("output_module", req.OutputModule),
		zap.Int64("start_block", req.StartBlockNum),
		zap.Uint64("stop_block", req.StopBlockNum),
		zap.Bool("with_cursor", req.StartCursor != ""),
	)

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	responses, err := c.client.Blocks(streamCtx, req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransportError{Op: "connect", Err: err}
	}

	c.setState(StateStreaming)

	for {
		resp, err := responses.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			if errors.Is(err, io.EOF) {
				c.zlogger.Info("substreams stream ended", zap.Stringer("cursor", c.Cursor()))
				return nil
			}

			return &TransportError{Op: "receive", Err: err}
		}

		if err := c.handleResponse(ctx, resp, handler); err != nil {
			return err
		}
	}
}

func (c *Consumer) request() *pbsubstreamsrpc.Request {
	c.mu.RLock()
	opaque := c.opaque
	c.mu.RUnlock()

	return &pbsubstreamsrpc.Request{
		StartBlockNum:   int64(c.descriptor.StartBlock),
		StartCursor:     opaque,
		StopBlockNum:    c.descriptor.StopBlock,
		FinalBlocksOnly: c.finalBlocksOnly,
		ProductionMode:  c.productionMode,
		OutputModule:    c.descriptor.Module,
		Modules:         c.modules,
	}
}

func (c *Consumer) handleResponse(ctx context.Context, resp *pbsubstreamsrpc.Response, handler RecordHandler) error {
	switch r := resp.Message.(type) {
	case *pbsubstreamsrpc.Response_BlockScopedData:
		record, err := c.newBlockRecord(r.BlockScopedData)
		if err != nil {
			return err
		}

		if c.descriptor.StopBlock > 0 && record.BlockNumber >= c.descriptor.StopBlock {
			return errStopBlockReached
		}

		BlockCount.Inc()
		HeadBlockNumber.SetUint64(record.BlockNumber)
		return c.emit(ctx, record, handler)

	case *pbsubstreamsrpc.Response_BlockUndoSignal:
		record, err := c.newRetractionRecord(r.BlockUndoSignal)
		if err != nil {
			return err
		}

		c.zlogger.Info("undo signal received", zap.Uint64("last_valid_block_num", record.BlockNumber), zap.String("last_valid_block_id", record.BlockID))
		UndoCount.Inc()
		return c.emit(ctx, record, handler)

	case *pbsubstreamsrpc.Response_Progress:
		for _, module := range r.Progress.GetModulesStats() {
			ProgressMessageCount.Inc(module.GetName())
		}

	case *pbsubstreamsrpc.Response_Session:
		c.zlogger.Info("session initialized",
			zap.String("trace_id", r.Session.GetTraceId()),
			zap.Uint64("resolved_start_block", r.Session.GetResolvedStartBlock()),
		)

	case *pbsubstreamsrpc.Response_FatalError:
		return &RemoteFatalError{Module: r.FatalError.GetModule(), Reason: r.FatalError.GetReason()}

	case nil:
		return &StructuralError{Event: "response", Field: "message"}

	default:
		c.zlogger.Debug("ignoring unhandled response message", zap.String("type", fmt.Sprintf("%T", r)))
	}

	return nil
}

func (c *Consumer) emit(ctx context.Context, record *Record, handler RecordHandler) error {
	if err := handler(ctx, record); err != nil {
		return fmt.Errorf("handle record at block %d: %w", record.BlockNumber, err)
	}

	c.mu.Lock()
	c.cursor = record.Position
	c.opaque = record.Cursor
	c.mu.Unlock()

	return nil
}

func (c *Consumer) newBlockRecord(data *pbsubstreamsrpc.BlockScopedData) (*Record, error) {
	if data.Clock == nil {
		return nil, &StructuralError{Event: "block scoped data", Field: "clock"}
	}

	if data.Output == nil || data.Output.MapOutput == nil {
		return nil, &StructuralError{Event: "block scoped data", Field: "output"}
	}

	if data.Cursor == "" {
		return nil, &StructuralError{Event: "block scoped data", Field: "cursor"}
	}

	position, err := cursor.FromOpaque(data.Cursor)
	if err != nil {
		return nil, fmt.Errorf("cursor of block %d: %w", data.Clock.Number, err)
	}

	record := &Record{
		SplitID:          c.descriptor.ID(),
		Key:              RecordKey(data.Clock.Number),
		Payload:          data.Output.MapOutput.GetValue(),
		Cursor:           data.Cursor,
		Position:         position,
		Step:             position.Step,
		BlockNumber:      data.Clock.Number,
		BlockID:          data.Clock.Id,
		FinalBlockHeight: data.FinalBlockHeight,
	}

	if data.Clock.Timestamp != nil {
		record.Timestamp = data.Clock.Timestamp.AsTime()
	}

	return record, nil
}

func (c *Consumer) newRetractionRecord(undo *pbsubstreamsrpc.BlockUndoSignal) (*Record, error) {
	if undo.LastValidBlock == nil {
		return nil, &StructuralError{Event: "block undo signal", Field: "last valid block"}
	}

	if undo.LastValidCursor == "" {
		return nil, &StructuralError{Event: "block undo signal", Field: "last valid cursor"}
	}

	position, err := cursor.FromOpaque(undo.LastValidCursor)
	if err != nil {
		return nil, fmt.Errorf("last valid cursor: %w", err)
	}

	return &Record{
		SplitID:     c.descriptor.ID(),
		Key:         RecordKey(undo.LastValidBlock.Number),
		Cursor:      undo.LastValidCursor,
		Position:    position,
		Step:        cursor.StepUndo,
		BlockNumber: undo.LastValidBlock.Number,
		BlockID:     undo.LastValidBlock.Id,
	}, nil
}

func (c *Consumer) setState(state State) {
	previous := State(c.state.Swap(int32(state)))
	if previous != state {
		c.zlogger.Debug("consumer state changed", zap.Stringer("from", previous), zap.Stringer("to", state))
	}
}
