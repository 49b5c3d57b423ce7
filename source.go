package substreams_source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/streamingfast/logging"
	"github.com/streamingfast/shutter"
	"github.com/streamingfast/substreams-cursor-source/bundler"
	"github.com/streamingfast/substreams-cursor-source/split"
	"github.com/streamingfast/substreams-cursor-source/state"
	"github.com/streamingfast/substreams-cursor-source/stream"
	"go.uber.org/zap"
)

const DefaultReconnectDelay = 5 * time.Second

func RegisterMetrics() {
	stream.RegisterMetrics()
}

// Source consumes the configured split and bundles its records into files,
// checkpointing the cursor once each file is uploaded.
type Source struct {
	*shutter.Shutter

	config       *Config
	client       stream.Client
	checkpointer state.Checkpointer

	mu         sync.Mutex
	running    bool
	descriptor *split.Descriptor
	consumer   *stream.Consumer
	bundler    *bundler.Bundler

	logger *zap.Logger
	tracer logging.Tracer
}

func New(config *Config, client stream.Client, checkpointer state.Checkpointer, logger *zap.Logger, tracer logging.Tracer) *Source {
	if config.ReconnectDelay == 0 {
		config.ReconnectDelay = DefaultReconnectDelay
	}

	return &Source{
		Shutter:      shutter.New(),
		config:       config,
		client:       client,
		checkpointer: checkpointer,
		logger:       logger,
		tracer:       tracer,
	}
}

var ErrSourceRunning = errors.New("source is running")

// Run returns nil when there is nothing left to consume or when the source
// was shut down. Queued uploads and their checkpoints are drained before it
// returns.
func (s *Source) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSourceRunning
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	module, err := s.config.outputModule()
	if err != nil {
		return fmt.Errorf("invalid output module: %w", err)
	}

	splits, err := split.NewEnumerator(s.config.Split, s.checkpointer, s.logger).ListSplits(ctx)
	if err != nil {
		return fmt.Errorf("list splits: %w", err)
	}

	if len(splits) == 0 {
		s.logger.Info("stop block already reached, nothing to consume", zap.Uint64("stop_block", s.config.Split.StopBlock))
		return nil
	}

	consumer, err := stream.NewFromSplits(splits, s.client, s.config.Pkg.Modules, s.logger,
		stream.WithFinalBlocksOnly(s.config.FinalBlocksOnly),
		stream.WithProductionMode(s.config.ProductionMode),
		stream.WithParkedHandler(s.onParked),
	)
	if err != nil {
		return fmt.Errorf("new consumer: %w", err)
	}

	tracker := state.NewTracker(s.checkpointer, splits[0].ID())
	tracker.SetCursor(consumer.Token(), consumer.Cursor())

	boundaryWriter, err := s.config.getBoundaryWriter(s.logger)
	if err != nil {
		return fmt.Errorf("boundary writer: %w", err)
	}

	recordEncoder, err := s.config.getEncoder(module)
	if err != nil {
		return fmt.Errorf("encoder: %w", err)
	}

	b, err := bundler.New(s.config.BlockPerFile, boundaryWriter, recordEncoder, tracker, s.config.FileOutputStore, s.logger)
	if err != nil {
		return fmt.Errorf("new bundler: %w", err)
	}

	s.mu.Lock()
	s.descriptor = splits[0]
	s.consumer = consumer
	s.bundler = b
	s.mu.Unlock()

	s.logger.Info("setting up source",
		zap.String("split_id", splits[0].ID()),
		zap.Uint64("start_block", splits[0].StartBlock),
		zap.Uint64("stop_block", splits[0].StopBlock),
		zap.Stringer("cursor", consumer.Cursor()),
	)

	// Uploads and checkpoint saves must survive the cancellation that stops
	// the stream, they are drained once consumption returned.
	b.Launch(context.WithoutCancel(ctx))
	b.OnTerminating(s.Shutdown)
	s.OnTerminating(func(err error) {
		s.logger.Info("source terminating, shutting down consumer")
		consumer.Shutdown(err)
	})
	if s.IsTerminating() {
		consumer.Shutdown(s.Err())
	}

	err = s.consume(ctx, consumer, b)

	s.logger.Info("consumption ended, shutting down bundler", zap.Error(err))
	b.Shutdown(err)
	<-b.Terminated()

	if err == nil {
		err = b.Err()
	}
	return err
}

func (s *Source) consume(ctx context.Context, consumer *stream.Consumer, b *bundler.Bundler) error {
	handler := func(ctx context.Context, record *stream.Record) error {
		if s.tracer.Enabled() {
			s.logger.Debug("handling record", zap.Object("record", record))
		}
		return b.HandleRecord(ctx, record)
	}

	for {
		err := consumer.Run(ctx, handler)
		if s.IsTerminating() {
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		var transportErr *stream.TransportError
		if !errors.As(err, &transportErr) || !transportErr.Retryable() {
			return err
		}

		s.logger.Warn("substreams stream faulted, reconnecting", zap.Error(err), zap.Duration("delay", s.config.ReconnectDelay))
		select {
		case <-time.After(s.config.ReconnectDelay):
		case <-ctx.Done():
			return ctx.Err()
		case <-s.Terminating():
			return nil
		}
	}
}

func (s *Source) onParked(ctx context.Context, reason stream.ParkReason) error {
	s.mu.Lock()
	b, consumer := s.bundler, s.consumer
	s.mu.Unlock()

	if err := b.Flush(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	rangeDone := reason == stream.ParkReasonEndOfRange || s.config.Split.StopBlock > 0
	if !rangeDone {
		s.logger.Info("stream caught up, reconnecting later", zap.Duration("delay", s.config.ReconnectDelay))
		time.AfterFunc(s.config.ReconnectDelay, consumer.Wake)
		return nil
	}

	s.logger.Info("block range completed", zap.Uint64("stop_block", s.config.Split.StopBlock), zap.Stringer("cursor", consumer.Cursor()))
	if s.config.ExitOnEndOfRange {
		go s.Shutdown(nil)
	}

	return nil
}

// State is the consumer state, StateIdle until Run created it.
func (s *Source) State() stream.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.consumer == nil {
		return stream.StateIdle
	}
	return s.consumer.State()
}

// Wake asks a parked source to reconnect right away.
func (s *Source) Wake() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.consumer != nil {
		s.consumer.Wake()
	}
}

// UpdateOffset persists opaque as the resume point of the split, picked up
// by the next Run. It fails with ErrSourceRunning while Run is active, the
// running consumer owns the checkpoint then.
func (s *Source) UpdateOffset(ctx context.Context, opaque string) error {
	s.mu.Lock()
	descriptor, running := s.descriptor, s.running
	s.mu.Unlock()

	if descriptor == nil {
		return fmt.Errorf("source has no split, Run was not called")
	}

	if running {
		return ErrSourceRunning
	}

	updated, _, err := split.UpdateOffset(ctx, s.checkpointer, descriptor, opaque)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.descriptor = updated
	s.mu.Unlock()
	return nil
}
