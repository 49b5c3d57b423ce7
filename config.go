package substreams_source

import (
	"fmt"
	"strings"
	"time"

	"github.com/streamingfast/dstore"
	"github.com/streamingfast/substreams-cursor-source/bundler/writer"
	"github.com/streamingfast/substreams-cursor-source/encoder"
	"github.com/streamingfast/substreams-cursor-source/encoder/pq"
	"github.com/streamingfast/substreams-cursor-source/spkg"
	"github.com/streamingfast/substreams-cursor-source/split"
	pbsubstreams "github.com/streamingfast/substreams/pb/sf/substreams/v1"
	"go.uber.org/zap"
)

const (
	WriterTypeBuffered = "buffered"
	WriterTypeNoop     = "noop"

	EncoderRaw   = "raw"
	EncoderProto = "proto"
)

type Config struct {
	Split *split.Config
	Pkg   *pbsubstreams.Package

	FileOutputStore    dstore.Store
	FileWorkingDir     string
	BlockPerFile       uint64
	BufferMaxSize      uint64
	BoundaryWriterType string
	Encoder            string

	FinalBlocksOnly bool
	ProductionMode  bool

	// ReconnectDelay is waited before reconnecting after a clean end of
	// stream or a retryable transport failure.
	ReconnectDelay time.Duration

	// ExitOnEndOfRange shuts the source down once the stop block is reached
	// instead of staying parked.
	ExitOnEndOfRange bool
}

func (c *Config) outputModule() (*pbsubstreams.Module, error) {
	return spkg.OutputModule(c.Pkg, c.Split.OutputModule)
}

func (c *Config) getBoundaryWriter(zlogger *zap.Logger) (writer.Writer, error) {
	fileType := writer.FileTypeJSONL

	var w writer.Writer
	switch c.BoundaryWriterType {
	case WriterTypeBuffered, "":
		w = writer.NewBufferedIO(c.BufferMaxSize, c.FileWorkingDir, fileType, zlogger)
	case WriterTypeNoop:
		w = writer.NewNoop(fileType, zlogger)
	default:
		return nil, fmt.Errorf("unknown boundary writer: %s", c.BoundaryWriterType)
	}

	return writer.NewMeteredWriter(w, zlogger), nil
}

// getEncoder accepts `raw`, `proto` and `proto:<query>` where query selects
// the part of the payload to render, see pq.Parse.
func (c *Config) getEncoder(module *pbsubstreams.Module) (encoder.Encoder, error) {
	encoderType, rawQuery, hasQuery := strings.Cut(c.Encoder, ":")

	switch encoderType {
	case EncoderRaw, "":
		if hasQuery {
			return nil, fmt.Errorf("encoder %q does not accept a query", encoderType)
		}
		return encoder.NewJSONLinesEncoder(nil), nil

	case EncoderProto:
		descriptor, err := encoder.OutputMessageDescriptor(c.Pkg, module)
		if err != nil {
			return nil, fmt.Errorf("output message descriptor: %w", err)
		}

		var opts []encoder.JSONLinesOption
		if hasQuery {
			query, err := pq.Parse(rawQuery)
			if err != nil {
				return nil, fmt.Errorf("invalid payload query: %w", err)
			}
			opts = append(opts, encoder.WithPayloadQuery(query))
		}

		return encoder.NewJSONLinesEncoder(descriptor, opts...), nil
	}

	return nil, fmt.Errorf("unknown encoder type %q", c.Encoder)
}
