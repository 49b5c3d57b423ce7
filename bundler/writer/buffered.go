package writer

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/streamingfast/bstream"
	"go.uber.org/zap"
)

var _ Writer = (*BufferedIO)(nil)
var _ BoundaryAdjustable = (*BufferedIO)(nil)

// BufferedIO keeps a boundary in memory up to bufferMaxSize bytes and spills
// to a temporary file of workingDir past that.
type BufferedIO struct {
	baseWriter

	bufferMaxSize uint64
	workingDir    string
	activeFile    *bufferedActiveFile
}

type bufferedActiveFile struct {
	lazyFile   *LazyFile
	writer     *IntelligentWriter
	blockRange *bstream.Range
}

func NewBufferedIO(
	bufferMaxSize uint64,
	workingDir string,
	fileType FileType,
	zlogger *zap.Logger,
) *BufferedIO {
	if bufferMaxSize == 0 {
		bufferMaxSize = DefaultBufSize
	}

	return &BufferedIO{
		baseWriter:    newBaseWriter(fileType, zlogger),
		bufferMaxSize: bufferMaxSize,
		workingDir:    workingDir,
	}
}

func (s *BufferedIO) StartBoundary(blockRange *bstream.Range) error {
	if s.activeFile != nil {
		return fmt.Errorf("unable to start a file while one (backed by %q) is already open", s.activeFile.lazyFile.Path())
	}

	lazyFile := LazyOpen(filepath.Join(s.workingDir, s.workingFilename(blockRange)))
	s.activeFile = &bufferedActiveFile{
		lazyFile:   lazyFile,
		writer:     NewIntelligentWriterSize(lazyFile, int(s.bufferMaxSize)),
		blockRange: blockRange,
	}

	return nil
}

func (s *BufferedIO) AdjustBoundary(blockRange *bstream.Range) {
	if s.activeFile != nil {
		s.activeFile.blockRange = blockRange
	}
}

func (s *BufferedIO) CloseBoundary(ctx context.Context) (Uploadeable, error) {
	if s.activeFile == nil {
		return nil, fmt.Errorf("no active file")
	}

	active := s.activeFile
	s.activeFile = nil

	outputFilename := s.filename(active.blockRange)

	if active.writer.AllDataFitInMemory() {
		s.zlogger.Debug("boundary fits in memory, skipping working file", zap.String("output_filename", outputFilename))
		return &dataFile{
			data:           active.writer.MemoryData(),
			outputFilename: outputFilename,
		}, nil
	}

	if err := active.writer.Flush(); err != nil {
		return nil, fmt.Errorf("flushing buffered active writer: %w", err)
	}

	if err := active.lazyFile.Close(); err != nil {
		return nil, fmt.Errorf("closing file: %w", err)
	}

	s.zlogger.Debug("boundary spilled to working file", zap.String("working_path", active.lazyFile.Path()))
	return &localFile{
		localFilePath:  active.lazyFile.Path(),
		outputFilename: outputFilename,
	}, nil
}

func (s *BufferedIO) Write(data []byte) (n int, err error) {
	if s.activeFile == nil {
		return 0, fmt.Errorf("no active file to write to")
	}

	return s.activeFile.writer.Write(data)
}
