package writer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	DefaultBufSize = 16 * 1024 * 1024 // 16 MiB
)

var _ io.WriteCloser = (*LazyFile)(nil)

// LazyFile creates its backing file on the first Write only. Not safe for
// concurrent use.
type LazyFile struct {
	*os.File

	path string
}

func LazyOpen(path string) *LazyFile {
	return &LazyFile{path: path}
}

func (f *LazyFile) Path() string {
	return f.path
}

// Created reports whether the backing file exists on disk.
func (f *LazyFile) Created() bool {
	return f.File != nil
}

func (f *LazyFile) Write(p []byte) (n int, err error) {
	if f.File == nil {
		if err := os.MkdirAll(filepath.Dir(f.path), os.ModePerm); err != nil {
			return 0, fmt.Errorf("mkdir dirs: %w", err)
		}

		file, err := os.Create(f.path)
		if err != nil {
			return 0, fmt.Errorf("open file: %w", err)
		}

		f.File = file
	}

	return f.File.Write(p)
}

func (f *LazyFile) Close() error {
	if f.File != nil {
		return f.File.Close()
	}

	return nil
}

// spillWriter forwards writes to the wrapped writer, except once capture is
// set where it keeps the received slice instead.
type spillWriter struct {
	io.Writer

	captured []byte
	capture  bool
	spilled  bool
}

func (w *spillWriter) Write(p []byte) (n int, err error) {
	if w.capture {
		w.captured = append(w.captured, p...)
		return len(p), nil
	}

	w.spilled = true
	return w.Writer.Write(p)
}

// IntelligentWriter buffers up to its size in memory. Only when the buffer
// overflows does data reach the wrapped writer, so a boundary small enough
// never touches the disk.
type IntelligentWriter struct {
	*bufio.Writer

	underlying *spillWriter
}

func NewIntelligentWriterSize(w io.Writer, size int) *IntelligentWriter {
	underlying := &spillWriter{Writer: w}

	return &IntelligentWriter{Writer: bufio.NewWriterSize(underlying, size), underlying: underlying}
}

func NewIntelligentWriter(w io.Writer) *IntelligentWriter {
	return NewIntelligentWriterSize(w, DefaultBufSize)
}

func (w *IntelligentWriter) AllDataFitInMemory() bool {
	return !w.underlying.spilled
}

// MemoryData returns everything written so far. Calling it when
// AllDataFitInMemory is false is a programming error and panics.
func (w *IntelligentWriter) MemoryData() []byte {
	if !w.AllDataFitInMemory() {
		panic(fmt.Errorf("data spilled to the wrapped writer, check AllDataFitInMemory before calling MemoryData"))
	}

	// bufio.Writer.Flush hands its internal buffer to the wrapped writer in a
	// single Write call, capture mode receives it there.
	w.underlying.capture = true
	if err := w.Writer.Flush(); err != nil {
		panic(fmt.Errorf("flush to memory cannot fail: %w", err))
	}

	return w.underlying.captured
}
