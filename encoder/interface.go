package encoder

import (
	"io"

	"github.com/streamingfast/substreams-cursor-source/stream"
)

type Encoder interface {
	EncodeTo(record *stream.Record, writer io.Writer) error
}
