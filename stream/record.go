package stream

import (
	"strconv"
	"time"

	"github.com/streamingfast/substreams-cursor-source/cursor"
	"go.uber.org/zap/zapcore"
)

// Record is what the consumer emits for each block observation. New blocks
// carry the module payload. Retractions have no payload, every record
// previously emitted above BlockNumber must be rolled back.
type Record struct {
	SplitID string
	Key     string
	Payload []byte

	// Cursor is the opaque token to persist once this record is acknowledged.
	Cursor   string
	Position *cursor.Cursor

	Step        cursor.StepType
	BlockNumber uint64
	BlockID     string
	Timestamp   time.Time

	// FinalBlockHeight is the LIB known by the server when the record was produced.
	FinalBlockHeight uint64
}

func RecordKey(blockNumber uint64) string {
	return strconv.FormatUint(blockNumber, 10)
}

func (r *Record) IsRetraction() bool {
	return r.Step == cursor.StepUndo
}

func (r *Record) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("key", r.Key)
	enc.AddString("step", r.Step.String())
	enc.AddUint64("block_num", r.BlockNumber)
	enc.AddString("block_id", r.BlockID)
	enc.AddInt("payload_size", len(r.Payload))
	return nil
}
