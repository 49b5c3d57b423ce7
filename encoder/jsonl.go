package encoder

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/streamingfast/substreams-cursor-source/encoder/pq"
	"github.com/streamingfast/substreams-cursor-source/stream"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

var _ Encoder = (*JSONLinesEncoder)(nil)

// JSONLinesEncoder writes one JSON document per record followed by a newline.
// Without a payload descriptor, the payload is rendered as base64.
type JSONLinesEncoder struct {
	payloadDescriptor protoreflect.MessageDescriptor
	payloadQuery      *pq.Query
}

type JSONLinesOption func(e *JSONLinesEncoder)

// WithPayloadQuery renders only the part of the typed payload selected by
// query. A `.<field>[]` query renders a JSON array, `.<field>` renders null
// when the field is unset.
func WithPayloadQuery(query *pq.Query) JSONLinesOption {
	return func(e *JSONLinesEncoder) { e.payloadQuery = query }
}

func NewJSONLinesEncoder(payloadDescriptor protoreflect.MessageDescriptor, opts ...JSONLinesOption) *JSONLinesEncoder {
	e := &JSONLinesEncoder{payloadDescriptor: payloadDescriptor}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

type jsonRecord struct {
	Key              string          `json:"key"`
	Step             string          `json:"step"`
	BlockNumber      uint64          `json:"block_num"`
	BlockID          string          `json:"block_id"`
	Timestamp        string          `json:"timestamp,omitempty"`
	FinalBlockHeight uint64          `json:"final_block_height,omitempty"`
	Cursor           string          `json:"cursor"`
	Payload          json.RawMessage `json:"payload,omitempty"`
}

func (e *JSONLinesEncoder) EncodeTo(record *stream.Record, writer io.Writer) error {
	out := &jsonRecord{
		Key:              record.Key,
		Step:             record.Step.String(),
		BlockNumber:      record.BlockNumber,
		BlockID:          record.BlockID,
		FinalBlockHeight: record.FinalBlockHeight,
		Cursor:           record.Cursor,
	}

	if !record.Timestamp.IsZero() {
		out.Timestamp = record.Timestamp.UTC().Format(time.RFC3339Nano)
	}

	if !record.IsRetraction() {
		payload, err := e.encodePayload(record.Payload)
		if err != nil {
			return fmt.Errorf("encode payload of record %q: %w", record.Key, err)
		}
		out.Payload = payload
	}

	line, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}

	if _, err := writer.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write json: %w", err)
	}

	return nil
}

func (e *JSONLinesEncoder) encodePayload(payload []byte) (json.RawMessage, error) {
	if e.payloadDescriptor == nil {
		return json.Marshal(payload)
	}

	if e.payloadQuery != nil {
		return e.encodeQueriedPayload(payload)
	}

	message := dynamicpb.NewMessage(e.payloadDescriptor)
	if err := proto.Unmarshal(payload, message); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", e.payloadDescriptor.FullName(), err)
	}

	out, err := protojson.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("protojson marshal: %w", err)
	}

	return out, nil
}

func (e *JSONLinesEncoder) encodeQueriedPayload(payload []byte) (json.RawMessage, error) {
	messages, err := e.payloadQuery.Resolve(payload, e.payloadDescriptor)
	if err != nil {
		return nil, fmt.Errorf("resolve query %s: %w", e.payloadQuery, err)
	}

	elements := make([]json.RawMessage, len(messages))
	for i, message := range messages {
		elements[i], err = protojson.Marshal(message.Interface())
		if err != nil {
			return nil, fmt.Errorf("protojson marshal: %w", err)
		}
	}

	if e.payloadQuery.IsList() {
		return json.Marshal(elements)
	}

	if len(elements) == 0 {
		return json.RawMessage("null"), nil
	}

	return elements[0], nil
}
