package encoder

import (
	"bytes"
	"testing"
	"time"

	"github.com/streamingfast/substreams-cursor-source/cursor"
	"github.com/streamingfast/substreams-cursor-source/encoder/pq"
	"github.com/streamingfast/substreams-cursor-source/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func TestJSONLinesEncoder_EncodeTo(t *testing.T) {
	payload, err := proto.Marshal(timestamppb.New(time.Unix(10, 0)))
	require.NoError(t, err)

	newRecord := &stream.Record{
		Key:              "10",
		Payload:          payload,
		Cursor:           "opaque",
		Step:             cursor.StepNew,
		BlockNumber:      10,
		BlockID:          "0a",
		Timestamp:        time.Unix(10, 0),
		FinalBlockHeight: 8,
	}

	retraction := &stream.Record{
		Key:         "9",
		Cursor:      "opaque-undo",
		Step:        cursor.StepUndo,
		BlockNumber: 9,
		BlockID:     "09",
	}

	tests := []struct {
		name     string
		typed    bool
		records  []*stream.Record
		expected string
	}{
		{
			"no record",
			false,
			nil,
			"",
		},
		{
			"raw payload",
			false,
			[]*stream.Record{newRecord},
			`{"key":"10","step":"new","block_num":10,"block_id":"0a","timestamp":"1970-01-01T00:00:10Z","final_block_height":8,"cursor":"opaque","payload":"CAo="}` + "\n",
		},
		{
			"typed payload",
			true,
			[]*stream.Record{newRecord},
			`{"key":"10","step":"new","block_num":10,"block_id":"0a","timestamp":"1970-01-01T00:00:10Z","final_block_height":8,"cursor":"opaque","payload":"1970-01-01T00:00:10Z"}` + "\n",
		},
		{
			"retraction has no payload",
			true,
			[]*stream.Record{newRecord, retraction},
			`{"key":"10","step":"new","block_num":10,"block_id":"0a","timestamp":"1970-01-01T00:00:10Z","final_block_height":8,"cursor":"opaque","payload":"1970-01-01T00:00:10Z"}` + "\n" +
				`{"key":"9","step":"undo","block_num":9,"block_id":"09","cursor":"opaque-undo"}` + "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoder := NewJSONLinesEncoder(nil)
			if tt.typed {
				encoder = NewJSONLinesEncoder((&timestamppb.Timestamp{}).ProtoReflect().Descriptor())
			}

			buffer := bytes.NewBuffer(nil)
			for _, record := range tt.records {
				require.NoError(t, encoder.EncodeTo(record, buffer))
			}

			assert.Equal(t, tt.expected, buffer.String())
		})
	}
}

func TestJSONLinesEncoder_InvalidTypedPayload(t *testing.T) {
	encoder := NewJSONLinesEncoder((&timestamppb.Timestamp{}).ProtoReflect().Descriptor())

	err := encoder.EncodeTo(&stream.Record{Key: "1", Step: cursor.StepNew, Payload: []byte{0xff, 0xff}}, bytes.NewBuffer(nil))
	assert.ErrorContains(t, err, `encode payload of record "1"`)
}

func TestJSONLinesEncoder_PayloadQuery(t *testing.T) {
	file := &descriptorpb.FileDescriptorProto{
		Name:        proto.String("transfers.proto"),
		MessageType: []*descriptorpb.DescriptorProto{{Name: proto.String("Transfer")}, {Name: proto.String("Approval")}},
	}

	payload, err := proto.Marshal(file)
	require.NoError(t, err)

	record := &stream.Record{Key: "10", Step: cursor.StepNew, BlockNumber: 10, BlockID: "0a", Cursor: "opaque", Payload: payload}
	prefix := `{"key":"10","step":"new","block_num":10,"block_id":"0a","cursor":"opaque",`

	tests := []struct {
		query    string
		expected string
	}{
		{".", prefix + `"payload":{"name":"transfers.proto","messageType":[{"name":"Transfer"},{"name":"Approval"}]}}` + "\n"},
		{".message_type[]", prefix + `"payload":[{"name":"Transfer"},{"name":"Approval"}]}` + "\n"},
		{".enum_type[]", prefix + `"payload":[]}` + "\n"},
		{".options", prefix + `"payload":null}` + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			query, err := pq.Parse(tt.query)
			require.NoError(t, err)

			encoder := NewJSONLinesEncoder(file.ProtoReflect().Descriptor(), WithPayloadQuery(query))

			buffer := bytes.NewBuffer(nil)
			require.NoError(t, encoder.EncodeTo(record, buffer))
			assert.JSONEq(t, tt.expected, buffer.String())
		})
	}
}
