package pq

import (
	"testing"

	"github.com/streamingfast/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

func init() {
	logging.InstantiateLoggers()
}

func TestQuery_Resolve(t *testing.T) {
	file := &descriptorpb.FileDescriptorProto{
		Name: proto.String("transfers.proto"),
		MessageType: []*descriptorpb.DescriptorProto{
			{Name: proto.String("Transfer")},
			{Name: proto.String("Approval")},
		},
		Options: &descriptorpb.FileOptions{GoPackage: proto.String("acme/v1")},
	}

	root, err := proto.Marshal(file)
	require.NoError(t, err)

	descriptor := file.ProtoReflect().Descriptor()

	tests := []struct {
		name      string
		query     string
		root      []byte
		wantNames []string
		assertion require.ErrorAssertionFunc
	}{
		{"root", ".", root, []string{"google.protobuf.FileDescriptorProto"}, require.NoError},
		{"repeated field", ".message_type[]", root, []string{"google.protobuf.DescriptorProto", "google.protobuf.DescriptorProto"}, require.NoError},
		{"empty repeated field", ".message_type[]", nil, []string{}, require.NoError},
		{"singular field", ".options", root, []string{"google.protobuf.FileOptions"}, require.NoError},
		{"unset singular field", ".options", nil, nil, require.NoError},
		{"repeated without array", ".message_type", root, nil, require.Error},
		{"singular with array", ".options[]", root, nil, require.Error},
		{"scalar field", ".name", root, nil, require.Error},
		{"unknown field", ".unknown[]", root, nil, require.Error},
		{"invalid payload", ".", []byte{0xff}, nil, require.Error},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, err := Parse(tt.query)
			require.NoError(t, err)

			got, err := query.Resolve(tt.root, descriptor)
			tt.assertion(t, err)
			if err != nil {
				return
			}

			var names []string
			if tt.wantNames != nil {
				names = []string{}
			}
			for _, msg := range got {
				names = append(names, string(msg.Descriptor().FullName()))
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}

	t.Run("repeated values", func(t *testing.T) {
		query, err := Parse(".message_type[]")
		require.NoError(t, err)

		got, err := query.Resolve(root, descriptor)
		require.NoError(t, err)
		require.Len(t, got, 2)

		nameField := got[1].Descriptor().Fields().ByName("name")
		assert.Equal(t, "Approval", got[1].Get(nameField).String())
	})
}
