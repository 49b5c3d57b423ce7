package pq

import (
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Resolve decodes root as a descriptor message and returns the messages the
// query selects. An unset singular field yields no message.
func (q *Query) Resolve(root []byte, descriptor protoreflect.MessageDescriptor) (out []protoreflect.Message, err error) {
	if tracer.Enabled() {
		zlog.Debug("resolving query", zap.Stringer("query", q), zap.String("message_type", string(descriptor.FullName())))
	}

	dynMsg := dynamicpb.NewMessage(descriptor)
	if err := proto.Unmarshal(root, dynMsg); err != nil {
		return nil, fmt.Errorf("unmarshal dynamic message: %w", err)
	}

	if len(q.Elements) == 1 && q.Elements[0].Kind() == ExpressionKindCurrent {
		return []protoreflect.Message{dynMsg}, nil
	}

	if len(q.Elements) < 2 || q.Elements[0].Kind() != ExpressionKindCurrent || q.Elements[1].Kind() != ExpressionKindField {
		return nil, fmt.Errorf("only accepting query in the form '.', '.<fieldName>' or '.<fieldName>[]'")
	}

	fieldName := q.Elements[1].(*FieldAccess).Name
	fieldDesc := descriptor.Fields().ByName(protoreflect.Name(fieldName))
	if fieldDesc == nil {
		return nil, fmt.Errorf("field %q does not exist on proto of type %q", fieldName, descriptor.FullName())
	}

	if fieldDesc.Message() == nil || fieldDesc.IsMap() {
		return nil, fmt.Errorf("field %q of type %q is not a message field", fieldName, fieldDesc.FullName())
	}

	if !q.IsList() {
		if fieldDesc.IsList() {
			return nil, fmt.Errorf("field %q of type %q is repeated, use '.%s[]'", fieldName, fieldDesc.FullName(), fieldName)
		}

		if !dynMsg.Has(fieldDesc) {
			return nil, nil
		}
		return []protoreflect.Message{dynMsg.Get(fieldDesc).Message()}, nil
	}

	if !fieldDesc.IsList() {
		return nil, fmt.Errorf("field %q of type %q is not repeated while accessing array field", fieldName, fieldDesc.FullName())
	}

	list := dynMsg.Get(fieldDesc).List()
	if tracer.Enabled() {
		zlog.Debug("resolved repeated field count", zap.String("name", string(fieldDesc.FullName())), zap.Int("count", list.Len()))
	}

	out = make([]protoreflect.Message, list.Len())
	for i := 0; i < list.Len(); i++ {
		out[i] = list.Get(i).Message()
	}

	return out, nil
}
