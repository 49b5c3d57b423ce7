package encoder

import (
	"fmt"

	"github.com/jhump/protoreflect/desc"
	"github.com/streamingfast/substreams-cursor-source/spkg"
	pbsubstreams "github.com/streamingfast/substreams/pb/sf/substreams/v1"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// OutputMessageDescriptor finds the descriptor of module's output type among
// the proto files shipped with pkg.
func OutputMessageDescriptor(pkg *pbsubstreams.Package, module *pbsubstreams.Module) (protoreflect.MessageDescriptor, error) {
	fileDescs, err := desc.CreateFileDescriptors(pkg.ProtoFiles)
	if err != nil {
		return nil, fmt.Errorf("create file descriptors: %w", err)
	}

	msgType := spkg.OutputModuleType(module)
	var owner *desc.FileDescriptor
	for _, file := range fileDescs {
		if file.FindMessage(msgType) != nil {
			owner = file
			break
		}
	}

	if owner == nil {
		return nil, fmt.Errorf("output type %q of module %q not found in package", msgType, module.Name)
	}

	// The set holds owner and its transitive dependencies only.
	files, err := protodesc.NewFiles(desc.ToFileDescriptorSet(owner))
	if err != nil {
		return nil, fmt.Errorf("build registry of %q: %w", owner.GetName(), err)
	}

	found, err := files.FindDescriptorByName(protoreflect.FullName(msgType))
	if err != nil {
		return nil, fmt.Errorf("output type %q of module %q: %w", msgType, module.Name, err)
	}

	msgDesc, ok := found.(protoreflect.MessageDescriptor)
	if !ok {
		return nil, fmt.Errorf("output type %q of module %q is not a message", msgType, module.Name)
	}

	return msgDesc, nil
}
