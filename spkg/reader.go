package spkg

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/streamingfast/substreams/manifest"
	pbsubstreams "github.com/streamingfast/substreams/pb/sf/substreams/v1"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

type Reader struct {
	http    *resty.Client
	zlogger *zap.Logger
}

func NewReader(zlogger *zap.Logger) *Reader {
	return &Reader{
		http: resty.New().
			SetTimeout(2 * time.Minute).
			SetRetryCount(3).
			SetRetryWaitTime(time.Second),
		zlogger: zlogger,
	}
}

// Read fetches and decodes the package behind ref.
func (r *Reader) Read(ctx context.Context, ref *Reference) (*pbsubstreams.Package, error) {
	r.zlogger.Info("reading substreams package", zap.Stringer("reference", ref))

	var content []byte
	switch ref.Kind {
	case ReferenceKindLocal:
		data, err := os.ReadFile(ref.Location)
		if err != nil {
			return nil, fmt.Errorf("read package from file %q: %w", ref.Location, err)
		}
		content = data

	case ReferenceKindHTTP, ReferenceKindRegistry:
		resp, err := r.http.R().SetContext(ctx).Get(ref.Location)
		if err != nil {
			return nil, fmt.Errorf("download package %q: %w", ref.Location, err)
		}

		if resp.IsError() {
			return nil, fmt.Errorf("download package %q: unexpected status %d", ref.Location, resp.StatusCode())
		}
		content = resp.Body()

	default:
		return nil, fmt.Errorf("unknown package reference kind %q", ref.Kind)
	}

	pkg := &pbsubstreams.Package{}
	if err := proto.Unmarshal(content, pkg); err != nil {
		return nil, fmt.Errorf("decode package %q: %w", ref.Location, err)
	}

	return pkg, nil
}

// OutputModule returns the named module of pkg, which must be a mapper.
func OutputModule(pkg *pbsubstreams.Package, moduleName string) (*pbsubstreams.Module, error) {
	if pkg.GetModules() == nil {
		return nil, fmt.Errorf("package has no modules")
	}

	graph, err := manifest.NewModuleGraph(pkg.Modules.Modules)
	if err != nil {
		return nil, fmt.Errorf("create substreams module graph: %w", err)
	}

	module, err := graph.Module(moduleName)
	if err != nil {
		return nil, fmt.Errorf("get output module %q: %w", moduleName, err)
	}

	if module.GetKindMap() == nil {
		return nil, fmt.Errorf("output module %q is *not* of type 'Mapper'", moduleName)
	}

	return module, nil
}

// OutputModuleType is the output message type of module without its `proto:` prefix.
func OutputModuleType(module *pbsubstreams.Module) string {
	return strings.TrimPrefix(module.GetKindMap().GetOutputType(), "proto:")
}
