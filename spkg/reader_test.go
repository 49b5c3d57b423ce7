package spkg

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	pbsubstreams "github.com/streamingfast/substreams/pb/sf/substreams/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

func testPackage() *pbsubstreams.Package {
	blockInput := []*pbsubstreams.Module_Input{
		{Input: &pbsubstreams.Module_Input_Source_{Source: &pbsubstreams.Module_Input_Source{Type: "sf.ethereum.type.v2.Block"}}},
	}

	return &pbsubstreams.Package{
		Modules: &pbsubstreams.Modules{
			Modules: []*pbsubstreams.Module{
				{
					Name:         "map_events",
					InitialBlock: 12,
					Kind:         &pbsubstreams.Module_KindMap_{KindMap: &pbsubstreams.Module_KindMap{OutputType: "proto:acme.v1.Events"}},
					Inputs:       blockInput,
				},
				{
					Name:         "store_totals",
					InitialBlock: 12,
					Kind:         &pbsubstreams.Module_KindStore_{KindStore: &pbsubstreams.Module_KindStore{ValueType: "proto:acme.v1.Total"}},
					Inputs:       blockInput,
				},
			},
		},
	}
}

func TestReader_Read(t *testing.T) {
	content, err := proto.Marshal(testPackage())
	require.NoError(t, err)

	localPath := filepath.Join(t.TempDir(), "test.spkg")
	require.NoError(t, os.WriteFile(localPath, content, 0644))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/packages/acme/v1.0.0", "/test.spkg":
			w.Write(content)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	reader := NewReader(zap.NewNop())
	reader.http.SetRetryCount(0)

	for _, input := range []string{localPath, "file://" + localPath, server.URL + "/test.spkg", "acme@v1.0.0"} {
		t.Run(input, func(t *testing.T) {
			ref, err := ParseReference(input, server.URL)
			require.NoError(t, err)

			pkg, err := reader.Read(context.Background(), ref)
			require.NoError(t, err)
			require.Len(t, pkg.Modules.Modules, 2)
			assert.Equal(t, "map_events", pkg.Modules.Modules[0].Name)
		})
	}

	t.Run("not found", func(t *testing.T) {
		ref, err := ParseReference("missing@v1.0.0", server.URL)
		require.NoError(t, err)

		_, err = reader.Read(context.Background(), ref)
		require.Error(t, err)
	})

	t.Run("missing local file", func(t *testing.T) {
		_, err := reader.Read(context.Background(), &Reference{Kind: ReferenceKindLocal, Location: filepath.Join(t.TempDir(), "none.spkg")})
		require.Error(t, err)
	})
}

func TestOutputModule(t *testing.T) {
	pkg := testPackage()

	module, err := OutputModule(pkg, "map_events")
	require.NoError(t, err)
	assert.Equal(t, uint64(12), module.InitialBlock)
	assert.Equal(t, "acme.v1.Events", OutputModuleType(module))

	_, err = OutputModule(pkg, "store_totals")
	require.Error(t, err)

	_, err = OutputModule(pkg, "unknown")
	require.Error(t, err)

	_, err = OutputModule(&pbsubstreams.Package{}, "map_events")
	require.Error(t, err)
}
