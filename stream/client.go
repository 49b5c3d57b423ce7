package stream

import (
	"context"
	"fmt"

	"github.com/streamingfast/substreams/client"
	pbsubstreamsrpc "github.com/streamingfast/substreams/pb/sf/substreams/rpc/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// Client opens the remote block stream.
type Client interface {
	Blocks(ctx context.Context, req *pbsubstreamsrpc.Request) (ResponseStream, error)
}

// ResponseStream yields responses until io.EOF on a clean close. Recv must
// return once the context given to Client.Blocks is cancelled.
type ResponseStream interface {
	Recv() (*pbsubstreamsrpc.Response, error)
}

// NewClientConfig picks the authentication sent to endpoint, a bearer token
// wins over an API key and neither is sent when both are empty.
func NewClientConfig(endpoint, apiToken, apiKey string, insecure, plaintext bool) *client.SubstreamsClientConfig {
	authToken, authType := "", client.None
	switch {
	case apiToken != "":
		authToken, authType = apiToken, client.JWT
	case apiKey != "":
		authToken, authType = apiKey, client.ApiKey
	}

	return client.NewSubstreamsClientConfig(endpoint, authToken, authType, insecure, plaintext)
}

var _ Client = (*GRPCClient)(nil)

// GRPCClient talks to the `sf.substreams.rpc.v2.Stream` service through the
// substreams client, which owns dialing, TLS and per-call credentials.
type GRPCClient struct {
	stream    pbsubstreamsrpc.StreamClient
	callOpts  []grpc.CallOption
	headers   client.Headers
	closeFunc func() error
}

func NewGRPCClient(config *client.SubstreamsClientConfig) (*GRPCClient, error) {
	ssClient, closeFunc, callOpts, headers, err := client.NewSubstreamsClient(config)
	if err != nil {
		return nil, fmt.Errorf("new substreams client %q: %w", config.Endpoint(), err)
	}

	return &GRPCClient{
		stream:    ssClient,
		callOpts:  callOpts,
		headers:   headers,
		closeFunc: closeFunc,
	}, nil
}

func (c *GRPCClient) Blocks(ctx context.Context, req *pbsubstreamsrpc.Request) (ResponseStream, error) {
	if c.headers.IsSet() {
		ctx = metadata.AppendToOutgoingContext(ctx, c.headers.ToArray()...)
	}

	return c.stream.Blocks(ctx, req, c.callOpts...)
}

func (c *GRPCClient) Close() error {
	return c.closeFunc()
}
