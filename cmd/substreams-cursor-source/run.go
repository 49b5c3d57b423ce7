package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	. "github.com/streamingfast/cli"
	"github.com/streamingfast/cli/sflags"
	"github.com/streamingfast/derr"
	"github.com/streamingfast/dstore"
	"github.com/streamingfast/shutter"
	source "github.com/streamingfast/substreams-cursor-source"
	"github.com/streamingfast/substreams-cursor-source/spkg"
	"github.com/streamingfast/substreams-cursor-source/split"
	"github.com/streamingfast/substreams-cursor-source/state"
	"github.com/streamingfast/substreams-cursor-source/stream"
	"github.com/streamingfast/substreams/client"
	"go.uber.org/zap"
)

var RunCmd = Command(runE,
	"run <endpoint> <package> <module> <output_store> [<start>:<stop>]",
	"Streams a Substreams map module into block range bundled JSONL files, checkpointing the cursor as files are uploaded",
	RangeArgs(4, 5),
	Flags(func(flags *pflag.FlagSet) {
		addConnectionFlags(flags)

		flags.String("state-store", "./localdata/state", FlagDescription(`
			Where the cursor checkpoint is persisted. Accepts a dstore URL or local path, a 'postgres://' DSN,
			a 'redis://' URL or 'memory://' to keep the checkpoint in process only.
		`))
		flags.String("registry-url", spkg.DefaultRegistryURL, "Registry used to resolve '<name>@<version>' package references")
		flags.Bool("final-blocks-only", false, "Only stream blocks that are final, no undo signal is ever received in that mode")
		flags.Bool("production-mode", false, "Request the stream in production mode")
		flags.String("file-working-dir", "./localdata/working", "Working directory where boundaries too large for memory are spilled")
		flags.Uint64P("file-block-count", "c", 10000, "Number of blocks per file")
		flags.String("encoder", source.EncoderRaw, "Payload encoding of each record, 'raw' for base64 bytes, 'proto' for JSON decoded with the package's protobuf definitions or 'proto:<query>' to render only '.<field>' or '.<field>[]' of it")
		flags.String("writer", source.WriterTypeBuffered, "Boundary writer, 'buffered' or 'noop' to discard the output")
		flags.Duration("reconnect-delay", source.DefaultReconnectDelay, "Delay before reconnecting after the stream caught up or failed with a retryable error")
		flags.Uint64("buffer-max-size", 64*1024*1024, FlagDescription(`
			Amount of memory bytes to allocate to the buffered writer. A boundary that fits entirely in memory is uploaded
			directly to the output store without touching the working directory.

			Default value for the buffer is 64 MiB.
		`))
	}),
	ExamplePrefixed("substreams-cursor-source run", `
		mainnet.eth.streamingfast.io:443 substreams.spkg map_transfers ./localdata/out
		mainnet.eth.streamingfast.io:443 acme@v1.0.0 map_transfers gs://bucket/transfers 17000000:+10000
	`),
)

func addConnectionFlags(flags *pflag.FlagSet) {
	flags.String("api-token-envvar", "SUBSTREAMS_API_TOKEN", "Name of the environment variable holding the bearer token sent to the endpoint")
	flags.String("api-key-envvar", "SUBSTREAMS_API_KEY", "Name of the environment variable holding the API key sent to the endpoint, used when no token is set")
	flags.BoolP("insecure", "k", false, "Skip TLS certificate verification")
	flags.BoolP("plaintext", "p", false, "Connect without TLS, authentication is optional in that mode")
}

func runE(cmd *cobra.Command, args []string) error {
	app := shutter.New()

	ctx, cancelApp := context.WithCancel(cmd.Context())
	app.OnTerminating(func(_ error) {
		cancelApp()
	})

	source.RegisterMetrics()

	endpoint := args[0]
	packageInput := args[1]
	outputModuleName := args[2]
	fileOutputPath := args[3]
	blockRange := ""
	if len(args) > 4 {
		blockRange = args[4]
	}

	stateStoreURL := sflags.MustGetString(cmd, "state-store")
	registryURL := sflags.MustGetString(cmd, "registry-url")
	fileWorkingDir := sflags.MustGetString(cmd, "file-working-dir")
	blocksPerFile := sflags.MustGetUint64(cmd, "file-block-count")
	bufferMaxSize := sflags.MustGetUint64(cmd, "buffer-max-size")
	encoderType := sflags.MustGetString(cmd, "encoder")
	writerType := sflags.MustGetString(cmd, "writer")

	zlog.Info("cursor source",
		zap.String("endpoint", endpoint),
		zap.String("package", packageInput),
		zap.String("output_module", outputModuleName),
		zap.String("file_output_path", fileOutputPath),
		zap.String("file_working_dir", fileWorkingDir),
		zap.String("state_store", stateStoreURL),
		zap.String("encoder", encoderType),
		zap.String("writer", writerType),
		zap.Uint64("blocks_per_file", blocksPerFile),
		zap.Uint64("buffer_max_size", bufferMaxSize),
	)

	ref, err := spkg.ParseReference(packageInput, registryURL)
	if err != nil {
		return fmt.Errorf("invalid package reference: %w", err)
	}

	pkg, err := spkg.NewReader(zlog).Read(ctx, ref)
	if err != nil {
		return fmt.Errorf("read package: %w", err)
	}

	module, err := spkg.OutputModule(pkg, outputModuleName)
	if err != nil {
		return err
	}

	resolved, err := source.ResolveBlockRange(blockRange, module.InitialBlock)
	if err != nil {
		return fmt.Errorf("invalid block range %q: %w", blockRange, err)
	}

	properties := &split.Properties{
		PackageURL:   packageInput,
		OutputModule: outputModuleName,
		EndpointURL:  endpoint,
		StartBlock:   strconv.FormatUint(resolved.StartBlock(), 10),
		RegistryURL:  registryURL,
	}
	if end := resolved.EndBlock(); end != nil {
		properties.StopBlock = strconv.FormatUint(*end, 10)
	}

	splitConfig, err := properties.Validate()
	if err != nil {
		return err
	}

	clientConfig, err := readClientConfig(cmd, endpoint)
	if err != nil {
		return err
	}

	streamClient, err := stream.NewGRPCClient(clientConfig)
	if err != nil {
		return err
	}
	defer streamClient.Close()

	checkpointer, closeCheckpointer, err := state.NewCheckpointerFromURL(ctx, stateStoreURL, zlog)
	if err != nil {
		return fmt.Errorf("new checkpointer: %w", err)
	}
	defer closeCheckpointer()

	fileOutputStore, err := dstore.NewStore(fileOutputPath, "", "", false)
	if err != nil {
		return fmt.Errorf("new store %q: %w", fileOutputPath, err)
	}

	cursorSource := source.New(&source.Config{
		Split:              splitConfig,
		Pkg:                pkg,
		FileOutputStore:    fileOutputStore,
		FileWorkingDir:     fileWorkingDir,
		BlockPerFile:       blocksPerFile,
		BufferMaxSize:      bufferMaxSize,
		BoundaryWriterType: writerType,
		Encoder:            encoderType,
		FinalBlocksOnly:    sflags.MustGetBool(cmd, "final-blocks-only"),
		ProductionMode:     sflags.MustGetBool(cmd, "production-mode"),
		ReconnectDelay:     sflags.MustGetDuration(cmd, "reconnect-delay"),
		ExitOnEndOfRange:   true,
	}, streamClient, checkpointer, zlog, tracer)

	cursorSource.OnTerminating(app.Shutdown)
	app.OnTerminating(func(err error) {
		zlog.Info("application terminating shutting down source")
		cursorSource.Shutdown(err)
	})

	go func() {
		cursorSource.Shutdown(cursorSource.Run(ctx))
	}()

	signalHandler := derr.SetupSignalHandler(0 * time.Second)
	zlog.Info("ready, waiting for signal to quit")
	select {
	case <-signalHandler:
		zlog.Info("received termination signal, quitting application")
		go app.Shutdown(nil)
	case <-app.Terminating():
		NoError(app.Err(), "application shutdown unexpectedly, quitting")
	}

	zlog.Info("waiting for app termination")
	select {
	case <-app.Terminated():
	case <-time.After(30 * time.Second):
		zlog.Error("application did not terminated within 30s, forcing exit")
	}
	return nil
}

func readClientConfig(cmd *cobra.Command, endpoint string) (*client.SubstreamsClientConfig, error) {
	tokenEnvVar := sflags.MustGetString(cmd, "api-token-envvar")
	keyEnvVar := sflags.MustGetString(cmd, "api-key-envvar")
	apiToken, apiKey := os.Getenv(tokenEnvVar), os.Getenv(keyEnvVar)
	plaintext := sflags.MustGetBool(cmd, "plaintext")

	if apiToken == "" && apiKey == "" && !plaintext {
		return nil, fmt.Errorf("no authentication found, set the environment variable %q or %q, or use --plaintext", tokenEnvVar, keyEnvVar)
	}

	return stream.NewClientConfig(endpoint, apiToken, apiKey, sflags.MustGetBool(cmd, "insecure"), plaintext), nil
}
