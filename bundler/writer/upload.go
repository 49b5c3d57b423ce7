package writer

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/streamingfast/derr"
	"github.com/streamingfast/dstore"
)

const uploadRetryAttempts = 3

// dataFile is a boundary that never left memory.
type dataFile struct {
	data           []byte
	outputFilename string
}

func (f *dataFile) Upload(ctx context.Context, store dstore.Store) (string, error) {
	err := derr.Retry(uploadRetryAttempts, func(ctx context.Context) error {
		return store.WriteObject(ctx, f.outputFilename, bytes.NewReader(f.data))
	})
	if err != nil {
		return "", fmt.Errorf("write object %q: %w", f.outputFilename, err)
	}

	return store.ObjectPath(f.outputFilename), nil
}

// localFile is a boundary spilled to the working directory. It is removed
// once pushed.
type localFile struct {
	localFilePath  string
	outputFilename string
}

func (f *localFile) Upload(ctx context.Context, store dstore.Store) (string, error) {
	err := derr.Retry(uploadRetryAttempts, func(ctx context.Context) error {
		reader, err := os.Open(f.localFilePath)
		if err != nil {
			return fmt.Errorf("open %q: %w", f.localFilePath, err)
		}
		defer reader.Close()

		return store.WriteObject(ctx, f.outputFilename, reader)
	})
	if err != nil {
		return "", fmt.Errorf("push %q to %q: %w", f.localFilePath, f.outputFilename, err)
	}

	if err := os.Remove(f.localFilePath); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("remove working file %q: %w", f.localFilePath, err)
	}

	return store.ObjectPath(f.outputFilename), nil
}
