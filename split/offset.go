package split

import (
	"context"
	"fmt"

	"github.com/streamingfast/substreams-cursor-source/cursor"
	"github.com/streamingfast/substreams-cursor-source/state"
)

// UpdateOffset records opaque as the resume point of d and persists it,
// returning the updated descriptor and the decoded cursor. The token must
// decode, d itself is left untouched.
func UpdateOffset(ctx context.Context, checkpointer state.Checkpointer, d *Descriptor, opaque string) (*Descriptor, *cursor.Cursor, error) {
	updated, c, err := d.WithResumeCursor(opaque)
	if err != nil {
		return nil, nil, err
	}

	if err := checkpointer.Save(ctx, updated.ID(), &state.Checkpoint{Token: opaque, Cursor: c}); err != nil {
		return nil, nil, fmt.Errorf("save checkpoint of split %q: %w", updated.ID(), err)
	}

	return updated, c, nil
}
