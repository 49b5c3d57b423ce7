package cursor

import (
	"fmt"

	"github.com/streamingfast/bstream"
)

// BlockRef identifies a block by its content id and height. Ordering is by
// Num only, ids carry no ordering.
type BlockRef struct {
	ID  string
	Num uint64
}

func NewBlockRef(id string, num uint64) BlockRef {
	return BlockRef{ID: id, Num: num}
}

func (r BlockRef) IsEmpty() bool {
	return r.ID == ""
}

func (r BlockRef) AsBstreamRef() bstream.BlockRef {
	return bstream.NewBlockRef(r.ID, r.Num)
}

func (r BlockRef) String() string {
	return fmt.Sprintf("#%d (%s)", r.Num, r.ID)
}
