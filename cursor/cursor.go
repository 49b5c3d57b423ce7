package cursor

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Cursor is a resumable position in a block stream. It tracks the block
// being observed, the chain head and the last irreversible block (LIB) seen
// at the time of the observation.
type Cursor struct {
	Step      StepType
	Block     BlockRef
	HeadBlock BlockRef
	LIB       BlockRef
}

func New(step StepType, block, headBlock, lib BlockRef) *Cursor {
	return &Cursor{
		Step:      step,
		Block:     block,
		HeadBlock: headBlock,
		LIB:       lib,
	}
}

// Empty returns the cursor meaning "no prior position".
func Empty() *Cursor {
	return &Cursor{}
}

// IsEmpty is true when any of the three references lacks an id.
func (c *Cursor) IsEmpty() bool {
	return c == nil || c.Block.ID == "" || c.HeadBlock.ID == "" || c.LIB.ID == ""
}

// IsOnFinalBlock compares heights only, ids are not consulted.
func (c *Cursor) IsOnFinalBlock() bool {
	return c.Block.Num == c.LIB.Num
}

// Equals compares the three block ids. Step and heights are ignored and two
// empty cursors are always equal.
func (c *Cursor) Equals(other *Cursor) bool {
	if c.IsEmpty() {
		return other.IsEmpty()
	}

	if other.IsEmpty() {
		return false
	}

	return c.Block.ID == other.Block.ID &&
		c.HeadBlock.ID == other.HeadBlock.ID &&
		c.LIB.ID == other.LIB.ID
}

// String returns the canonical form. The most compact of the three variants
// is picked, checking `c1` (head is block) before `c2` (LIB is block).
func (c *Cursor) String() string {
	step := strconv.FormatInt(int64(c.Step), 10)

	if c.HeadBlock.ID == c.Block.ID {
		return joinSegments("c1", step, c.Block, c.LIB)
	}

	if c.Block.ID == c.LIB.ID {
		return joinSegments("c2", step, c.Block, c.HeadBlock)
	}

	return joinSegments("c3", step, c.Block, c.HeadBlock, c.LIB)
}

func (c *Cursor) ToOpaque() string {
	return EncodeOpaque([]byte(c.String()))
}

func (c *Cursor) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("step", c.Step.String())
	enc.AddUint64("block_num", c.Block.Num)
	enc.AddString("block_id", c.Block.ID)
	enc.AddUint64("head_block_num", c.HeadBlock.Num)
	enc.AddString("head_block_id", c.HeadBlock.ID)
	enc.AddUint64("lib_num", c.LIB.Num)
	enc.AddString("lib_id", c.LIB.ID)
	return nil
}

func joinSegments(prefix string, step string, refs ...BlockRef) string {
	segments := make([]string, 0, 2+2*len(refs))
	segments = append(segments, prefix, step)
	for _, ref := range refs {
		segments = append(segments, strconv.FormatUint(ref.Num, 10), ref.ID)
	}

	return strings.Join(segments, ":")
}

// FromOpaque decodes an opaque token into a Cursor.
func FromOpaque(token string) (*Cursor, error) {
	payload, err := DecodeOpaque(token)
	if err != nil {
		return nil, err
	}

	return FromString(string(payload))
}

// FromString parses the canonical form produced by String.
func FromString(in string) (*Cursor, error) {
	parts := strings.Split(in, ":")
	if len(parts) < 6 {
		return nil, newDecodeError(ReasonTooShort, in, nil)
	}

	expectedSegments := 0
	switch parts[0] {
	case "c1", "c2":
		expectedSegments = 6
	case "c3":
		expectedSegments = 8
	default:
		return nil, newDecodeError(ReasonInvalidPrefix, in, nil)
	}

	if len(parts) != expectedSegments {
		return nil, newDecodeError(ReasonSegmentCount, in, fmt.Errorf("expected %d segments, got %d", expectedSegments, len(parts)))
	}

	step, err := ParseStep(parts[1])
	if err != nil {
		return nil, err
	}

	block, err := readBlockRef(in, parts[2], parts[3])
	if err != nil {
		return nil, err
	}

	second, err := readBlockRef(in, parts[4], parts[5])
	if err != nil {
		return nil, err
	}

	switch parts[0] {
	case "c1":
		return New(step, block, block, second), nil
	case "c2":
		return New(step, block, second, block), nil
	}

	lib, err := readBlockRef(in, parts[6], parts[7])
	if err != nil {
		return nil, err
	}

	return New(step, block, second, lib), nil
}

func readBlockRef(in, numStr, id string) (BlockRef, error) {
	num, err := strconv.ParseUint(numStr, 10, 64)
	if err != nil {
		return BlockRef{}, newDecodeError(ReasonInvalidBlockNumber, in, err)
	}

	return NewBlockRef(id, num), nil
}
