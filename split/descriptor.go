package split

import (
	"encoding/json"
	"fmt"

	"github.com/streamingfast/substreams-cursor-source/cursor"
)

// Descriptor describes one resumable unit of work. Values are never mutated
// in place, WithResumeCursor returns a copy.
type Descriptor struct {
	SourceRef    string `json:"package_file"`
	Module       string `json:"module_name"`
	Endpoint     string `json:"endpoint_url"`
	ResumeCursor string `json:"opaque_cursor,omitempty"`
	StartBlock   uint64 `json:"start_block"`
	StopBlock    uint64 `json:"stop_block"`
}

// NewDescriptor builds the descriptor of config resuming at resumeToken, an
// opaque cursor kept as is. An empty token starts at the start block.
func NewDescriptor(config *Config, resumeToken string) *Descriptor {
	return &Descriptor{
		SourceRef:    config.Package.Raw,
		Module:       config.OutputModule,
		Endpoint:     config.EndpointURL,
		ResumeCursor: resumeToken,
		StartBlock:   config.StartBlock,
		StopBlock:    config.StopBlock,
	}
}

// ID only depends on the module, the source and the endpoint so a restarted
// process reattaches to the same checkpoint.
func (d *Descriptor) ID() string {
	return fmt.Sprintf("%s-%s-%s", d.Module, d.SourceRef, d.Endpoint)
}

func (d *Descriptor) HasResumeCursor() bool {
	return d.ResumeCursor != ""
}

// Cursor decodes the resume cursor, nil when there is none.
func (d *Descriptor) Cursor() (*cursor.Cursor, error) {
	if !d.HasResumeCursor() {
		return nil, nil
	}

	return cursor.FromOpaque(d.ResumeCursor)
}

// WithResumeCursor returns a copy of d resuming at opaque, which must decode.
func (d *Descriptor) WithResumeCursor(opaque string) (*Descriptor, *cursor.Cursor, error) {
	c, err := cursor.FromOpaque(opaque)
	if err != nil {
		return nil, nil, fmt.Errorf("update offset of split %q: %w", d.ID(), err)
	}

	out := *d
	out.ResumeCursor = opaque
	return &out, c, nil
}

// IsComplete is true when c already reached the stop block.
func (d *Descriptor) IsComplete(c *cursor.Cursor) bool {
	return d.StopBlock > 0 && c != nil && c.Block.Num >= d.StopBlock
}

func (d *Descriptor) EncodeJSON() ([]byte, error) {
	return json.Marshal(d)
}

func RestoreJSON(content []byte) (*Descriptor, error) {
	d := &Descriptor{}
	if err := json.Unmarshal(content, d); err != nil {
		return nil, fmt.Errorf("unmarshal split descriptor: %w", err)
	}

	return d, nil
}
