package substreams_source

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/streamingfast/bstream"
)

// ResolveBlockRange turns the `[<start>]:[<stop>]` command line shorthand into
// a range. An omitted start is initialBlock. A `+N` start is relative to
// initialBlock, a `+N` stop relative to the start. An omitted or `-1` stop
// means an open range.
func ResolveBlockRange(input string, initialBlock uint64) (*bstream.Range, error) {
	input = strings.TrimSpace(input)
	if input == "" || input == "-1" {
		return bstream.NewOpenRange(initialBlock), nil
	}

	startInput, stopInput, found := strings.Cut(input, ":")
	if !found {
		startInput, stopInput = "", startInput
	}

	start := initialBlock
	if startInput != "" {
		relative := strings.HasPrefix(startInput, "+")
		value, err := strconv.ParseUint(strings.TrimPrefix(startInput, "+"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid start block %q: %w", startInput, err)
		}

		start = value
		if relative {
			start = initialBlock + value
		}
	}

	if stopInput == "" || stopInput == "-1" {
		return bstream.NewOpenRange(start), nil
	}

	relative := strings.HasPrefix(stopInput, "+")
	stop, err := strconv.ParseUint(strings.TrimPrefix(stopInput, "+"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid stop block %q: %w", stopInput, err)
	}

	if relative {
		stop = start + stop
	}

	if stop <= start {
		return nil, fmt.Errorf("stop block %d must be above start block %d", stop, start)
	}

	return bstream.NewRangeExcludingEnd(start, stop), nil
}
