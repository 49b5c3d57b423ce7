package cursor

import (
	"fmt"
	"strconv"
)

// StepType classifies a block observation. Values are bit patterns shared
// with the remote streaming service and must never be renumbered.
type StepType int32

const (
	StepNew             StepType = 1
	StepUndo            StepType = 2
	StepIrreversible    StepType = 16
	StepNewIrreversible StepType = StepNew | StepIrreversible
	StepStalled         StepType = 32

	// StepAll is the code the service uses for the union of every step, it
	// is not the bitwise OR of the others.
	StepAll StepType = 68
)

var stepNames = map[StepType]string{
	StepNew:             "new",
	StepUndo:            "undo",
	StepIrreversible:    "irreversible",
	StepNewIrreversible: "new_irreversible",
	StepStalled:         "stalled",
	StepAll:             "all",
}

// StepFromCode maps an integer code to its StepType. Codes outside the known
// set yield an `InvalidStepCode` error.
func StepFromCode(code int64) (StepType, error) {
	step := StepType(code)
	if int64(step) != code {
		return 0, newDecodeError(ReasonInvalidStepCode, strconv.FormatInt(code, 10), nil)
	}

	if _, found := stepNames[step]; !found {
		return 0, newDecodeError(ReasonInvalidStepCode, strconv.FormatInt(code, 10), nil)
	}

	return step, nil
}

// ParseStep reads the decimal form of a step code as found in canonical cursors.
func ParseStep(in string) (StepType, error) {
	code, err := strconv.ParseInt(in, 10, 32)
	if err != nil {
		return 0, newDecodeError(ReasonInvalidStepCode, in, err)
	}

	return StepFromCode(code)
}

func (s StepType) Code() int32 {
	return int32(s)
}

func (s StepType) IsNew() bool {
	return s&StepNew != 0
}

func (s StepType) IsUndo() bool {
	return s&StepUndo != 0
}

func (s StepType) IsIrreversible() bool {
	return s&StepIrreversible != 0
}

func (s StepType) String() string {
	if name, found := stepNames[s]; found {
		return name
	}

	return fmt.Sprintf("unknown(%d)", int32(s))
}
