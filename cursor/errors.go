package cursor

import (
	"fmt"
)

type DecodeReason string

const (
	ReasonInvalidEncoding    DecodeReason = "invalid text encoding"
	ReasonAuthentication     DecodeReason = "authentication failed"
	ReasonInvalidPrefix      DecodeReason = "invalid prefix"
	ReasonTooShort           DecodeReason = "too short"
	ReasonSegmentCount       DecodeReason = "invalid number of segments"
	ReasonInvalidBlockNumber DecodeReason = "invalid block number"
	ReasonInvalidStepCode    DecodeReason = "invalid step code"
)

// DecodeError is returned for any malformed opaque token or canonical cursor
// string.
type DecodeError struct {
	Reason DecodeReason
	Input  string
	Err    error
}

func newDecodeError(reason DecodeReason, input string, err error) *DecodeError {
	return &DecodeError{Reason: reason, Input: input, Err: err}
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid cursor: %s on %q: %s", e.Reason, e.Input, e.Err)
	}

	return fmt.Sprintf("invalid cursor: %s on %q", e.Reason, e.Input)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
