package cursor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepFromCode(t *testing.T) {
	tests := []struct {
		code      int64
		expected  StepType
		assertion require.ErrorAssertionFunc
	}{
		{1, StepNew, require.NoError},
		{2, StepUndo, require.NoError},
		{16, StepIrreversible, require.NoError},
		{17, StepNewIrreversible, require.NoError},
		{32, StepStalled, require.NoError},
		{68, StepAll, require.NoError},
		{0, 0, require.Error},
		{3, 0, require.Error},
		{18, 0, require.Error},
		{-1, 0, require.Error},
		{1 << 40, 0, require.Error},
	}

	for _, tt := range tests {
		t.Run(StepType(tt.code).String(), func(t *testing.T) {
			step, err := StepFromCode(tt.code)
			tt.assertion(t, err)
			assert.Equal(t, tt.expected, step)

			if err != nil {
				var decodeErr *DecodeError
				require.True(t, errors.As(err, &decodeErr))
				assert.Equal(t, ReasonInvalidStepCode, decodeErr.Reason)
			}
		})
	}
}

func TestParseStep_NotNumeric(t *testing.T) {
	_, err := ParseStep("new")
	require.Error(t, err)
}

func TestStepType_Flags(t *testing.T) {
	assert.True(t, StepNewIrreversible.IsNew())
	assert.True(t, StepNewIrreversible.IsIrreversible())
	assert.False(t, StepNewIrreversible.IsUndo())
	assert.True(t, StepUndo.IsUndo())
	assert.Equal(t, int32(68), StepAll.Code())
}
