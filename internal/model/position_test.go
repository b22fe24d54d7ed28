package model

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateShape(t *testing.T) {
	tests := []struct {
		name    string
		values  []int
		wantErr bool
	}{
		{"empty", nil, true},
		{"too short", []int{90, 90, 90, 45}, true},
		{"exact", []int{90, 90, 90, 45, 90}, false},
		{"too long", []int{90, 90, 90, 45, 90, 90}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vector, err := ValidateShape(tt.values)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, tt.values, vector.Slice())
				return
			}

			var shapeErr *ShapeError
			require.ErrorAs(t, err, &shapeErr)
			assert.Equal(t, len(tt.values), shapeErr.Got)
			assert.Equal(t, JointCount, shapeErr.Want)
		})
	}
}

func TestValidate_AcceptsEnvelopeBounds(t *testing.T) {
	lower := PositionVector{}
	upper := PositionVector{}
	for i, env := range Envelopes() {
		lower[i] = env.Min
		upper[i] = env.Max
	}

	for _, v := range []PositionVector{lower, upper, HomePosition} {
		got, err := Validate(v)
		require.NoError(t, err, "vector %v", v)
		assert.Equal(t, v, got)
	}
}

func TestValidate_RejectsFirstViolation(t *testing.T) {
	tests := []struct {
		vector    PositionVector
		wantIndex int
		wantValue int
	}{
		{PositionVector{200, 90, 90, 45, 90}, 0, 200},
		{PositionVector{90, 9, 90, 45, 90}, 1, 9},
		{PositionVector{90, 90, 171, 45, 90}, 2, 171},
		{PositionVector{90, 90, 90, 150, 90}, 3, 150},
		{PositionVector{90, 90, 90, 45, -1}, 4, -1},
		// two violations: only the first is reported
		{PositionVector{90, 0, 90, 91, 90}, 1, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.vector), func(t *testing.T) {
			_, err := Validate(tt.vector)

			var rangeErr *RangeError
			require.ErrorAs(t, err, &rangeErr)
			assert.Equal(t, tt.wantIndex, rangeErr.Index)
			assert.Equal(t, tt.wantValue, rangeErr.Value)
			assert.Equal(t, Envelopes()[tt.wantIndex].Min, rangeErr.Min)
			assert.Equal(t, Envelopes()[tt.wantIndex].Max, rangeErr.Max)
			assert.Equal(t, JointName(tt.wantIndex), rangeErr.Joint)
		})
	}
}

func TestReasonFor(t *testing.T) {
	assert.Equal(t, RejectDecode, ReasonFor(&DecodeError{Variant: "text", Err: errors.New("x")}))
	assert.Equal(t, RejectShape, ReasonFor(fmt.Errorf("wrapped: %w", &ShapeError{Got: 4, Want: 5})))
	assert.Equal(t, RejectRange, ReasonFor(&RangeError{Index: 3}))
	assert.Equal(t, RejectWrite, ReasonFor(&WriteError{Seq: 1, Err: errors.New("unplugged")}))
	assert.Equal(t, RejectTimeout, ReasonFor(&WriteError{Seq: 2, Err: fmt.Errorf("%w: %w", ErrWriteTimeout, context.DeadlineExceeded)}))
	assert.Equal(t, RejectWrite, ReasonFor(&WriteError{Seq: 3, Err: context.DeadlineExceeded}))
	assert.Equal(t, RejectBusy, ReasonFor(ErrBusy))
}

func TestJointName(t *testing.T) {
	assert.Equal(t, "grip", JointName(JointGrip))
	assert.Equal(t, "rotation", JointName(JointRotation))
	assert.Equal(t, "joint_7", JointName(7))
}
