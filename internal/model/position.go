// internal/model/position.go
package model

import "fmt"

// JointCount is the number of controllable axes on the arm
const JointCount = 5

// Joint indices, in wire order
const (
	JointSegment1 = iota
	JointSegment2
	JointSegment3
	JointGrip
	JointRotation
)

// PositionVector holds one target position per joint, indexed by the Joint* constants
type PositionVector [JointCount]int

// HomePosition is the neutral pose the control surface starts from
var HomePosition = PositionVector{90, 90, 90, 45, 90}

// Envelope represents the inclusive commanded range of a joint
type Envelope struct {
	Joint string `json:"joint"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
}

// Contains reports whether value lies within the envelope
func (e Envelope) Contains(value int) bool {
	return value >= e.Min && value <= e.Max
}

func (e Envelope) String() string {
	return fmt.Sprintf("%s[%d..%d]", e.Joint, e.Min, e.Max)
}

var envelopes = [JointCount]Envelope{
	JointSegment1: {Joint: "segment_1", Min: 10, Max: 140},
	JointSegment2: {Joint: "segment_2", Min: 10, Max: 140},
	JointSegment3: {Joint: "segment_3", Min: 10, Max: 170},
	JointGrip:     {Joint: "grip", Min: 0, Max: 90},
	JointRotation: {Joint: "rotation", Min: 0, Max: 180},
}

// Envelopes returns the mechanical envelope of every joint in index order
func Envelopes() [JointCount]Envelope {
	return envelopes
}

// JointName returns the name of the joint at index, or "joint_<n>" when out of bounds
func JointName(index int) string {
	if index < 0 || index >= JointCount {
		return fmt.Sprintf("joint_%d", index)
	}
	return envelopes[index].Joint
}

// ValidateShape converts a decoded value list into a PositionVector.
// Any length other than JointCount is a ShapeError.
func ValidateShape(values []int) (PositionVector, error) {
	var vector PositionVector
	if len(values) != JointCount {
		return vector, &ShapeError{Got: len(values), Want: JointCount}
	}

	copy(vector[:], values)
	return vector, nil
}

// Validate checks every joint against its envelope and fails on the first
// violation. The vector is never clamped.
func Validate(vector PositionVector) (PositionVector, error) {
	for i, value := range vector {
		env := envelopes[i]
		if !env.Contains(value) {
			return vector, &RangeError{
				Index: i,
				Joint: env.Joint,
				Value: value,
				Min:   env.Min,
				Max:   env.Max,
			}
		}
	}
	return vector, nil
}

// Slice returns the vector as a plain int slice
func (v PositionVector) Slice() []int {
	out := make([]int, JointCount)
	copy(out, v[:])
	return out
}
