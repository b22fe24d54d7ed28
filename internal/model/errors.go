// internal/model/errors.go
package model

import (
	"errors"
	"fmt"
)

// RejectReason is the machine-readable cause reported for a dropped message
type RejectReason string

const (
	RejectDecode RejectReason = "decode"
	RejectShape  RejectReason = "shape"
	RejectRange  RejectReason = "range"
	RejectWrite   RejectReason = "write"
	RejectTimeout RejectReason = "timeout"
	RejectBusy    RejectReason = "busy"
)

// ErrBusy is returned when a connection cannot queue another update for forwarding
var ErrBusy = errors.New("too many position updates in flight")

// ErrWriteTimeout marks a write whose deadline passed after the frame was handed to
// the serial port. The frame may still have reached the arm.
var ErrWriteTimeout = errors.New("serial write did not complete in time")

// DecodeError is returned when a payload cannot be parsed in the connection's variant
type DecodeError struct {
	Variant string
	Payload string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s payload %q: %v", e.Variant, e.Payload, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ShapeError is returned when a decoded payload does not carry one value per joint
type ShapeError struct {
	Got  int
	Want int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("position vector has %d elements, want %d", e.Got, e.Want)
}

// RangeError names the first joint whose value lies outside its envelope
type RangeError struct {
	Index int
	Joint string
	Value int
	Min   int
	Max   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("joint %d (%s) value %d outside allowed range %d..%d",
		e.Index, e.Joint, e.Value, e.Min, e.Max)
}

// OpenError is returned when the serial channel cannot be established
type OpenError struct {
	Port     string
	BaudRate int
	Err      error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open serial channel %s at %d baud: %v", e.Port, e.BaudRate, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// WriteError carries the transport failure for a single frame
type WriteError struct {
	Seq uint64
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("serial write #%d failed: %v", e.Seq, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ReasonFor maps a pipeline error to its reject reason. Unknown errors map to RejectWrite.
func ReasonFor(err error) RejectReason {
	var (
		decodeErr *DecodeError
		shapeErr  *ShapeError
		rangeErr  *RangeError
	)

	switch {
	case errors.Is(err, ErrBusy):
		return RejectBusy
	case errors.Is(err, ErrWriteTimeout):
		return RejectTimeout
	case errors.As(err, &decodeErr):
		return RejectDecode
	case errors.As(err, &shapeErr):
		return RejectShape
	case errors.As(err, &rangeErr):
		return RejectRange
	default:
		return RejectWrite
	}
}
