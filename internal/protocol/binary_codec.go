// internal/protocol/binary_codec.go
package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"servo-bridge/internal/model"
)

// FrameSize is the length of a packed binary frame
const FrameSize = 2 * model.JointCount

type binaryCodec struct{}

func (binaryCodec) Variant() Variant { return VariantBinary }

func (binaryCodec) Subprotocol() string { return "servo.binary.v1" }

// Decode expects a JSON array of integers
func (binaryCodec) Decode(payload []byte) ([]int, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, decodeError(VariantBinary, payload, fmt.Errorf("invalid JSON: %w", err))
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, decodeError(VariantBinary, payload, errors.New("trailing data after JSON value"))
	}

	items, ok := raw.([]interface{})
	if !ok {
		return nil, decodeError(VariantBinary, payload, fmt.Errorf("expected JSON array, got %T", raw))
	}

	values := make([]int, 0, len(items))
	for i, item := range items {
		number, ok := item.(json.Number)
		if !ok {
			return nil, decodeError(VariantBinary, payload, fmt.Errorf("element %d is not a number", i))
		}
		value, err := number.Int64()
		if err != nil || value < math.MinInt32 || value > math.MaxInt32 {
			return nil, decodeError(VariantBinary, payload, fmt.Errorf("element %d is not an integer: %s", i, number))
		}
		values = append(values, int(value))
	}

	return values, nil
}

func (binaryCodec) EncodeInbound(vector model.PositionVector) []byte {
	data, _ := json.Marshal(vector.Slice())
	return data
}

// Encode packs each joint as a little-endian uint16 at offset 2*index.
// Callers must validate the vector first.
func (binaryCodec) Encode(vector model.PositionVector) ([]byte, error) {
	frame := make([]byte, FrameSize)
	for i, value := range vector {
		if value < 0 || value > math.MaxUint16 {
			return nil, fmt.Errorf("joint %d value %d does not fit in uint16", i, value)
		}
		binary.LittleEndian.PutUint16(frame[2*i:], uint16(value))
	}
	return frame, nil
}
