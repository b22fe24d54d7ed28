// internal/protocol/text_codec.go
package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"servo-bridge/internal/model"
)

const textSeparator = ","

type textCodec struct{}

func (textCodec) Variant() Variant { return VariantText }

func (textCodec) Subprotocol() string { return "servo.text.v1" }

func (textCodec) Decode(payload []byte) ([]int, error) {
	tokens := strings.Split(strings.TrimSpace(string(payload)), textSeparator)

	values := make([]int, 0, len(tokens))
	for i, token := range tokens {
		value, err := strconv.Atoi(strings.TrimSpace(token))
		if err != nil {
			return nil, decodeError(VariantText, payload, fmt.Errorf("token %d: %w", i, err))
		}
		values = append(values, value)
	}

	return values, nil
}

func (textCodec) EncodeInbound(vector model.PositionVector) []byte {
	return []byte(joinValues(vector))
}

func (textCodec) Encode(vector model.PositionVector) ([]byte, error) {
	return []byte(joinValues(vector) + "\n"), nil
}

func joinValues(vector model.PositionVector) string {
	parts := make([]string, len(vector))
	for i, value := range vector {
		parts[i] = strconv.Itoa(value)
	}
	return strings.Join(parts, textSeparator)
}
