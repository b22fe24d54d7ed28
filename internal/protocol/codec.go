// internal/protocol/codec.go
package protocol

import (
	"fmt"
	"sort"
	"strings"

	"servo-bridge/internal/model"
)

// Variant identifies an inbound/outbound wire encoding pair
type Variant string

const (
	// VariantText carries CSV text from the client and CSV text plus newline to the firmware
	VariantText Variant = "text"
	// VariantBinary carries a JSON array from the client and packed uint16 frames to the firmware
	VariantBinary Variant = "binary"
)

// Codec converts between client payloads, position vectors and firmware frames
type Codec interface {
	Variant() Variant

	// Subprotocol is the WebSocket subprotocol token that selects this codec
	Subprotocol() string

	// Decode parses a client payload into candidate joint values.
	// The result is not shape or range checked.
	Decode(payload []byte) ([]int, error)

	// EncodeInbound renders a vector the way a client sends it
	EncodeInbound(vector model.PositionVector) []byte

	// Encode renders a validated vector as a firmware frame
	Encode(vector model.PositionVector) ([]byte, error)
}

var codecs = map[Variant]Codec{
	VariantText:   textCodec{},
	VariantBinary: binaryCodec{},
}

// Lookup returns the codec registered for variant
func Lookup(variant Variant) (Codec, error) {
	codec, ok := codecs[variant]
	if !ok {
		return nil, fmt.Errorf("unsupported protocol variant: %q", variant)
	}
	return codec, nil
}

// ParseVariant parses a configured or requested variant name
func ParseVariant(name string) (Variant, error) {
	variant := Variant(strings.ToLower(strings.TrimSpace(name)))
	if _, err := Lookup(variant); err != nil {
		return "", err
	}
	return variant, nil
}

// Variants returns all registered variants in a stable order
func Variants() []Variant {
	variants := make([]Variant, 0, len(codecs))
	for v := range codecs {
		variants = append(variants, v)
	}
	sort.Slice(variants, func(i, j int) bool { return variants[i] < variants[j] })
	return variants
}

// Subprotocols returns the WebSocket subprotocol tokens of all variants
func Subprotocols() []string {
	var tokens []string
	for _, v := range Variants() {
		tokens = append(tokens, codecs[v].Subprotocol())
	}
	return tokens
}

// VariantForSubprotocol maps a negotiated subprotocol back to its variant
func VariantForSubprotocol(token string) (Variant, bool) {
	for v, codec := range codecs {
		if codec.Subprotocol() == token {
			return v, true
		}
	}
	return "", false
}

func decodeError(variant Variant, payload []byte, err error) error {
	const maxPayload = 64

	text := string(payload)
	if len(text) > maxPayload {
		text = text[:maxPayload] + "..."
	}

	return &model.DecodeError{
		Variant: string(variant),
		Payload: text,
		Err:     err,
	}
}
