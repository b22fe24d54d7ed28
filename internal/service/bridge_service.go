// internal/service/bridge_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"servo-bridge/internal/config"
	"servo-bridge/internal/metrics"
	"servo-bridge/internal/model"
	"servo-bridge/internal/protocol"
)

// FrameWriter is the write side of the serial link
type FrameWriter interface {
	Write(ctx context.Context, frame []byte) (Ack, error)
	IsOpen() bool
}

// PreparedFrame is a validated position update encoded for the firmware
type PreparedFrame struct {
	Variant protocol.Variant
	Vector  model.PositionVector
	Frame   []byte
}

// ForwardResult describes a position update accepted by the serial link
type ForwardResult struct {
	PreparedFrame
	Ack Ack
}

// BridgeService turns client payloads into serial frames
type BridgeService struct {
	link           FrameWriter
	defaultVariant protocol.Variant
	logger         *zap.Logger
}

// NewBridgeService creates a new bridge service
func NewBridgeService(link FrameWriter, cfg *config.BridgeConfig, logger *zap.Logger) (*BridgeService, error) {
	variant, err := protocol.ParseVariant(cfg.DefaultVariant)
	if err != nil {
		return nil, fmt.Errorf("invalid bridge.default_variant: %w", err)
	}

	return &BridgeService{
		link:           link,
		defaultVariant: variant,
		logger:         logger.With(zap.String("component", "bridge")),
	}, nil
}

// DefaultVariant returns the variant used when a client does not negotiate one
func (s *BridgeService) DefaultVariant() protocol.Variant {
	return s.defaultVariant
}

// LinkOpen reports whether frames can currently be forwarded
func (s *BridgeService) LinkOpen() bool {
	return s.link.IsOpen()
}

// ResolveVariant picks a connection's variant. A negotiated subprotocol wins over
// the requested name, which wins over the configured default.
func (s *BridgeService) ResolveVariant(subprotocol, requested string) (protocol.Variant, error) {
	if variant, ok := protocol.VariantForSubprotocol(subprotocol); ok {
		return variant, nil
	}
	if requested != "" {
		return protocol.ParseVariant(requested)
	}
	return s.defaultVariant, nil
}

// Prepare decodes, shape checks, envelope checks and encodes a payload.
// It fails with *model.DecodeError, *model.ShapeError or *model.RangeError.
func (s *BridgeService) Prepare(variant protocol.Variant, payload []byte) (*PreparedFrame, error) {
	codec, err := protocol.Lookup(variant)
	if err != nil {
		return nil, err
	}

	values, err := codec.Decode(payload)
	if err != nil {
		return nil, err
	}

	vector, err := model.ValidateShape(values)
	if err != nil {
		return nil, err
	}

	vector, err = model.Validate(vector)
	if err != nil {
		return nil, err
	}

	frame, err := codec.Encode(vector)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", variant, err)
	}

	return &PreparedFrame{
		Variant: variant,
		Vector:  vector,
		Frame:   frame,
	}, nil
}

// Forward hands a prepared frame to the serial link
func (s *BridgeService) Forward(ctx context.Context, prepared *PreparedFrame) (*ForwardResult, error) {
	ack, err := s.link.Write(ctx, prepared.Frame)
	if err != nil {
		metrics.RecordMessageRejected(string(prepared.Variant), string(model.ReasonFor(err)))
		return nil, err
	}

	return &ForwardResult{
		PreparedFrame: *prepared,
		Ack:           ack,
	}, nil
}

// Accept counts an inbound message and prepares it. Rejections are logged and
// counted here so callers only decide whether to notify the client.
func (s *BridgeService) Accept(clientID string, variant protocol.Variant, payload []byte) (*PreparedFrame, error) {
	metrics.RecordMessageReceived(string(variant))

	prepared, err := s.Prepare(variant, payload)
	if err != nil {
		s.Reject(clientID, variant, err)
		return nil, err
	}
	return prepared, nil
}

// HandleMessage runs one full decode, validate and forward cycle for a message.
// A failure at any stage drops only this message.
func (s *BridgeService) HandleMessage(ctx context.Context, clientID string, variant protocol.Variant, payload []byte) (*ForwardResult, error) {
	start := time.Now()

	prepared, err := s.Accept(clientID, variant, payload)
	if err != nil {
		return nil, err
	}

	result, err := s.Forward(ctx, prepared)
	if err != nil {
		s.logger.Error("Position update not forwarded",
			zap.String("client_id", clientID),
			zap.Ints("positions", prepared.Vector.Slice()),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Debug("Position update forwarded",
		zap.String("client_id", clientID),
		zap.Ints("positions", result.Vector.Slice()),
		zap.Uint64("seq", result.Ack.Seq),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// Reject logs and counts a dropped message
func (s *BridgeService) Reject(clientID string, variant protocol.Variant, err error) {
	reason := model.ReasonFor(err)
	metrics.RecordMessageRejected(string(variant), string(reason))
	s.logger.Warn("Position update rejected",
		zap.String("client_id", clientID),
		zap.String("variant", string(variant)),
		zap.String("reason", string(reason)),
		zap.Error(err),
	)
}
