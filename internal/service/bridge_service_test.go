package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"servo-bridge/internal/config"
	"servo-bridge/internal/model"
	"servo-bridge/internal/protocol"
)

type fakeWriter struct {
	mu     sync.Mutex
	open   bool
	err    error
	frames [][]byte
}

func (w *fakeWriter) Write(ctx context.Context, frame []byte) (Ack, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return Ack{}, w.err
	}
	w.frames = append(w.frames, append([]byte(nil), frame...))
	return Ack{Seq: uint64(len(w.frames)), Bytes: len(frame)}, nil
}

func (w *fakeWriter) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

func (w *fakeWriter) written() [][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]byte(nil), w.frames...)
}

func newBridge(t *testing.T, defaultVariant string) (*BridgeService, *fakeWriter) {
	t.Helper()
	writer := &fakeWriter{open: true}
	bridge, err := NewBridgeService(writer, &config.BridgeConfig{DefaultVariant: defaultVariant}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return bridge, writer
}

func TestNewBridgeService_InvalidDefaultVariant(t *testing.T) {
	_, err := NewBridgeService(&fakeWriter{}, &config.BridgeConfig{DefaultVariant: "morse"}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestBridgeService_ResolveVariant(t *testing.T) {
	bridge, _ := newBridge(t, "text")

	tests := []struct {
		name        string
		subprotocol string
		requested   string
		want        protocol.Variant
		wantErr     bool
	}{
		{name: "default", want: protocol.VariantText},
		{name: "query", requested: "binary", want: protocol.VariantBinary},
		{name: "query case", requested: " Binary ", want: protocol.VariantBinary},
		{name: "subprotocol wins", subprotocol: "servo.binary.v1", requested: "text", want: protocol.VariantBinary},
		{name: "unknown subprotocol falls back", subprotocol: "chat", want: protocol.VariantText},
		{name: "unknown query", requested: "morse", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := bridge.ResolveVariant(tt.subprotocol, tt.requested)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBridgeService_HandleMessage_Binary(t *testing.T) {
	bridge, writer := newBridge(t, "text")

	result, err := bridge.HandleMessage(context.Background(), "client-1", protocol.VariantBinary, []byte("[90,90,170,90,180]"))
	require.NoError(t, err)

	want := []byte{0x5A, 0x00, 0x5A, 0x00, 0xAA, 0x00, 0x5A, 0x00, 0xB4, 0x00}
	assert.Equal(t, want, result.Frame)
	assert.Equal(t, model.PositionVector{90, 90, 170, 90, 180}, result.Vector)
	assert.EqualValues(t, 1, result.Ack.Seq)
	assert.Equal(t, [][]byte{want}, writer.written())
}

func TestBridgeService_HandleMessage_Text(t *testing.T) {
	bridge, writer := newBridge(t, "text")

	_, err := bridge.HandleMessage(context.Background(), "client-1", protocol.VariantText, []byte(" 90, 90,90,45 ,90"))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("90,90,90,45,90\n")}, writer.written())
}

func TestBridgeService_HandleMessage_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		variant protocol.Variant
		payload string
		reason  model.RejectReason
	}{
		{name: "out of range", variant: protocol.VariantText, payload: "200,90,90,45,90", reason: model.RejectRange},
		{name: "too few", variant: protocol.VariantText, payload: "90,90,90", reason: model.RejectShape},
		{name: "too many", variant: protocol.VariantBinary, payload: "[90,90,90,45,90,90]", reason: model.RejectShape},
		{name: "not a number", variant: protocol.VariantText, payload: "90,abc,90,45,90", reason: model.RejectDecode},
		{name: "not an array", variant: protocol.VariantBinary, payload: `{"a":1}`, reason: model.RejectDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bridge, writer := newBridge(t, "text")

			result, err := bridge.HandleMessage(context.Background(), "client-1", tt.variant, []byte(tt.payload))
			require.Error(t, err)
			assert.Nil(t, result)
			assert.Equal(t, tt.reason, model.ReasonFor(err))
			assert.Empty(t, writer.written(), "rejected message must not reach the link")
		})
	}
}

func TestBridgeService_HandleMessage_RangeErrorNamesFirstJoint(t *testing.T) {
	bridge, _ := newBridge(t, "text")

	_, err := bridge.HandleMessage(context.Background(), "client-1", protocol.VariantText, []byte("200,90,90,45,90"))

	var rangeErr *model.RangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, 0, rangeErr.Index)
	assert.Equal(t, 200, rangeErr.Value)
}

func TestBridgeService_HandleMessage_WriteError(t *testing.T) {
	bridge, writer := newBridge(t, "binary")
	writer.err = &model.WriteError{Seq: 7, Err: errors.New("input/output error")}

	_, err := bridge.HandleMessage(context.Background(), "client-1", protocol.VariantBinary, []byte("[90,90,90,45,90]"))

	var writeErr *model.WriteError
	require.ErrorAs(t, err, &writeErr)
	assert.EqualValues(t, 7, writeErr.Seq)
	assert.Equal(t, model.RejectWrite, model.ReasonFor(err))
}

func TestBridgeService_PrepareThenForward(t *testing.T) {
	bridge, writer := newBridge(t, "text")

	prepared, err := bridge.Accept("client-1", protocol.VariantText, []byte("10,140,170,0,0"))
	require.NoError(t, err)
	assert.Empty(t, writer.written())

	_, err = bridge.Forward(context.Background(), prepared)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("10,140,170,0,0\n")}, writer.written())
}

func TestBridgeService_LinkOpen(t *testing.T) {
	bridge, writer := newBridge(t, "text")
	assert.True(t, bridge.LinkOpen())

	writer.mu.Lock()
	writer.open = false
	writer.mu.Unlock()
	assert.False(t, bridge.LinkOpen())
}
