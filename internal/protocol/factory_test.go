package protocol

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"servo-bridge/internal/config"
	"servo-bridge/internal/discovery"
)

type stubScanner struct {
	port *discovery.SerialPort
	err  error
}

func (s stubScanner) Scan(ctx context.Context) ([]*discovery.SerialPort, error) {
	if s.port == nil {
		return nil, s.err
	}
	return []*discovery.SerialPort{s.port}, s.err
}

func (s stubScanner) FindArm(ctx context.Context) (*discovery.SerialPort, error) {
	return s.port, s.err
}

func serialSettings(path string) *config.SerialConfig {
	return &config.SerialConfig{
		DevicePath: path,
		BaudRate:   9600,
		DataBits:   8,
		StopBits:   1,
		Parity:     "none",
	}
}

func TestResolveDevicePath(t *testing.T) {
	path, err := ResolveDevicePath(context.Background(), serialSettings("/dev/ttyACM0"), nil)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", path)

	scanner := stubScanner{port: &discovery.SerialPort{Name: "/dev/ttyUSB2", IsUSB: true}}
	path, err = ResolveDevicePath(context.Background(), serialSettings("auto"), scanner)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB2", path)

	_, err = ResolveDevicePath(context.Background(), serialSettings("auto"), stubScanner{err: discovery.ErrNoArmFound})
	assert.ErrorIs(t, err, discovery.ErrNoArmFound)

	_, err = ResolveDevicePath(context.Background(), serialSettings("auto"), nil)
	assert.Error(t, err)
}

func TestCreateChannel(t *testing.T) {
	ch, err := CreateChannel(context.Background(), serialSettings("/dev/ttyACM0"), nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", ch.Name())
	assert.False(t, ch.IsOpen())

	bad := serialSettings("/dev/ttyACM0")
	bad.Parity = "sideways"
	_, err = CreateChannel(context.Background(), bad, nil, zaptest.NewLogger(t))
	assert.Error(t, err)
}
