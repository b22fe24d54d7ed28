// internal/protocol/factory.go
package protocol

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"servo-bridge/internal/config"
	"servo-bridge/internal/discovery"
)

// ResolveDevicePath returns the configured device path, asking scanner for the
// arm controller when the path is "auto"
func ResolveDevicePath(ctx context.Context, cfg *config.SerialConfig, scanner discovery.PortScanner) (string, error) {
	if !cfg.UsesAutoDevice() {
		return cfg.DevicePath, nil
	}
	if scanner == nil {
		return "", fmt.Errorf("serial.device_path is %q but no port scanner is available", config.AutoDevicePath)
	}

	port, err := scanner.FindArm(ctx)
	if err != nil {
		return "", fmt.Errorf("auto-detect serial port: %w", err)
	}
	return port.Name, nil
}

// NewSerialConfig builds the transport settings for a resolved device path
func NewSerialConfig(cfg *config.SerialConfig, devicePath string) *SerialConfig {
	return &SerialConfig{
		Port:     devicePath,
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: cfg.StopBits,
		Parity:   cfg.Parity,
	}
}

// CreateChannel creates the serial channel described by cfg. The channel is not opened.
func CreateChannel(ctx context.Context, cfg *config.SerialConfig, scanner discovery.PortScanner, logger *zap.Logger) (Channel, error) {
	devicePath, err := ResolveDevicePath(ctx, cfg, scanner)
	if err != nil {
		return nil, err
	}

	serialConfig := NewSerialConfig(cfg, devicePath)
	if _, err := serialConfig.Mode(); err != nil {
		return nil, fmt.Errorf("invalid serial settings: %w", err)
	}

	logger.Info("Creating serial channel",
		zap.String("port", serialConfig.Port),
		zap.Int("baud_rate", serialConfig.BaudRate),
		zap.Bool("auto_detected", cfg.UsesAutoDevice()),
	)

	return NewSerialConnection(serialConfig, logger), nil
}
