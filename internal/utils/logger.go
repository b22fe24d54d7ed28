// internal/utils/logger.go
package utils

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"servo-bridge/internal/config"
)

// LoggerManager manages application logging
type LoggerManager struct {
	logger *zap.Logger
	config *config.LoggingConfig
}

// NewLogger creates a new logger instance based on configuration
func NewLogger(cfg *config.LoggingConfig) (*zap.Logger, error) {
	manager := &LoggerManager{
		config: cfg,
	}

	logger, err := manager.createLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	manager.logger = logger
	return logger, nil
}

// createLogger creates the zap logger with proper configuration
func (lm *LoggerManager) createLogger() (*zap.Logger, error) {
	encoderConfig := lm.getEncoderConfig()

	var encoder zapcore.Encoder
	switch lm.config.Format {
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	writeSyncer, err := lm.getWriteSyncer()
	if err != nil {
		return nil, fmt.Errorf("failed to create write syncer: %w", err)
	}

	level, err := ParseLevel(lm.config.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	core := zapcore.NewCore(encoder, writeSyncer, level)

	return zap.New(core, lm.getLoggerOptions()...), nil
}

// getEncoderConfig returns encoder configuration based on format
func (lm *LoggerManager) getEncoderConfig() zapcore.EncoderConfig {
	config := zap.NewProductionEncoderConfig()

	config.TimeKey = "timestamp"
	config.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	config.LevelKey = "level"
	config.EncodeLevel = zapcore.LowercaseLevelEncoder
	config.CallerKey = "caller"
	config.EncodeCaller = zapcore.ShortCallerEncoder
	config.MessageKey = "message"
	config.StacktraceKey = "stacktrace"

	// Console format customizations
	if lm.config.Format == "console" {
		config.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	}

	return config
}

// getWriteSyncer returns write syncer based on output configuration
func (lm *LoggerManager) getWriteSyncer() (zapcore.WriteSyncer, error) {
	switch lm.config.Output {
	case "stdout":
		return zapcore.AddSync(os.Stdout), nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil
	default:
		// File output with rotation
		if lm.config.Output == "" {
			lm.config.Output = "./logs/servo-bridge.log"
		}

		logDir := filepath.Dir(lm.config.Output)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		lumber := &lumberjack.Logger{
			Filename:   lm.config.Output,
			MaxSize:    lm.config.MaxSize, // MB
			MaxBackups: lm.config.MaxBackups,
			MaxAge:     lm.config.MaxAge, // days
			Compress:   lm.config.Compress,
		}

		return zapcore.AddSync(lumber), nil
	}
}

// ParseLevel parses a configured log level
func ParseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "fatal":
		return zapcore.FatalLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

// getLoggerOptions returns logger options
func (lm *LoggerManager) getLoggerOptions() []zap.Option {
	return []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	}
}

// LinkLogger wraps zap.Logger with serial link context
type LinkLogger struct {
	*zap.Logger
	port string
}

// NewLinkLogger creates a serial-link-specific logger
func NewLinkLogger(baseLogger *zap.Logger, port string, baudRate int) *LinkLogger {
	logger := baseLogger.With(
		zap.String("port", port),
		zap.Int("baud_rate", baudRate),
		zap.String("component", "serial-link"),
	)

	return &LinkLogger{
		Logger: logger,
		port:   port,
	}
}

// LogFrame logs the outcome of a single frame write
func (ll *LinkLogger) LogFrame(seq uint64, frame []byte, duration time.Duration, err error) {
	fields := []zap.Field{
		zap.Uint64("seq", seq),
		zap.Int("bytes", len(frame)),
		zap.String("frame_hex", hex.EncodeToString(frame)),
		zap.Duration("duration", duration),
		zap.Bool("success", err == nil),
	}

	if err != nil {
		fields = append(fields, zap.Error(err))
		ll.Error("Serial frame write failed", fields...)
	} else {
		ll.Debug("Serial frame written", fields...)
	}
}

// LogConnection logs channel lifecycle events
func (ll *LinkLogger) LogConnection(action string, success bool, err error) {
	fields := []zap.Field{
		zap.String("action", action),
		zap.Bool("success", success),
	}

	if err != nil {
		fields = append(fields, zap.Error(err))
		ll.Error("Serial channel event", fields...)
	} else {
		ll.Info("Serial channel event", fields...)
	}
}

// ConnectionLogger provides structured logging for one client connection
type ConnectionLogger struct {
	logger      *zap.Logger
	clientID    string
	connectedAt time.Time
}

// NewConnectionLogger creates a client-connection-specific logger
func NewConnectionLogger(baseLogger *zap.Logger, clientID, remoteAddr, variant string) *ConnectionLogger {
	logger := baseLogger.With(
		zap.String("client_id", clientID),
		zap.String("remote_addr", remoteAddr),
		zap.String("variant", variant),
		zap.String("component", "gateway"),
	)

	return &ConnectionLogger{
		logger:      logger,
		clientID:    clientID,
		connectedAt: time.Now(),
	}
}

// Logger returns the underlying zap logger
func (cl *ConnectionLogger) Logger() *zap.Logger {
	return cl.logger
}

// StateChanged logs a connection state transition
func (cl *ConnectionLogger) StateChanged(from, to string, err error) {
	fields := []zap.Field{
		zap.String("from", from),
		zap.String("to", to),
		zap.Duration("connected_for", time.Since(cl.connectedAt)),
	}

	if err != nil {
		fields = append(fields, zap.Error(err))
		cl.logger.Warn("Client connection state changed", fields...)
	} else {
		cl.logger.Info("Client connection state changed", fields...)
	}
}

// Rejected logs a dropped message
func (cl *ConnectionLogger) Rejected(reason string, err error, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("reason", reason),
		zap.Error(err),
	}, fields...)

	cl.logger.Warn("Position update rejected", allFields...)
}

// Forwarded logs a position update accepted by the serial link
func (cl *ConnectionLogger) Forwarded(seq uint64, positions []int, duration time.Duration) {
	cl.logger.Debug("Position update forwarded",
		zap.Uint64("seq", seq),
		zap.Ints("positions", positions),
		zap.Duration("duration", duration),
	)
}

// ServiceLogger provides service-level logging functionality
type ServiceLogger struct {
	*zap.Logger
	serviceName string
}

// NewServiceLogger creates a service-specific logger
func NewServiceLogger(baseLogger *zap.Logger, serviceName string) *ServiceLogger {
	logger := baseLogger.With(
		zap.String("service", serviceName),
		zap.String("component", "service"),
	)

	return &ServiceLogger{
		Logger:      logger,
		serviceName: serviceName,
	}
}

// LogServiceStart logs service startup
func (sl *ServiceLogger) LogServiceStart(version string, config interface{}) {
	sl.Info("Service starting",
		zap.String("version", version),
		zap.Any("config", config),
	)
}

// LogServiceStop logs service shutdown
func (sl *ServiceLogger) LogServiceStop(reason string) {
	sl.Info("Service stopping",
		zap.String("reason", reason),
	)
}

// LogAPIRequest logs HTTP API requests
func (sl *ServiceLogger) LogAPIRequest(method, path, userAgent, clientIP string, statusCode int, duration time.Duration) {
	level := zapcore.InfoLevel
	if statusCode >= 400 {
		level = zapcore.WarnLevel
	}
	if statusCode >= 500 {
		level = zapcore.ErrorLevel
	}

	if ce := sl.Check(level, "API request"); ce != nil {
		ce.Write(
			zap.String("method", method),
			zap.String("path", path),
			zap.String("user_agent", userAgent),
			zap.String("client_ip", clientIP),
			zap.Int("status_code", statusCode),
			zap.Duration("duration", duration),
		)
	}
}

// LoggerWithRequestID adds request ID to logger
func LoggerWithRequestID(logger *zap.Logger, requestID string) *zap.Logger {
	return logger.With(zap.String("request_id", requestID))
}

// CloseLogger flushes buffered log entries
func CloseLogger(logger *zap.Logger) error {
	return logger.Sync()
}
