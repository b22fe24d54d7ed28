// internal/service/link_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"servo-bridge/internal/config"
	"servo-bridge/internal/events"
	"servo-bridge/internal/metrics"
	"servo-bridge/internal/model"
	"servo-bridge/internal/protocol"
	"servo-bridge/internal/utils"
)

var (
	// ErrChannelClosed is returned for writes while the serial channel is not open
	ErrChannelClosed = errors.New("serial channel not open")
	// ErrQueueFull is returned when the writer queue cannot accept another frame
	ErrQueueFull = errors.New("serial write queue full")
	// ErrLinkStopped is returned for frames still queued when the link shuts down
	ErrLinkStopped = errors.New("serial link stopped")
)

// Ack confirms that the transport accepted a frame. It says nothing about
// whether the arm applied the position; the firmware sends no acknowledgement.
// A write that times out after the port took the frame fails with
// model.ErrWriteTimeout even though the arm may have received it.
type Ack struct {
	Seq        uint64        `json:"seq"`
	Bytes      int           `json:"bytes"`
	AcceptedAt time.Time     `json:"accepted_at"`
	WrittenAt  time.Time     `json:"written_at"`
	Duration   time.Duration `json:"duration"`
}

// LinkStatus describes the serial link for status endpoints
type LinkStatus struct {
	Port          string                 `json:"port"`
	BaudRate      int                    `json:"baud_rate"`
	Open          bool                   `json:"open"`
	QueueDepth    int                    `json:"queue_depth"`
	QueueCapacity int                    `json:"queue_capacity"`
	WriteTimeout  time.Duration          `json:"write_timeout"`
	Stats         protocol.ProtocolStats `json:"stats"`
	LastError     string                 `json:"last_error,omitempty"`
	LastErrorAt   *time.Time             `json:"last_error_at,omitempty"`
}

type writeResult struct {
	ack Ack
	err error
}

// writeRequest states; the writer and the waiting caller race for the first transition
const (
	requestQueued int32 = iota
	requestWriting
	requestAbandoned
)

type writeRequest struct {
	ctx      context.Context
	seq      uint64
	frame    []byte
	accepted time.Time
	state    atomic.Int32
	result   chan writeResult
}

// LinkService owns the serial channel and serializes every write through a
// single writer goroutine. Frames are written in the order Write accepted them.
type LinkService struct {
	channel      protocol.Channel
	baudRate     int
	writeTimeout time.Duration
	eventBus     *events.EventBus
	logger       *utils.LinkLogger

	queue chan *writeRequest
	stop  chan struct{}
	wg    sync.WaitGroup

	// acceptMutex orders sequence numbers with queue insertion
	acceptMutex sync.Mutex
	seq         uint64
	stopped     bool

	lifecycleMutex sync.Mutex

	errMutex    sync.Mutex
	lastError   error
	lastErrorAt time.Time
}

// NewLinkService creates a link around channel and starts its writer.
// The channel is not opened until Open is called.
func NewLinkService(
	channel protocol.Channel,
	cfg *config.SerialConfig,
	eventBus *events.EventBus,
	logger *zap.Logger,
) *LinkService {
	l := &LinkService{
		channel:      channel,
		baudRate:     cfg.BaudRate,
		writeTimeout: cfg.WriteTimeout,
		eventBus:     eventBus,
		logger:       utils.NewLinkLogger(logger, channel.Name(), cfg.BaudRate),
		queue:        make(chan *writeRequest, cfg.QueueSize),
		stop:         make(chan struct{}),
	}

	l.wg.Add(1)
	go l.run()

	return l
}

// Open opens the serial channel once. Failures are returned as *model.OpenError
// and are not retried.
func (l *LinkService) Open(ctx context.Context) error {
	l.lifecycleMutex.Lock()
	defer l.lifecycleMutex.Unlock()

	return l.openLocked(ctx)
}

func (l *LinkService) openLocked(ctx context.Context) error {
	if l.channel.IsOpen() {
		return nil
	}

	if err := l.channel.Open(ctx); err != nil {
		openErr := &model.OpenError{
			Port:     l.channel.Name(),
			BaudRate: l.baudRate,
			Err:      err,
		}
		l.logger.LogConnection("open", false, openErr)
		l.recordError(openErr)
		metrics.SetSerialOpen(false)
		return openErr
	}

	l.logger.LogConnection("open", true, nil)
	metrics.SetSerialOpen(true)
	l.publish(model.EventSerialOpened, "INFO", nil)
	return nil
}

// Reopen closes and reopens the channel. It is an operator action and is
// never invoked by the link itself.
func (l *LinkService) Reopen(ctx context.Context) error {
	l.lifecycleMutex.Lock()
	defer l.lifecycleMutex.Unlock()

	l.acceptMutex.Lock()
	stopped := l.stopped
	l.acceptMutex.Unlock()
	if stopped {
		return ErrLinkStopped
	}

	if err := l.closeChannelLocked(); err != nil {
		l.logger.Warn("Ignoring close error before reopen", zap.Error(err))
	}

	return l.openLocked(ctx)
}

// IsOpen returns whether the serial channel is open
func (l *LinkService) IsOpen() bool {
	return l.channel.IsOpen()
}

// Write queues frame for the writer and waits for the transport result.
// The wait is bounded by the configured write timeout. A frame whose deadline
// passes while still queued is never written.
func (l *LinkService) Write(ctx context.Context, frame []byte) (Ack, error) {
	if !l.channel.IsOpen() {
		return Ack{}, &model.WriteError{Err: ErrChannelClosed}
	}

	ctx, cancel := context.WithTimeout(ctx, l.writeTimeout)
	defer cancel()

	req := &writeRequest{
		ctx:      ctx,
		frame:    frame,
		accepted: time.Now(),
		result:   make(chan writeResult, 1),
	}

	if err := l.enqueue(req); err != nil {
		l.recordError(err)
		return Ack{}, err
	}

	select {
	case res := <-req.result:
		return res.ack, res.err
	case <-ctx.Done():
	}

	if req.state.CompareAndSwap(requestQueued, requestAbandoned) {
		err := &model.WriteError{Seq: req.seq, Err: fmt.Errorf("expired in write queue: %w", ctx.Err())}
		l.recordError(err)
		return Ack{}, err
	}

	// the writer already took the frame
	select {
	case res := <-req.result:
		return res.ack, res.err
	default:
	}
	err := &model.WriteError{Seq: req.seq, Err: fmt.Errorf("%w: %w", model.ErrWriteTimeout, ctx.Err())}
	l.recordError(err)
	return Ack{}, err
}

func (l *LinkService) enqueue(req *writeRequest) error {
	l.acceptMutex.Lock()
	defer l.acceptMutex.Unlock()

	if l.stopped {
		return &model.WriteError{Err: ErrLinkStopped}
	}

	// a rejected frame does not consume a sequence number
	req.seq = l.seq + 1

	select {
	case l.queue <- req:
		l.seq = req.seq
		metrics.SetSerialQueueDepth(len(l.queue))
		return nil
	default:
		req.seq = 0
		return &model.WriteError{Err: ErrQueueFull}
	}
}

// run is the single writer. It is the only caller of channel.Write.
func (l *LinkService) run() {
	defer l.wg.Done()

	for {
		select {
		case <-l.stop:
			l.drain()
			return
		case req := <-l.queue:
			metrics.SetSerialQueueDepth(len(l.queue))
			req.result <- l.write(req)
		}
	}
}

func (l *LinkService) write(req *writeRequest) writeResult {
	if err := req.ctx.Err(); err != nil || !req.state.CompareAndSwap(requestQueued, requestWriting) {
		if err == nil {
			err = context.Canceled
		}
		l.logger.Warn("Skipping expired frame",
			zap.Uint64("seq", req.seq),
			zap.Duration("queued_for", time.Since(req.accepted)),
		)
		return writeResult{err: &model.WriteError{Seq: req.seq, Err: err}}
	}

	start := time.Now()
	err := l.channel.Write(req.ctx, req.frame)
	duration := time.Since(start)

	l.logger.LogFrame(req.seq, req.frame, duration, err)
	metrics.RecordSerialWrite(err == nil, time.Since(req.accepted).Seconds())

	if err != nil {
		writeErr := &model.WriteError{Seq: req.seq, Err: err}
		l.recordError(writeErr)
		l.publish(model.EventSerialWriteFailed, "ERROR", map[string]interface{}{
			"seq":   req.seq,
			"error": err.Error(),
		})
		return writeResult{err: writeErr}
	}

	return writeResult{ack: Ack{
		Seq:        req.seq,
		Bytes:      len(req.frame),
		AcceptedAt: req.accepted,
		WrittenAt:  time.Now(),
		Duration:   duration,
	}}
}

// drain fails every frame still queued at shutdown
func (l *LinkService) drain() {
	for {
		select {
		case req := <-l.queue:
			req.result <- writeResult{err: &model.WriteError{Seq: req.seq, Err: ErrLinkStopped}}
		default:
			metrics.SetSerialQueueDepth(0)
			return
		}
	}
}

// Close stops the writer and closes the serial channel
func (l *LinkService) Close() error {
	l.acceptMutex.Lock()
	if l.stopped {
		l.acceptMutex.Unlock()
		return nil
	}
	l.stopped = true
	l.acceptMutex.Unlock()

	close(l.stop)
	l.wg.Wait()

	l.lifecycleMutex.Lock()
	defer l.lifecycleMutex.Unlock()
	return l.closeChannelLocked()
}

func (l *LinkService) closeChannelLocked() error {
	if !l.channel.IsOpen() {
		return nil
	}

	err := l.channel.Close()
	l.logger.LogConnection("close", err == nil, err)
	metrics.SetSerialOpen(false)
	l.publish(model.EventSerialClosed, "INFO", nil)
	return err
}

// Status returns a snapshot of the link state
func (l *LinkService) Status() LinkStatus {
	status := LinkStatus{
		Port:          l.channel.Name(),
		BaudRate:      l.baudRate,
		Open:          l.channel.IsOpen(),
		QueueDepth:    len(l.queue),
		QueueCapacity: cap(l.queue),
		WriteTimeout:  l.writeTimeout,
		Stats:         l.channel.Stats(),
	}

	l.errMutex.Lock()
	defer l.errMutex.Unlock()
	if l.lastError != nil {
		at := l.lastErrorAt
		status.LastError = l.lastError.Error()
		status.LastErrorAt = &at
	}

	return status
}

func (l *LinkService) recordError(err error) {
	l.errMutex.Lock()
	defer l.errMutex.Unlock()
	l.lastError = err
	l.lastErrorAt = time.Now()
}

func (l *LinkService) publish(eventType model.EventType, severity string, data map[string]interface{}) {
	if l.eventBus == nil {
		return
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	data["port"] = l.channel.Name()
	l.eventBus.Publish(model.NewBridgeEvent(eventType, "serial-link", severity, data))
}
