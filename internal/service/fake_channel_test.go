package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"servo-bridge/internal/protocol"
)

// fakeChannel records written bytes and lets tests inject failures and stalls
type fakeChannel struct {
	mu       sync.Mutex
	name     string
	open     bool
	openErr  error
	buf      bytes.Buffer
	frames   [][]byte
	failNext []error
	gate     chan struct{}
	opens    int

	inFlight    int32
	overlapSeen atomic.Bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{name: "/dev/ttyFAKE0"}
}

func (c *fakeChannel) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openErr != nil {
		return c.openErr
	}
	c.open = true
	c.opens++
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}

func (c *fakeChannel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Write(ctx context.Context, data []byte) error {
	if atomic.AddInt32(&c.inFlight, 1) > 1 {
		c.overlapSeen.Store(true)
	}
	defer atomic.AddInt32(&c.inFlight, -1)

	c.mu.Lock()
	gate := c.gate
	c.mu.Unlock()
	if gate != nil {
		<-gate
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return errors.New("port closed")
	}
	if len(c.failNext) > 0 {
		err := c.failNext[0]
		c.failNext = c.failNext[1:]
		return err
	}

	// write byte by byte so interleaving would corrupt frames
	for _, b := range data {
		c.buf.WriteByte(b)
		time.Sleep(time.Microsecond)
	}
	c.frames = append(c.frames, append([]byte(nil), data...))
	return nil
}

func (c *fakeChannel) Stats() protocol.ProtocolStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return protocol.ProtocolStats{
		BytesWritten:   int64(c.buf.Len()),
		OperationCount: int64(len(c.frames)),
		IsConnected:    c.open,
	}
}

func (c *fakeChannel) setGate(gate chan struct{}) {
	c.mu.Lock()
	c.gate = gate
	c.mu.Unlock()
}

func (c *fakeChannel) failWith(errs ...error) {
	c.mu.Lock()
	c.failNext = append(c.failNext, errs...)
	c.mu.Unlock()
}

func (c *fakeChannel) written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.buf.Bytes()...)
}

func (c *fakeChannel) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *fakeChannel) inFlightCount() int32 {
	return atomic.LoadInt32(&c.inFlight)
}
