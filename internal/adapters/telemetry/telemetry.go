// Package telemetry streams decision cycle state transitions to TCP
// subscribers as newline-delimited JSON. Delivery is best effort: the
// engine's hot path never blocks on a subscriber, and a consumer that
// cannot keep up loses frames rather than slowing the engine.
package telemetry

import (
	"context"
	"encoding/json"
	"net"
	"sync"

	"github.com/kestrelworks/sentinel/internal/engine"
	"github.com/kestrelworks/sentinel/pkg/logger"
)

// Default broadcaster configuration constants.
const (
	defaultSubscriberBuffer = 128
)

// Option applies a configuration option to the Broadcaster.
type Option func(*Broadcaster)

// WithSubscriberBuffer sets how many frames a subscriber may lag before
// frames are dropped for it.
func WithSubscriberBuffer(n int) Option {
	return func(b *Broadcaster) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// Broadcaster accepts TCP subscribers and fans transition frames out to
// them. Create with Listen, feed it via Emit, stop with Close.
type Broadcaster struct {
	listener   net.Listener
	bufferSize int
	log        logger.Logger

	mu          sync.Mutex
	subscribers map[net.Conn]chan []byte
	closed      bool

	wg sync.WaitGroup
}

// Listen binds addr and starts accepting subscribers.
func Listen(addr string, opts ...Option) (*Broadcaster, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	b := &Broadcaster{
		listener:    ln,
		bufferSize:  defaultSubscriberBuffer,
		log:         logger.Named("telemetry"),
		subscribers: make(map[net.Conn]chan []byte),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.wg.Add(1)
	go b.acceptLoop()
	return b, nil
}

// Addr returns the bound listen address.
func (b *Broadcaster) Addr() net.Addr {
	return b.listener.Addr()
}

// Emit implements engine.TransitionSink. It marshals once and hands the
// frame to every subscriber without blocking; a full subscriber buffer
// drops the frame for that subscriber only.
func (b *Broadcaster) Emit(tr engine.Transition) {
	frame, err := json.Marshal(tr)
	if err != nil {
		return
	}
	frame = append(frame, '\n')

	b.mu.Lock()
	defer b.mu.Unlock()
	for conn, ch := range b.subscribers {
		select {
		case ch <- frame:
		default:
			// slow consumer, frame lost for this subscriber
			_ = conn
		}
	}
}

// Close stops accepting, disconnects every subscriber and waits for
// writer goroutines to finish.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for conn, ch := range b.subscribers {
		close(ch)
		_ = conn.Close()
	}
	b.subscribers = make(map[net.Conn]chan []byte)
	b.mu.Unlock()

	err := b.listener.Close()
	b.wg.Wait()
	return err
}

func (b *Broadcaster) acceptLoop() {
	defer b.wg.Done()
	for {
		conn, err := b.listener.Accept()
		if err != nil {
			return
		}

		ch := make(chan []byte, b.bufferSize)
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			_ = conn.Close()
			return
		}
		b.subscribers[conn] = ch
		n := len(b.subscribers)
		b.mu.Unlock()

		b.log.Debug(context.Background(), "telemetry subscriber connected",
			logger.String("remote", conn.RemoteAddr().String()),
			logger.Int("subscribers", n))

		b.wg.Add(1)
		go b.writeLoop(conn, ch)
	}
}

func (b *Broadcaster) writeLoop(conn net.Conn, ch chan []byte) {
	defer b.wg.Done()
	for frame := range ch {
		if _, err := conn.Write(frame); err != nil {
			break
		}
	}

	b.mu.Lock()
	if _, ok := b.subscribers[conn]; ok {
		delete(b.subscribers, conn)
		close(ch)
	}
	b.mu.Unlock()
	_ = conn.Close()

	// drain anything emitted between the write failure and removal
	for range ch {
	}
}
