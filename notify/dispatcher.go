package notify

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultWorkers     = 2
	DefaultQueueSize   = 64
	DefaultSendTimeout = 10 * time.Second
)

// Dispatcher queues messages and delivers them from a fixed worker pool.
// Dispatch never blocks: when the queue is full the message is dropped and
// logged.
type Dispatcher struct {
	sender      Sender
	logger      Logger
	workers     int
	sendTimeout time.Duration

	queue chan Message
	wg    sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithLogger sets the logger
func WithLogger(logger Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithWorkers sets the worker count
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithQueueSize sets the queue capacity
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan Message, n)
		}
	}
}

// WithSendTimeout bounds every Send call
func WithSendTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.sendTimeout = timeout
		}
	}
}

// NewDispatcher creates a dispatcher delivering through sender. Call Start
// before dispatching and Close on shutdown.
func NewDispatcher(sender Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sender:      sender,
		workers:     DefaultWorkers,
		sendTimeout: DefaultSendTimeout,
		queue:       make(chan Message, DefaultQueueSize),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}

	if d.logger == nil {
		d.logger = defaultLogger()
	}

	return d
}

// Start launches the workers. Calling it more than once is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started || d.closed {
		return
	}
	d.started = true

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(i)
	}
}

// Dispatch enqueues msg and returns immediately. It reports whether the
// message was accepted.
func (d *Dispatcher) Dispatch(msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("notification dropped, dispatcher closed", "kind", msg.Kind, "to", msg.To)
		return false
	}

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	select {
	case d.queue <- msg:
		return true
	default:
		d.logger.Warn("notification dropped, queue full", "kind", msg.Kind, "to", msg.To)
		return false
	}
}

// Close stops accepting messages and waits for the workers to drain the
// queue or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work(id int) {
	defer d.wg.Done()

	for msg := range d.queue {
		d.deliver(id, msg)
	}
}

func (d *Dispatcher) deliver(worker int, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("notification sender panic", "worker", worker, "kind", msg.Kind, "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()

	if err := d.sender.Send(ctx, msg); err != nil {
		d.logger.Error("notification delivery failed", "worker", worker, "kind", msg.Kind, "to", msg.To, "error", err)
		return
	}

	d.logger.Debug("notification delivered", "worker", worker, "kind", msg.Kind, "to", msg.To)
}
