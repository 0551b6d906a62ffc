// Package notify delivers participant notifications in the background.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"rently-backend/internal/domain"
	"rently-backend/internal/logger"
)

var ErrQueueFull = errors.New("notification queue is full")

// Sender delivers one notification over one channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, n domain.Notification) error
}

// Dispatcher queues notifications and hands them to a Sender from a small
// worker pool. Notify never blocks; a full queue drops the notification.
type Dispatcher struct {
	sender     Sender
	jobs       chan domain.Notification
	workers    int
	maxRetries int
	backoff    time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type DispatcherOption func(*Dispatcher)

func WithRetries(maxRetries int, backoff time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.maxRetries = maxRetries
		d.backoff = backoff
	}
}

func NewDispatcher(sender Sender, workers, queueSize int, opts ...DispatcherOption) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	d := &Dispatcher{
		sender:     sender,
		jobs:       make(chan domain.Notification, queueSize),
		workers:    workers,
		maxRetries: 3,
		backoff:    time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the workers. They stop once Close drains the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
	logger.Info("Notification dispatcher started", "workers", d.workers, "sender", d.sender.Name())
}

func (d *Dispatcher) Sender() Sender {
	return d.sender
}

// Notify implements service.Notifier.
func (d *Dispatcher) Notify(ctx context.Context, n domain.Notification) {
	if err := d.Enqueue(n); err != nil {
		logger.Warn("Dropping notification", "user_id", n.UserID, "type", n.Type, "error", err)
	}
}

func (d *Dispatcher) Enqueue(n domain.Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return errors.New("notification dispatcher is closed")
	}
	select {
	case d.jobs <- n:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting notifications and waits for queued ones to be sent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
	logger.Info("Notification dispatcher stopped")
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	for n := range d.jobs {
		d.deliver(ctx, id, n)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, workerID int, n domain.Notification) {
	var err error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				logger.Warn("Notification abandoned on shutdown", "user_id", n.UserID, "type", n.Type)
				return
			case <-time.After(d.backoff * time.Duration(attempt)):
			}
		}
		if err = d.sender.Send(ctx, n); err == nil {
			logger.Debug("Notification sent", "worker", workerID, "user_id", n.UserID, "type", n.Type)
			return
		}
	}
	logger.Warn("Notification failed", "user_id", n.UserID, "type", n.Type, "attempts", d.maxRetries+1, "error", err)
}
