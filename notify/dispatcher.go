package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultPublishTimeout = 5 * time.Second

// Publisher delivers one event. Implementations may block; the dispatcher bounds them.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event Event) error

func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Dispatcher fans events out to publishers in the background.
// Publisher failures are logged and never reach the caller.
type Dispatcher struct {
	publishers []Publisher
	logger     *zap.Logger
	timeout    time.Duration
	wg         sync.WaitGroup
}

func NewDispatcher(logger *zap.Logger, timeout time.Duration, publishers ...Publisher) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Dispatcher{
		publishers: publishers,
		logger:     logger,
		timeout:    timeout,
	}
}

// Dispatch returns immediately. The caller's cancellation does not cut delivery short.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) {
	ctx = context.WithoutCancel(ctx)
	for _, p := range d.publishers {
		d.wg.Add(1)
		go func(p Publisher) {
			defer d.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error("publisher panicked",
						zap.String("order_id", event.OrderID.String()),
						zap.Any("panic", r))
				}
			}()

			ctx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()
			if err := p.Publish(ctx, event); err != nil {
				d.logger.Warn("failed to publish order event",
					zap.String("order_id", event.OrderID.String()),
					zap.String("new_status", string(event.NewStatus)),
					zap.Error(err))
			}
		}(p)
	}
}

// Wait blocks until every dispatched event has been handled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close waits for in-flight deliveries or gives up when ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher still delivering: %w", ctx.Err())
	}
}
