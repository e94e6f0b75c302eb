package jobs

import (
	"context"
	"errors"

	"github.com/kalaghar/api/internal/services"
)

// FanOutPublisher sends each event to every configured publisher. A failure on one
// transport does not stop delivery to the others; all failures are joined.
type FanOutPublisher struct {
	publishers []services.OrderEventPublisher
}

var _ services.OrderEventPublisher = (*FanOutPublisher)(nil)

// NewFanOutPublisher drops nil publishers.
func NewFanOutPublisher(publishers ...services.OrderEventPublisher) *FanOutPublisher {
	kept := make([]services.OrderEventPublisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return &FanOutPublisher{publishers: kept}
}

// Len reports how many transports are configured.
func (f *FanOutPublisher) Len() int {
	if f == nil {
		return 0
	}
	return len(f.publishers)
}

// PublishOrderEvent implements services.OrderEventPublisher.
func (f *FanOutPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, p := range f.publishers {
		if err := p.PublishOrderEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
