package notify

import (
	"context"
	"errors"

	"PostTranslator/internal/ports"
)

// Fanout publishes every message to all sinks.
type Fanout []ports.Notifier

var _ ports.Notifier = Fanout(nil)

// Publish delivers to every sink even when some fail, joining their errors.
func (f Fanout) Publish(ctx context.Context, channel string, payload any) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, channel, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
