package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nwestbury/tickerbot/internal/domain"
)

// Fanout publishes every event to multiple sinks (the in-process hub, the
// optional Redis bridge). A failing sink never prevents delivery to the
// remaining ones.
type Fanout struct {
	sinks  []domain.Publisher
	logger *slog.Logger
}

// NewFanout creates a Fanout over the given sinks. Nil sinks are skipped.
func NewFanout(logger *slog.Logger, sinks ...domain.Publisher) *Fanout {
	kept := make([]domain.Publisher, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Fanout{
		sinks:  kept,
		logger: logger.With(slog.String("component", "fanout")),
	}
}

// Publish delivers the event to every sink, collecting individual failures
// into a combined error.
func (f *Fanout) Publish(ctx context.Context, event string, payload any) error {
	var errs []string
	for _, sink := range f.sinks {
		if err := sink.Publish(ctx, event, payload); err != nil {
			f.logger.WarnContext(ctx, "sink publish failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("broadcast: %d sink(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// Compile-time interface check.
var _ domain.Publisher = (*Fanout)(nil)
