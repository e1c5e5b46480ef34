package runlog

import (
	"context"
	"io"
	"log/slog"

	"github.com/weftlabs/weft/resolve"
)

// Sink adapts a Store to the resolver's event stream. Append failures
// are logged and dropped so storage trouble never fails a resolution.
type Sink struct {
	store  Store
	logger *slog.Logger
}

// NewSink wraps a store as an event sink. A nil logger discards
// failure reports.
func NewSink(store Store, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Sink{store: store, logger: logger}
}

// Emit records the event. The sink outlives any single resolution, so
// appends run on a background context rather than the run's.
func (s *Sink) Emit(event resolve.Event) {
	if err := s.store.AppendEvent(context.Background(), event); err != nil {
		s.logger.Warn("failed to record node event",
			"run", event.RunID, "seq", event.Seq, "path", event.FilePath, "error", err)
	}
}

// Verify Sink implements EventSink
var _ resolve.EventSink = (*Sink)(nil)
