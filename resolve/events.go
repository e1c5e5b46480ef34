package resolve

import "time"

// Status is the lifecycle state of a node in the resolution tree.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusResolving Status = "resolving"
	StatusComplete  Status = "complete"
	StatusError     Status = "error"
	StatusCached    Status = "cached"
	StatusCycle     Status = "cycle-detected"
)

// Phase distinguishes a node's first event from later updates.
type Phase string

const (
	PhaseStart  Phase = "start"
	PhaseUpdate Phase = "update"
)

// Event describes one observation of a node during a resolution run.
// IsChatFile is nil until the document has been parsed.
type Event struct {
	RunID         string    `json:"runId"`
	Seq           uint64    `json:"seq"`
	At            time.Time `json:"at"`
	FilePath      string    `json:"filePath"`
	ParentPath    string    `json:"parentPath,omitempty"`
	Depth         int       `json:"depth"`
	Status        Status    `json:"status"`
	Phase         Phase     `json:"phase"`
	IsPendingChat bool      `json:"isPendingChat"`
	IsChatFile    *bool     `json:"isChatFile,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// EventSink receives node events. Implementations must be safe for
// concurrent use: sibling subtrees resolve in parallel.
type EventSink interface {
	Emit(Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// MultiSink fans events out to several sinks in order.
type MultiSink []EventSink

func (m MultiSink) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}
