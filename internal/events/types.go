package events

import (
	"time"
)

// EventType represents the type of registry event recorded for diagnostics.
type EventType string

const (
	// EventTypeFinderRegistered indicates a finder joined the registry
	EventTypeFinderRegistered EventType = "finder_registered"
	// EventTypeFinderDeregistered indicates a finder registration was disposed
	EventTypeFinderDeregistered EventType = "finder_deregistered"
	// EventTypeKernelsChanged indicates the merged view may be stale
	EventTypeKernelsChanged EventType = "kernels_changed"
	// EventTypeKernelsListed indicates a listing call completed
	EventTypeKernelsListed EventType = "kernels_listed"
	// EventTypeFinderFailed indicates a finder failed readiness or listing
	EventTypeFinderFailed EventType = "finder_failed"
)

// IsValid checks if the event type value is valid
func (t EventType) IsValid() bool {
	switch t {
	case EventTypeFinderRegistered, EventTypeFinderDeregistered, EventTypeKernelsChanged,
		EventTypeKernelsListed, EventTypeFinderFailed:
		return true
	}
	return false
}

// EventSeverity represents the severity level of an event.
type EventSeverity string

const (
	// SeverityInfo indicates informational events
	SeverityInfo EventSeverity = "info"
	// SeverityWarning indicates potentially problematic events
	SeverityWarning EventSeverity = "warning"
	// SeverityError indicates error events
	SeverityError EventSeverity = "error"
)

// RegistryEvent is one entry in the diagnostic event history.
type RegistryEvent struct {
	// ID is the unique identifier for this event
	ID string `json:"id"`
	// Type is the type of event
	Type EventType `json:"type"`
	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`
	// SessionID is the owning session that produced this event
	SessionID string `json:"session_id"`
	// FinderID is the finder involved, empty for registry-wide events
	FinderID string `json:"finder_id,omitempty"`
	// Severity is the severity level of this event
	Severity EventSeverity `json:"severity"`
	// Message is a human-readable description of the event
	Message string `json:"message"`
	// Data contains structured, type-specific data (must be JSON-serializable)
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventFilter narrows event history queries.
type EventFilter struct {
	// SessionID filters events by session
	SessionID string
	// Type filters events by event type
	Type EventType
	// AfterTime filters events that occurred after this time
	AfterTime time.Time
	// Limit limits the number of events returned
	Limit int
}

// KernelsListedData is the Data payload of EventTypeKernelsListed.
type KernelsListedData struct {
	KernelCount int   `json:"kernel_count"`
	FinderCount int   `json:"finder_count"`
	DurationMs  int64 `json:"duration_ms"`
	Cancelled   bool  `json:"cancelled"`
}

// FinderData is the Data payload of finder lifecycle events.
type FinderData struct {
	FinderKind  string `json:"finder_kind"`
	DisplayName string `json:"display_name"`
	Error       string `json:"error,omitempty"`
}
