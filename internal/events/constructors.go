package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewSimpleEvent creates a RegistryEvent without structured data.
func NewSimpleEvent(eventType EventType, sessionID, finderID string, severity EventSeverity, message string) *RegistryEvent {
	return &RegistryEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: sessionID,
		FinderID:  finderID,
		Severity:  severity,
		Message:   message,
	}
}

// NewFinderEvent creates a finder lifecycle event with type-safe data.
func NewFinderEvent(eventType EventType, sessionID, finderID string, severity EventSeverity, message string, data FinderData) (*RegistryEvent, error) {
	event := NewSimpleEvent(eventType, sessionID, finderID, severity, message)
	if err := event.SetFinderData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewKernelsListedEvent creates a listing event with type-safe data.
func NewKernelsListedEvent(sessionID string, data KernelsListedData) (*RegistryEvent, error) {
	message := fmt.Sprintf("Listed %d kernels from %d finders in %dms", data.KernelCount, data.FinderCount, data.DurationMs)
	if data.Cancelled {
		message = "Kernel listing cancelled"
	}
	event := NewSimpleEvent(EventTypeKernelsListed, sessionID, "", SeverityInfo, message)
	if err := event.SetKernelsListedData(data); err != nil {
		return nil, err
	}
	return event, nil
}
