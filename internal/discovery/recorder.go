package discovery

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/steveyegge/kernelfinder/internal/events"
	"github.com/steveyegge/kernelfinder/internal/finder"
)

// The Session is the registry's Observer: lifecycle notifications are logged
// and, when history is enabled, recorded as RegistryEvents.
var _ finder.Observer = (*Session)(nil)

// FinderRegistered implements finder.Observer.
func (s *Session) FinderRegistered(info finder.Info) {
	s.logger.Debug("Finder registered", zap.String("finder", info.ID()))
	s.recordFinder(events.EventTypeFinderRegistered, events.SeverityInfo, info, nil,
		fmt.Sprintf("Registered %s finder %q", info.Kind(), info.DisplayName()))
}

// FinderDeregistered implements finder.Observer.
func (s *Session) FinderDeregistered(info finder.Info) {
	s.logger.Debug("Finder deregistered", zap.String("finder", info.ID()))
	s.recordFinder(events.EventTypeFinderDeregistered, events.SeverityInfo, info, nil,
		fmt.Sprintf("Deregistered %s finder %q", info.Kind(), info.DisplayName()))
}

// FinderFailed implements finder.Observer.
func (s *Session) FinderFailed(info finder.Info, err error) {
	s.recordFinder(events.EventTypeFinderFailed, events.SeverityWarning, info, err,
		fmt.Sprintf("Finder %q failed: %v", info.DisplayName(), err))
}

// KernelsListed implements finder.Observer.
func (s *Session) KernelsListed(summary finder.ListSummary) {
	if s.store == nil {
		return
	}
	event, err := events.NewKernelsListedEvent(s.id, events.KernelsListedData{
		KernelCount: summary.KernelCount,
		FinderCount: summary.FinderCount,
		DurationMs:  summary.Duration.Milliseconds(),
		Cancelled:   summary.Cancelled,
	})
	if err != nil {
		s.logger.Warn("Failed to build listing event", zap.Error(err))
		return
	}
	if summary.Failed > 0 {
		event.Severity = events.SeverityWarning
	}
	s.record(event)
}

func (s *Session) kernelsChanged() {
	if s.store == nil {
		return
	}
	s.record(events.NewSimpleEvent(events.EventTypeKernelsChanged, s.id, "",
		events.SeverityInfo, "Kernel list may have changed"))
}

func (s *Session) recordFinder(typ events.EventType, severity events.EventSeverity, info finder.Info, cause error, message string) {
	if s.store == nil {
		return
	}
	data := events.FinderData{
		FinderKind:  string(info.Kind()),
		DisplayName: info.DisplayName(),
	}
	if cause != nil {
		data.Error = cause.Error()
	}
	event, err := events.NewFinderEvent(typ, s.id, info.ID(), severity, message, data)
	if err != nil {
		s.logger.Warn("Failed to build finder event", zap.Error(err))
		return
	}
	s.record(event)
}

func (s *Session) record(event *events.RegistryEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := s.store.StoreEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to record registry event",
			zap.String("type", string(event.Type)),
			zap.Error(err))
	}
}
