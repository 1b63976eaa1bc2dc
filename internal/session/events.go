package session

// EventType identifies session events.
type EventType int

const (
	EventImageLoaded EventType = iota
	EventCalibrationChanged
	EventConfigChanged
	EventMoldsChanged
	EventSelectionChanged
	EventDisplayChanged
	EventProcessingChanged
	EventDetectFailed
)

func (e EventType) String() string {
	switch e {
	case EventImageLoaded:
		return "image-loaded"
	case EventCalibrationChanged:
		return "calibration-changed"
	case EventConfigChanged:
		return "config-changed"
	case EventMoldsChanged:
		return "molds-changed"
	case EventSelectionChanged:
		return "selection-changed"
	case EventDisplayChanged:
		return "display-changed"
	case EventProcessingChanged:
		return "processing-changed"
	case EventDetectFailed:
		return "detect-failed"
	default:
		return "unknown"
	}
}

// EventListener is called after the session lock is released.
type EventListener func(data interface{})

// On registers a listener for event.
func (s *Session) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit calls every listener registered for event.
func (s *Session) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}
