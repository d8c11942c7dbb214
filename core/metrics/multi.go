package metrics

// MultiSink fans solve events out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSolve forwards the event to all sinks, returning the first error
// encountered.
func (m *MultiSink) RecordSolve(ev SolveEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordSolve(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordUnplanned forwards unplanned tasks to the sinks supporting them.
func (m *MultiSink) RecordUnplanned(evs []UnplannedEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(UnplannedRecorder); ok {
			if err := rec.RecordUnplanned(evs); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes the sinks holding connections.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
