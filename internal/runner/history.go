package runner

import "sync"

// History keeps recent reports and fans out per-item events.
type History struct {
	mu      sync.RWMutex
	reports []*Report
	maxSize int
	events  chan Event
}

// NewHistory creates a history holding up to maxReports with an event buffer.
func NewHistory(maxReports, eventBuffer int) *History {
	return &History{
		reports: make([]*Report, 0, maxReports),
		maxSize: maxReports,
		events:  make(chan Event, eventBuffer),
	}
}

// Add records a finished report.
func (h *History) Add(r *Report) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.reports = append(h.reports, r)
	if len(h.reports) > h.maxSize {
		h.reports = h.reports[len(h.reports)-h.maxSize:]
	}
}

// Latest returns the most recent report, or nil.
func (h *History) Latest() *Report {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.reports) == 0 {
		return nil
	}
	return h.reports[len(h.reports)-1]
}

// Get returns the report with runID, or nil.
func (h *History) Get(runID string) *Report {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for i := len(h.reports) - 1; i >= 0; i-- {
		if h.reports[i].RunID == runID {
			return h.reports[i]
		}
	}
	return nil
}

// Len returns the number of stored reports.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.reports)
}

// Events returns the channel of item events.
func (h *History) Events() <-chan Event {
	return h.events
}

// Emit sends an event without blocking; events are dropped when nobody drains the channel.
func (h *History) Emit(e Event) {
	select {
	case h.events <- e:
	default:
	}
}
