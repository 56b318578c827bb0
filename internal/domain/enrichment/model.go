package enrichment

// Terminal event types. The backend emits TaskEnded when the fetch task
// finishes outright and EnrichmentAllAccountBalancesUpdated once every
// account balance has been refreshed; either one ends the wait.
const (
	EventTaskEnded          = "TaskEnded"
	EventAllBalancesUpdated = "EnrichmentAllAccountBalancesUpdated"
)

// Event is a single entry in a task's event stream.
type Event struct {
	Type string `json:"type"`
}

// JobStatus is one observation of a background fetch task. Version is
// monotonically non-decreasing across polls of the same task and is fed
// back as the sinceVersion of the next poll.
type JobStatus struct {
	Events  []Event `json:"events"`
	Version int64   `json:"version"`
}

// Terminal reports whether the event stream contains a terminal event.
func (s JobStatus) Terminal() bool {
	for _, evt := range s.Events {
		if evt.Type == EventTaskEnded || evt.Type == EventAllBalancesUpdated {
			return true
		}
	}
	return false
}
