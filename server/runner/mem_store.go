package runner

import "sync"

// history is a list of runs ordered most recent first. A positive limit caps its length.
type history struct {
	mu    sync.Mutex
	limit int
	runs  []runRecord
}

func (h *history) summaries() []RunSummary {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]RunSummary, len(h.runs))
	for i := range h.runs {
		out[i] = h.runs[i].RunSummary
	}
	return out
}

func (h *history) nodes(id string) []NodeExecution {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, rec := range h.runs {
		if rec.ID == id {
			return append([]NodeExecution(nil), rec.Nodes...)
		}
	}
	return nil
}

func (h *history) add(rec runRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs = append([]runRecord{rec}, h.runs...)
	h.trim()
}

func (h *history) replace(runs []runRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs = runs
	h.trim()
}

func (h *history) trim() {
	if h.limit > 0 && len(h.runs) > h.limit {
		h.runs = h.runs[:h.limit]
	}
}

// MemoryStore holds run history for the lifetime of the process.
type MemoryStore struct {
	runs history
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) History() []RunSummary           { return s.runs.summaries() }
func (s *MemoryStore) Nodes(id string) []NodeExecution { return s.runs.nodes(id) }

// Save records the run, deriving its ID when the summary has none.
func (s *MemoryStore) Save(summary RunSummary, nodes []NodeExecution) error {
	if summary.ID == "" {
		summary.ID = summary.CalculateID()
	}
	s.runs.add(runRecord{RunSummary: summary, Nodes: nodes})
	return nil
}
