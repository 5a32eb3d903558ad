package orchestrator

import (
	"sort"
	"sync"
)

// Phase is the lifecycle state of one source within a run.
type Phase string

// Phases recorded in the status table.
const (
	PhasePending  Phase = "pending"
	PhaseStarted  Phase = "started"
	PhaseFinished Phase = "finished"
)

// StatusTable tracks each source's phase, keyed by source name. It exists for
// process-level introspection (reporting in-flight sources on a timeout, the
// status endpoint) and is never used for coordination between sources.
type StatusTable struct {
	mu     sync.RWMutex
	phases map[string]Phase
}

// NewStatusTable returns an empty table.
func NewStatusTable() *StatusTable {
	return &StatusTable{phases: make(map[string]Phase)}
}

// Set records the phase for a source.
func (t *StatusTable) Set(source string, phase Phase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phases[source] = phase
}

// Get returns the phase for a source, or empty if unknown.
func (t *StatusTable) Get(source string) Phase {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.phases[source]
}

// InFlight lists sources marked started but not yet finished, sorted.
func (t *StatusTable) InFlight() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []string
	for name, phase := range t.phases {
		if phase == PhaseStarted {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Snapshot copies the full table.
func (t *StatusTable) Snapshot() map[string]Phase {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]Phase, len(t.phases))
	for name, phase := range t.phases {
		out[name] = phase
	}
	return out
}
