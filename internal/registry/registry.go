// Package registry implements the Workflow Registry & Expander: an
// atomically-swapped, copy-on-reload store of workflow definitions, and the
// expansion algorithm that turns one workflow plus its resolved parameters
// and the current scene into an ordered tool-call list.
package registry

import (
	"sync/atomic"

	"routersupervisor/internal/model"
)

// WorkflowSource supplies the freshly loaded set of workflows on a
// (re)load, the same shape internal/catalog.Snapshot exposes via
// WorkflowList.
type WorkflowSource interface {
	WorkflowList() []*model.WorkflowDefinition
}

// Registry holds the currently published set of workflow definitions
// behind an atomically-swapped pointer, so in-flight expansions keep
// reading the snapshot they started with even while a reload is in
// progress — grounded on the teacher's modes.Registry (there a
// sync.RWMutex-guarded map), generalized here to the copy-on-reload model
// the spec requires: a reload builds an entirely new map and swaps it in
// one atomic store rather than mutating the published map under a lock.
type Registry struct {
	snapshot atomic.Pointer[map[string]*model.WorkflowDefinition]
}

// New constructs an empty Registry; call Load before Get is useful.
func New() *Registry {
	r := &Registry{}
	empty := map[string]*model.WorkflowDefinition{}
	r.snapshot.Store(&empty)
	return r
}

// Load replaces the published workflow set with src's current contents.
func (r *Registry) Load(src WorkflowSource) {
	next := make(map[string]*model.WorkflowDefinition)
	for _, wf := range src.WorkflowList() {
		next[wf.Name] = wf
	}
	r.snapshot.Store(&next)
}

// Get returns the named workflow from the currently published snapshot.
func (r *Registry) Get(name string) (*model.WorkflowDefinition, bool) {
	m := *r.snapshot.Load()
	wf, ok := m[name]
	return wf, ok
}

// Workflows returns every workflow in the currently published snapshot,
// satisfying internal/matcher's WorkflowSource interface directly (unlike
// internal/catalog.Snapshot, Registry has no colliding field name).
func (r *Registry) Workflows() []*model.WorkflowDefinition {
	m := *r.snapshot.Load()
	out := make([]*model.WorkflowDefinition, 0, len(m))
	for _, wf := range m {
		out = append(out, wf)
	}
	return out
}
