// Package registry reconciles polled daemon state with locally tracked slots.
package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/surge-downloader/riptide/internal/engine/events"
	"github.com/surge-downloader/riptide/internal/engine/types"
)

type entry struct {
	slot      int
	name      string // last known name, stored raw
	completed bool
	record    types.DownloadRecord
}

// Registry maps daemon gids to display slots. Slots are handed out in order
// of first sighting and never reused.
//
// Reconcile is meant to be driven by a single poll loop. The mutex only
// protects Detach and Snapshot calls arriving from other goroutines.
type Registry struct {
	mu       sync.Mutex
	entries  map[string]*entry
	done     map[string]bool // every gid ever completed, survives Detach
	detached map[string]bool
	nextSlot int
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries:  make(map[string]*entry),
		done:     make(map[string]bool),
		detached: make(map[string]bool),
	}
}

// transient states are shown by the daemon but produce no events
func isTransient(s types.LifecycleState) bool {
	switch s {
	case types.StatePaused, types.StateQueued, "waiting":
		return true
	}
	v := string(s)
	return strings.HasPrefix(v, "checking") || strings.HasPrefix(v, "paused") || strings.HasPrefix(v, "queued")
}

// Reconcile folds one poll batch into the registry and returns the events it
// produced, in batch order. It never fails; missing fields use the mapper's
// defaults.
func (r *Registry) Reconcile(batch []types.DownloadRecord) []any {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []any
	for _, rec := range batch {
		out = append(out, r.apply(rec)...)
	}
	return out
}

// apply folds one record and returns zero, one or two events. A completion
// always follows the update that carried it.
func (r *Registry) apply(rec types.DownloadRecord) []any {
	if rec.ID == "" || isTransient(rec.State) || r.detached[rec.ID] {
		return nil
	}

	e, tracked := r.entries[rec.ID]

	if rec.State == types.StateError {
		if !tracked {
			return nil
		}
		delete(r.entries, rec.ID)
		return []any{events.DownloadErrorMsg{Slot: e.slot, GID: rec.ID, Name: Normalize(e.name)}}
	}

	if r.done[rec.ID] {
		return nil
	}

	display := rec
	display.Progress = types.ClampProgress(rec.Progress)

	if !tracked {
		if r.shadowedLocked(Normalize(rec.DisplayName)) {
			return nil
		}
		e = &entry{slot: r.nextSlot, name: rec.DisplayName, record: display}
		r.nextSlot++
		r.entries[rec.ID] = e
		return []any{events.DownloadAddedMsg{Slot: e.slot, GID: rec.ID, Name: Normalize(rec.DisplayName), Record: display}}
	}

	if !IsPlaceholder(rec.DisplayName) && rec.DisplayName != e.name {
		e.name = rec.DisplayName
	}
	e.record = display

	out := []any{events.DownloadUpdatedMsg{Slot: e.slot, GID: rec.ID, Name: Normalize(e.name), Record: display}}

	if !e.completed && (display.Percent() >= 100 || rec.State == types.StateUploading) {
		e.completed = true
		r.done[rec.ID] = true
		out = append(out, events.DownloadCompleteMsg{Slot: e.slot, GID: rec.ID, Name: Normalize(e.name)})
	}
	return out
}

// shadowedLocked reports whether a tracked, unfinished entry already has
// this normalized name.
func (r *Registry) shadowedLocked(normalized string) bool {
	for _, e := range r.entries {
		if !e.completed && Normalize(e.name) == normalized {
			return true
		}
	}
	return false
}

// Detach stops tracking gid for the registry's lifetime: later sightings are
// ignored. Its completion stays remembered. Reports whether gid had a slot.
func (r *Registry) Detach(gid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detached[gid] = true
	if _, ok := r.entries[gid]; !ok {
		return false
	}
	delete(r.entries, gid)
	return true
}

// Tracks reports whether gid currently has a slot.
func (r *Registry) Tracks(gid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[gid]
	return ok
}

// Completed reports whether gid has ever completed.
func (r *Registry) Completed(gid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done[gid]
}

// Snapshot returns tracked entries ordered by slot.
func (r *Registry) Snapshot() []types.SlotStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]types.SlotStatus, 0, len(r.entries))
	for gid, e := range r.entries {
		out = append(out, types.SlotStatus{
			Slot:      e.slot,
			ID:        gid,
			Name:      Normalize(e.name),
			Completed: e.completed,
			Record:    e.record,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}

// Len returns the number of tracked entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
