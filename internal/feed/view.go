package feed

import (
	"sort"
	"sync"
	"time"

	"workshop-agenda/internal/model"
)

// View is a local, keyed copy of the event set. It is never authoritative:
// every change from the subscription overwrites it.
type View struct {
	mu    sync.RWMutex
	byID  map[string]model.Event
	ready bool
}

func NewView() *View {
	return &View{byID: make(map[string]model.Event)}
}

func (v *View) Apply(c Change) {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch c.Kind {
	case KindSnapshot:
		seen := make(map[string]struct{}, len(c.Events))
		for _, e := range c.Events {
			v.byID[e.ID] = e
			seen[e.ID] = struct{}{}
		}
		for id := range v.byID {
			if _, ok := seen[id]; !ok {
				delete(v.byID, id)
			}
		}
		v.ready = true
	case KindUpsert:
		if c.Event != nil {
			v.byID[c.Event.ID] = *c.Event
		}
	case KindRemove:
		delete(v.byID, c.ID)
	}
}

// Put overwrites one entry locally, used to undo a rejected move.
func (v *View) Put(e model.Event) {
	v.mu.Lock()
	v.byID[e.ID] = e
	v.mu.Unlock()
}

func (v *View) Get(id string) (model.Event, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	e, ok := v.byID[id]
	return e, ok
}

func (v *View) Ready() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.ready
}

func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.byID)
}

// Events returns all events ordered by start time.
func (v *View) Events() []model.Event {
	return v.Between(time.Time{}, time.Time{})
}

// Between returns events starting in [from, to); zero bounds are open.
func (v *View) Between(from, to time.Time) []model.Event {
	v.mu.RLock()
	out := make([]model.Event, 0, len(v.byID))
	for _, e := range v.byID {
		if !from.IsZero() && e.Start.Before(from) {
			continue
		}
		if !to.IsZero() && !e.Start.Before(to) {
			continue
		}
		out = append(out, e)
	}
	v.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}
