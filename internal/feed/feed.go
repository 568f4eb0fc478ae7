// Package feed turns store notifications into a typed stream of calendar
// changes. Every subscription starts with a full snapshot and continues with
// per-event upserts and removals; consumers reconcile by event id.
package feed

import "workshop-agenda/internal/model"

type Kind string

const (
	KindSnapshot Kind = "snapshot"
	KindUpsert   Kind = "upsert"
	KindRemove   Kind = "remove"
)

type Change struct {
	Kind   Kind          `json:"kind"`
	Events []model.Event `json:"events,omitempty"`
	Event  *model.Event  `json:"event,omitempty"`
	ID     string        `json:"id,omitempty"`
}

func Snapshot(events []model.Event) Change {
	if events == nil {
		events = []model.Event{}
	}
	return Change{Kind: KindSnapshot, Events: events}
}

func Upsert(e *model.Event) Change { return Change{Kind: KindUpsert, Event: e, ID: e.ID} }

func Remove(id string) Change { return Change{Kind: KindRemove, ID: id} }
