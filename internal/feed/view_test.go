package feed

import (
	"testing"
	"time"

	"workshop-agenda/internal/model"
)

func TestViewReconcilesSnapshot(t *testing.T) {
	v := NewView()
	if v.Ready() {
		t.Fatal("view ready before snapshot")
	}
	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	v.Apply(Snapshot([]model.Event{
		{ID: "a", Start: day.Add(10 * time.Hour)},
		{ID: "b", Start: day.Add(9 * time.Hour)},
	}))
	if !v.Ready() || v.Len() != 2 {
		t.Fatalf("ready=%v len=%d", v.Ready(), v.Len())
	}
	got := v.Events()
	if got[0].ID != "b" || got[1].ID != "a" {
		t.Errorf("order: %s %s", got[0].ID, got[1].ID)
	}

	// a later snapshot replaces the set, removing what it does not carry
	v.Apply(Snapshot([]model.Event{{ID: "a", Start: day.Add(10 * time.Hour), ClientName: "Maria"}}))
	if _, ok := v.Get("b"); ok {
		t.Error("b should be gone")
	}
	if e, _ := v.Get("a"); e.ClientName != "Maria" {
		t.Errorf("a not updated: %+v", e)
	}
}

func TestViewDeltas(t *testing.T) {
	v := NewView()
	v.Apply(Snapshot(nil))
	e := &model.Event{ID: "a", Status: model.StatusConfirmed}
	v.Apply(Upsert(e))

	c := *e
	c.Status = model.StatusCanceled
	v.Apply(Upsert(&c))
	if got, _ := v.Get("a"); got.Status != model.StatusCanceled {
		t.Errorf("status: %s", got.Status)
	}

	v.Apply(Remove("a"))
	if v.Len() != 0 {
		t.Errorf("len: %d", v.Len())
	}
}

func TestViewBetween(t *testing.T) {
	v := NewView()
	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	v.Apply(Snapshot([]model.Event{
		{ID: "mon", Start: day.Add(9 * time.Hour)},
		{ID: "tue", Start: day.Add(33 * time.Hour)},
	}))
	got := v.Between(day, day.Add(24*time.Hour))
	if len(got) != 1 || got[0].ID != "mon" {
		t.Errorf("got %+v", got)
	}
}
