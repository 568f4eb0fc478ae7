package dashboard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"workshop-agenda/internal/feed"
	"workshop-agenda/internal/identity"
	"workshop-agenda/internal/model"
)

type Mode int

const (
	Month Mode = iota
	Week
	Day
)

func (m Mode) String() string {
	switch m {
	case Week:
		return "week"
	case Day:
		return "day"
	}
	return "month"
}

// Calendar grid.
const (
	OpenHour  = 6
	CloseHour = 18
	SlotStep  = 30 * time.Minute
	DropSnap  = 15 * time.Minute
)

const resubscribeWait = time.Second

const (
	eventColor    = "#0047BB"
	canceledColor = "#E5E7EB"
)

type Style struct {
	Background string
	Text       string
	Strike     bool
}

// Board is the calendar screen. It mirrors the live feed into a feed.View
// and turns selections, clicks and drops into drafts, details and moves.
type Board struct {
	store EventStore
	ids   identity.Provider
	view  *feed.View
	who   latest
	loc   *time.Location
	log   *zap.Logger

	mode Mode
	date time.Time

	ready     chan struct{}
	readyOnce sync.Once
}

func NewBoard(store EventStore, ids identity.Provider, loc *time.Location, log *zap.Logger) *Board {
	if loc == nil {
		loc = time.Local
	}
	return &Board{
		store: store,
		ids:   ids,
		view:  feed.NewView(),
		loc:   loc,
		log:   log,
		date:  time.Now().In(loc),
		ready: make(chan struct{}),
	}
}

func (b *Board) View() *feed.View { return b.view }

func (b *Board) Mode() Mode { return b.mode }

func (b *Board) Date() time.Time { return b.date }

func (b *Board) SetMode(m Mode) { b.mode = m }

func (b *Board) Goto(t time.Time) { b.date = t.In(b.loc) }

func (b *Board) Next() { b.date = b.step(1) }

func (b *Board) Prev() { b.date = b.step(-1) }

func (b *Board) step(n int) time.Time {
	switch b.mode {
	case Day:
		return b.date.AddDate(0, 0, n)
	case Week:
		return b.date.AddDate(0, 0, 7*n)
	}
	return b.date.AddDate(0, n, 0)
}

// Run keeps the view current until ctx is done. A dropped subscription is
// reopened and its snapshot reconciles whatever was missed.
func (b *Board) Run(ctx context.Context) error {
	ids := b.ids.Subscribe(ctx)
	b.who.set(<-ids)
	go b.who.follow(ids)
	for {
		if err := b.refresh(ctx); err != nil && ctx.Err() == nil {
			b.log.Warn("session refresh failed", zap.Error(err))
		}
		ch, err := b.store.Subscribe(ctx)
		if err == nil {
			for c := range ch {
				b.view.Apply(c)
				b.readyOnce.Do(func() { close(b.ready) })
			}
			if ctx.Err() == nil {
				b.log.Warn("event feed closed, resubscribing")
			}
		} else if ctx.Err() == nil {
			b.log.Error("subscribe failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(resubscribeWait):
		}
	}
}

func (b *Board) refresh(ctx context.Context) error {
	if r, ok := b.ids.(Refresher); ok {
		return r.Fresh(ctx)
	}
	return nil
}

// Wait blocks until Run has the signed-in identity and the first snapshot.
func (b *Board) Wait(ctx context.Context) error {
	select {
	case <-b.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Board) Identity() identity.Identity { return b.who.get() }

func (b *Board) signedIn() (string, bool) {
	id := b.who.get()
	return id.UserID, id.SignedIn()
}

// Range is the [from, to) window the current mode shows.
func (b *Board) Range() (time.Time, time.Time) {
	d := b.date
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, b.loc)
	switch b.mode {
	case Day:
		return day, day.AddDate(0, 0, 1)
	case Week:
		// weeks start on Sunday
		from := day.AddDate(0, 0, -int(day.Weekday()))
		return from, from.AddDate(0, 0, 7)
	}
	from := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, b.loc)
	return from, from.AddDate(0, 1, 0)
}

// Visible lists the events inside Range, weekends excluded.
func (b *Board) Visible() []model.Event {
	from, to := b.Range()
	var out []model.Event
	for _, e := range b.view.Between(from, to) {
		if weekday(e.Start.In(b.loc)) {
			out = append(out, e)
		}
	}
	return out
}

// Slots returns the bookable slot starts on day, none on weekends.
func (b *Board) Slots(day time.Time) []time.Time {
	day = day.In(b.loc)
	if !weekday(day) {
		return nil
	}
	t := time.Date(day.Year(), day.Month(), day.Day(), OpenHour, 0, 0, 0, b.loc)
	end := time.Date(day.Year(), day.Month(), day.Day(), CloseHour, 0, 0, 0, b.loc)
	var out []time.Time
	for ; t.Before(end); t = t.Add(SlotStep) {
		out = append(out, t)
	}
	return out
}

// Select handles a click on an empty slot. In month mode it drills down to
// that day and returns nil; otherwise it opens a draft for the slot.
func (b *Board) Select(slot time.Time) *Draft {
	if b.mode == Month {
		b.mode = Day
		b.date = slot.In(b.loc)
		return nil
	}
	return newDraft(b.store, b.signedIn, slot)
}

func (b *Board) Click(id string) (*Detail, error) {
	e, ok := b.view.Get(id)
	if !ok {
		return nil, model.ErrNotFound
	}
	return &Detail{store: b.store, who: b.signedIn, event: e}, nil
}

// Drop moves an event after a drag. A nil start means the drop landed
// nowhere and the event goes back where it was. The move shows at once and
// is undone if the server rejects it.
func (b *Board) Drop(ctx context.Context, id string, start *time.Time) error {
	orig, ok := b.view.Get(id)
	if !ok {
		return model.ErrNotFound
	}
	if start == nil {
		b.view.Put(orig)
		return nil
	}
	to := start.Truncate(DropSnap)

	moved := orig
	model.Reschedule(to).Apply(&moved)
	b.view.Put(moved)

	e, err := b.store.Reschedule(ctx, id, to)
	if err != nil {
		b.view.Put(orig)
		b.log.Warn("move rejected", zap.String("id", id), zap.Error(err))
		return err
	}
	b.view.Put(*e)
	return nil
}

func (b *Board) Style(e model.Event) Style {
	if e.Canceled() {
		return Style{Background: canceledColor, Text: "#6B7280", Strike: true}
	}
	return Style{Background: eventColor, Text: "#FFFFFF"}
}

func weekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
