package dashboard

import (
	"context"
	"time"

	"workshop-agenda/internal/model"
)

type DraftState int

const (
	SelectingMode DraftState = iota
	FillingForm
	LinkGenerated
	LinkFailed
	Closed
)

func (s DraftState) String() string {
	switch s {
	case SelectingMode:
		return "selecting-mode"
	case FillingForm:
		return "filling-form"
	case LinkGenerated:
		return "link-generated"
	case LinkFailed:
		return "link-failed"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Draft walks one new or edited appointment from slot selection to a saved
// event or a shareable link.
type Draft struct {
	store EventStore
	who   func() (string, bool)

	slot    time.Time
	state   DraftState
	editing *model.Event
	form    model.EventForm
	link    string
	err     error
}

func newDraft(store EventStore, who func() (string, bool), slot time.Time) *Draft {
	return &Draft{store: store, who: who, slot: slot}
}

func editDraft(store EventStore, who func() (string, bool), e model.Event) *Draft {
	return &Draft{
		store:   store,
		who:     who,
		slot:    e.Start,
		state:   FillingForm,
		editing: &e,
		form:    model.FormFrom(&e),
	}
}

func (d *Draft) State() DraftState { return d.state }
func (d *Draft) Slot() time.Time { return d.slot }
func (d *Draft) Editing() bool { return d.editing != nil }
func (d *Draft) Form() model.EventForm { return d.form }

// Link is the public URL once the draft reached LinkGenerated.
func (d *Draft) Link() string { return d.link }

// Err is the failure that moved the draft to LinkFailed.
func (d *Draft) Err() error { return d.err }

func (d *Draft) ChooseForm() error {
	if d.state != SelectingMode {
		return ErrInvalidState
	}
	d.state = FillingForm
	return nil
}

// ChooseLink creates a pending appointment for the slot so the client can
// fill in the details from a link.
func (d *Draft) ChooseLink(ctx context.Context) error {
	if d.state != SelectingMode {
		return ErrInvalidState
	}
	if _, ok := d.who(); !ok {
		return ErrSignedOut
	}
	_, url, err := d.store.CreatePendingLink(ctx, d.slot)
	if err != nil {
		d.state, d.err = LinkFailed, err
		return err
	}
	d.state, d.link, d.err = LinkGenerated, url, nil
	return nil
}

func (d *Draft) Back() error {
	if d.editing != nil {
		return ErrInvalidState
	}
	switch d.state {
	case FillingForm, LinkFailed:
		d.state, d.err = SelectingMode, nil
		return nil
	}
	return ErrInvalidState
}

// Submit saves the form. A new draft creates an event in its slot; an edit
// sends only the fields that changed.
func (d *Draft) Submit(ctx context.Context, form model.EventForm) (*model.Event, error) {
	if d.state != FillingForm {
		return nil, ErrInvalidState
	}
	form = form.Normalize()
	d.form = form
	if err := form.Validate(model.FormRules{}); err != nil {
		return nil, err
	}
	if _, ok := d.who(); !ok {
		return nil, ErrSignedOut
	}

	if d.editing != nil {
		p := form.Diff(d.editing)
		if p.IsEmpty() {
			d.state = Closed
			return d.editing, nil
		}
		e, err := d.store.UpdateEvent(ctx, d.editing.ID, p)
		if err != nil {
			return nil, err
		}
		d.state = Closed
		return e, nil
	}

	e, err := d.store.CreateEvent(ctx, form, d.slot)
	if err != nil {
		return nil, err
	}
	d.state = Closed
	return e, nil
}
