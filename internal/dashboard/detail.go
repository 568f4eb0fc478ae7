package dashboard

import (
	"context"
	"time"

	"workshop-agenda/internal/model"
	"workshop-agenda/internal/ticket"
)

type Action string

const (
	ActionCancel     Action = "cancel"
	ActionReactivate Action = "reactivate"
)

func (a Action) Label() string {
	if a == ActionReactivate {
		return "Reativar agendamento"
	}
	return "Cancelar agendamento"
}

// Detail is the open view of one event and the actions available on it.
type Detail struct {
	store EventStore
	who   func() (string, bool)

	event      model.Event
	confirming bool
}

func (d *Detail) Event() model.Event { return d.event }

// Rows are the populated fields, the creator and the formatted start.
func (d *Detail) Rows(loc *time.Location) []ticket.Row {
	var out []ticket.Row
	for _, r := range ticket.New(&d.event, loc).Rows {
		if r.Value != "" {
			out = append(out, r)
		}
	}
	return out
}

// Toggle is the status action offered for the current status.
func (d *Detail) Toggle() Action {
	if d.event.Canceled() {
		return ActionReactivate
	}
	return ActionCancel
}

// RequestCancel opens the confirmation step.
func (d *Detail) RequestCancel() error {
	if d.event.Canceled() {
		return ErrInvalidState
	}
	d.confirming = true
	return nil
}

func (d *Detail) Confirming() bool { return d.confirming }

func (d *Detail) AbortCancel() { d.confirming = false }

// ConfirmCancel cancels the event. RequestCancel must come first.
func (d *Detail) ConfirmCancel(ctx context.Context) error {
	if !d.confirming {
		return ErrNotConfirmed
	}
	e, err := d.store.Cancel(ctx, d.event.ID)
	if err != nil {
		return err
	}
	d.event, d.confirming = *e, false
	return nil
}

func (d *Detail) Reactivate(ctx context.Context) error {
	if !d.event.Canceled() {
		return ErrInvalidState
	}
	e, err := d.store.Reactivate(ctx, d.event.ID)
	if err != nil {
		return err
	}
	d.event = *e
	return nil
}

// Edit reopens the event as a draft seeded with its fields.
func (d *Detail) Edit() *Draft {
	return editDraft(d.store, d.who, d.event)
}
