package booking

import (
	"context"
	"time"

	"go.uber.org/zap"

	"workshop-agenda/internal/model"
)

// LinkURL is the public address a client opens to fill in a reserved slot.
func (s *Service) LinkURL(id string) string {
	return s.origin + "/agendar/" + id
}

// CreatePendingLink reserves slot and returns the link to share with the client.
func (s *Service) CreatePendingLink(ctx context.Context, by model.Creator, slot time.Time) (*model.PendingAppointment, string, error) {
	if slot.IsZero() {
		return nil, "", ErrInvalidSlot
	}
	p := &model.PendingAppointment{
		ID:        s.newID(),
		Date:      slot,
		Status:    model.StatusPending,
		CreatedBy: by,
	}
	if err := s.repo.CreatePending(ctx, p); err != nil {
		return nil, "", err
	}
	s.log.Info("pending link created", zap.String("id", p.ID), zap.String("by", by.UID), zap.Time("date", slot))
	return p, s.LinkURL(p.ID), nil
}

// LoadPending returns model.ErrNotFound for unknown or already used links.
func (s *Service) LoadPending(ctx context.Context, id string) (*model.PendingAppointment, error) {
	return s.repo.GetPending(ctx, id)
}

// SubmitPending turns the reservation into a confirmed event with the same id.
// The event is stamped with the staff member who generated the link.
func (s *Service) SubmitPending(ctx context.Context, id string, form model.EventForm) (*model.Event, error) {
	form = form.Normalize()
	if err := form.Validate(model.PublicFormRules); err != nil {
		return nil, err
	}
	e, err := s.repo.ConvertPending(ctx, id, func(p *model.PendingAppointment) (*model.Event, error) {
		if p.Status != model.StatusPending {
			return nil, ErrNotPending
		}
		return form.ToEvent(p.ID, p.Date, p.CreatedBy, s.now()), nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("pending appointment confirmed", zap.String("id", e.ID), zap.String("client", e.ClientName))
	return e, nil
}
