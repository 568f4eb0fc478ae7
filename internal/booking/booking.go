// Package booking holds the server-side appointment operations: creating and
// editing events, the confirm/cancel lifecycle, and the shareable pending
// links a client fills in without an account.
package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"workshop-agenda/internal/model"
)

var (
	ErrForbidden   = errors.New("forbidden")
	ErrInvalidSlot = errors.New("slot time required")
	ErrNotPending  = errors.New("appointment already handled")
)

type Repository interface {
	UpsertEvent(ctx context.Context, e *model.Event) error
	PatchEvent(ctx context.Context, id string, p model.EventPatch) (*model.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	ListEvents(ctx context.Context, from, to time.Time) ([]model.Event, error)
	ListEventsByPlate(ctx context.Context, plate string) ([]model.Event, error)
	CreatePending(ctx context.Context, p *model.PendingAppointment) error
	GetPending(ctx context.Context, id string) (*model.PendingAppointment, error)
	ConvertPending(ctx context.Context, id string, build func(*model.PendingAppointment) (*model.Event, error)) (*model.Event, error)
	UserByID(ctx context.Context, id string) (*model.User, error)
}

type Service struct {
	repo   Repository
	origin string
	log    *zap.Logger
	now    func() time.Time
	newID  func() string
}

// New builds the service. origin is the public base URL links are built on.
func New(repo Repository, origin string, log *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		origin: strings.TrimRight(origin, "/"),
		log:    log,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

// Actor resolves the display name stamped into createdBy. The name is read
// at write time and copied, so renaming a user later leaves old records as is.
func (s *Service) Actor(ctx context.Context, uid string) (model.Creator, string, error) {
	u, err := s.repo.UserByID(ctx, uid)
	if err != nil {
		return model.Creator{}, "", err
	}
	return model.Creator{UID: u.ID, Name: u.Name}, u.Role, nil
}

func (s *Service) ListEvents(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	return s.repo.ListEvents(ctx, from, to)
}

// History lists a vehicle's appointments, newest first. Canceled ones are
// included so staff can see no-shows.
func (s *Service) History(ctx context.Context, plate string) ([]model.Event, error) {
	plate = strings.ToUpper(strings.TrimSpace(plate))
	if plate == "" {
		return nil, &model.FieldError{Field: "licensePlate"}
	}
	return s.repo.ListEventsByPlate(ctx, plate)
}

func (s *Service) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	return s.repo.GetEvent(ctx, id)
}

func (s *Service) CreateEvent(ctx context.Context, by model.Creator, form model.EventForm, start time.Time) (*model.Event, error) {
	if start.IsZero() {
		return nil, ErrInvalidSlot
	}
	form = form.Normalize()
	if err := form.Validate(model.FormRules{}); err != nil {
		return nil, err
	}
	e := form.ToEvent(s.newID(), start, by, s.now())
	if err := s.repo.UpsertEvent(ctx, e); err != nil {
		return nil, err
	}
	s.log.Info("event created", zap.String("id", e.ID), zap.String("by", by.UID), zap.Time("start", e.Start))
	return e, nil
}

// UpdateEvent writes only the fields in p. When the client name or car model
// changes the title is derived again from the merged values.
func (s *Service) UpdateEvent(ctx context.Context, id string, p model.EventPatch) (*model.Event, error) {
	p = clean(p)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.ClientName != nil || p.CarModel != nil {
		cur, err := s.repo.GetEvent(ctx, id)
		if err != nil {
			return nil, err
		}
		merged := *cur
		p.Apply(&merged)
		t := model.Title(merged.ClientName, merged.CarModel)
		p.Title = &t
	}
	return s.repo.PatchEvent(ctx, id, p)
}

// Reschedule moves an event; only start and end are written.
func (s *Service) Reschedule(ctx context.Context, id string, start time.Time) (*model.Event, error) {
	if start.IsZero() {
		return nil, ErrInvalidSlot
	}
	return s.repo.PatchEvent(ctx, id, model.Reschedule(start))
}

func (s *Service) Cancel(ctx context.Context, id string) (*model.Event, error) {
	return s.repo.PatchEvent(ctx, id, model.SetStatus(model.StatusCanceled))
}

func (s *Service) Reactivate(ctx context.Context, id string) (*model.Event, error) {
	return s.repo.PatchEvent(ctx, id, model.SetStatus(model.StatusConfirmed))
}

// Delete permanently removes an event. Staff cancel instead; this is kept for
// administrators only and every call is logged.
func (s *Service) Delete(ctx context.Context, by model.Creator, role, id string) error {
	if role != model.RoleAdmin {
		return ErrForbidden
	}
	if err := s.repo.DeleteEvent(ctx, id); err != nil {
		return err
	}
	s.log.Warn("event deleted", zap.String("id", id), zap.String("by", by.UID), zap.String("name", by.Name))
	return nil
}

func clean(p model.EventPatch) model.EventPatch {
	trim := func(v *string) *string {
		if v == nil {
			return nil
		}
		t := strings.TrimSpace(*v)
		return &t
	}
	p.ClientName = trim(p.ClientName)
	p.CarModel = trim(p.CarModel)
	p.LicensePlate = trim(p.LicensePlate)
	if p.LicensePlate != nil {
		up := strings.ToUpper(*p.LicensePlate)
		p.LicensePlate = &up
	}
	p.Phone = trim(p.Phone)
	p.CPF = trim(p.CPF)
	p.ServiceType = trim(p.ServiceType)
	p.Observations = trim(p.Observations)
	if p.Services != nil {
		items := make([]model.ServiceItem, 0, len(*p.Services))
		for _, it := range *p.Services {
			if n := strings.TrimSpace(it.Name); n != "" {
				items = append(items, model.ServiceItem{Name: n})
			}
		}
		p.Services = &items
	}
	// title always follows client and car; callers cannot set it directly
	p.Title = nil
	// slots are fixed length; end follows start and is never set on its own
	if p.Start != nil {
		end := model.SlotEnd(*p.Start)
		p.End = &end
	}
	return p
}
