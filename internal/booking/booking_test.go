package booking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"workshop-agenda/internal/model"
)

type memRepo struct {
	mu      sync.Mutex
	events  map[string]model.Event
	pending map[string]model.PendingAppointment
	users   map[string]model.User
}

func newMemRepo() *memRepo {
	return &memRepo{
		events:  map[string]model.Event{},
		pending: map[string]model.PendingAppointment{},
		users: map[string]model.User{
			"u1": {ID: "u1", Name: "Ana", Role: model.RoleStaff},
			"a1": {ID: "a1", Name: "Root", Role: model.RoleAdmin},
		},
	}
}

func (m *memRepo) UpsertEvent(_ context.Context, e *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.events[e.ID]; ok {
		e.CreatedAt = old.CreatedAt
	}
	m.events[e.ID] = *e
	return nil
}

func (m *memRepo) PatchEvent(_ context.Context, id string, p model.EventPatch) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	p.Apply(&e)
	m.events[id] = e
	return &e, nil
}

func (m *memRepo) DeleteEvent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return model.ErrNotFound
	}
	delete(m.events, id)
	return nil
}

func (m *memRepo) GetEvent(_ context.Context, id string) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &e, nil
}

func (m *memRepo) ListEvents(_ context.Context, _, _ time.Time) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Event{}
	for _, e := range m.events {
		out = append(out, e)
	}
	return out, nil
}

func (m *memRepo) ListEventsByPlate(_ context.Context, plate string) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Event{}
	for _, e := range m.events {
		if e.LicensePlate == plate {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.After(out[j].Start) })
	return out, nil
}

func (m *memRepo) CreatePending(_ context.Context, p *model.PendingAppointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.CreatedAt = time.Now()
	m.pending[p.ID] = *p
	return nil
}

func (m *memRepo) GetPending(_ context.Context, id string) (*model.PendingAppointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &p, nil
}

func (m *memRepo) ConvertPending(_ context.Context, id string, build func(*model.PendingAppointment) (*model.Event, error)) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	e, err := build(&p)
	if err != nil {
		return nil, err
	}
	m.events[e.ID] = *e
	delete(m.pending, id)
	return e, nil
}

func (m *memRepo) UserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &u, nil
}

func newService(t *testing.T) (*Service, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	s := New(repo, "https://agenda.example.com/", zap.NewNop())
	n := 0
	s.newID = func() string {
		n++
		return "id-" + string(rune('0'+n))
	}
	return s, repo
}

var slot = time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)

func TestCreateEvent(t *testing.T) {
	s, _ := newService(t)
	by := model.Creator{UID: "u1", Name: "Ana"}

	tests := []struct {
		name  string
		form  model.EventForm
		title string
	}{
		{"with car", model.EventForm{ClientName: "Maria", CarModel: "Civic"}, "Maria - Civic"},
		{"without car", model.EventForm{ClientName: "João"}, "João"},
		{"blank car", model.EventForm{ClientName: " Pedro ", CarModel: "   "}, "Pedro"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := s.CreateEvent(context.Background(), by, tt.form, slot)
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if e.Title != tt.title {
				t.Errorf("title: got %q want %q", e.Title, tt.title)
			}
			if !e.End.Equal(slot.Add(time.Hour)) {
				t.Errorf("end: got %v", e.End)
			}
			if e.Status != model.StatusConfirmed {
				t.Errorf("status: got %s", e.Status)
			}
			if e.CreatedBy != by {
				t.Errorf("createdBy: got %+v", e.CreatedBy)
			}
		})
	}
}

func TestCreateEventValidation(t *testing.T) {
	s, repo := newService(t)
	by := model.Creator{UID: "u1", Name: "Ana"}

	_, err := s.CreateEvent(context.Background(), by, model.EventForm{ClientName: "  "}, slot)
	var fe *model.FieldError
	if !errors.As(err, &fe) || fe.Field != "clientName" {
		t.Fatalf("expected clientName error, got %v", err)
	}
	if _, err := s.CreateEvent(context.Background(), by, model.EventForm{ClientName: "X"}, time.Time{}); !errors.Is(err, ErrInvalidSlot) {
		t.Fatalf("expected ErrInvalidSlot, got %v", err)
	}
	if len(repo.events) != 0 {
		t.Errorf("nothing should be written, got %d events", len(repo.events))
	}
}

func TestCreateEventDropsBlankServices(t *testing.T) {
	s, _ := newService(t)
	e, err := s.CreateEvent(context.Background(), model.Creator{UID: "u1"}, model.EventForm{
		ClientName: "Maria",
		Services:   []string{"Troca de óleo", "", "   ", "Alinhamento"},
	}, slot)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(e.Services) != 2 || e.Services[0].Name != "Troca de óleo" || e.Services[1].Name != "Alinhamento" {
		t.Errorf("services: got %+v", e.Services)
	}
}

func TestPendingLinkAndSubmit(t *testing.T) {
	s, repo := newService(t)
	ctx := context.Background()
	by := model.Creator{UID: "u1", Name: "Ana"}

	p, url, err := s.CreatePendingLink(ctx, by, slot)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if p.Status != model.StatusPending || !p.Date.Equal(slot) {
		t.Errorf("pending: got %+v", p)
	}
	if url != "https://agenda.example.com/agendar/"+p.ID {
		t.Errorf("url: got %s", url)
	}

	e, err := s.SubmitPending(ctx, p.ID, model.EventForm{ClientName: "Maria", CarModel: "Civic", LicensePlate: "abc1d23"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if e.ID != p.ID {
		t.Errorf("id: got %s want %s", e.ID, p.ID)
	}
	if e.Title != "Maria - Civic" {
		t.Errorf("title: got %s", e.Title)
	}
	if !e.Start.Equal(slot) || !e.End.Equal(slot.Add(time.Hour)) {
		t.Errorf("times: %v - %v", e.Start, e.End)
	}
	if e.Status != model.StatusConfirmed {
		t.Errorf("status: got %s", e.Status)
	}
	if e.CreatedBy != by {
		t.Errorf("createdBy should come from the link, got %+v", e.CreatedBy)
	}
	if e.LicensePlate != "ABC1D23" {
		t.Errorf("plate: got %s", e.LicensePlate)
	}

	if _, err := s.LoadPending(ctx, p.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("pending should be gone, got %v", err)
	}
	if _, ok := repo.events[p.ID]; !ok {
		t.Error("event not stored")
	}

	// a second submission of the same link is a dead end
	_, err = s.SubmitPending(ctx, p.ID, model.EventForm{ClientName: "Maria", CarModel: "Civic", LicensePlate: "X"})
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound on reuse, got %v", err)
	}
}

func TestSubmitPendingValidation(t *testing.T) {
	s, repo := newService(t)
	ctx := context.Background()
	p, _, _ := s.CreatePendingLink(ctx, model.Creator{UID: "u1"}, slot)

	tests := []struct {
		name  string
		form  model.EventForm
		field string
	}{
		{"no name", model.EventForm{CarModel: "Civic", LicensePlate: "X"}, "clientName"},
		{"no car", model.EventForm{ClientName: "Maria", LicensePlate: "X"}, "carModel"},
		{"no plate", model.EventForm{ClientName: "Maria", CarModel: "Civic"}, "licensePlate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.SubmitPending(ctx, p.ID, tt.form)
			var fe *model.FieldError
			if !errors.As(err, &fe) || fe.Field != tt.field {
				t.Fatalf("expected %s error, got %v", tt.field, err)
			}
		})
	}
	if _, ok := repo.pending[p.ID]; !ok {
		t.Error("failed validation must leave the pending record")
	}
}

func TestCancelReactivateKeepsFields(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	e, _ := s.CreateEvent(ctx, model.Creator{UID: "u1", Name: "Ana"}, model.EventForm{
		ClientName: "Maria", CarModel: "Civic", Services: []string{"Freios"},
	}, slot)

	c, err := s.Cancel(ctx, e.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if c.Status != model.StatusCanceled {
		t.Fatalf("status after cancel: %s", c.Status)
	}
	r, err := s.Reactivate(ctx, e.ID)
	if err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if r.Status != model.StatusConfirmed {
		t.Fatalf("status after reactivate: %s", r.Status)
	}
	if r.Title != e.Title || r.ClientName != e.ClientName || !r.Start.Equal(e.Start) ||
		!r.CreatedAt.Equal(e.CreatedAt) || len(r.Services) != 1 {
		t.Errorf("fields changed: before %+v after %+v", e, r)
	}
}

func TestRescheduleOnlyMovesTimes(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	nine := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	e, _ := s.CreateEvent(ctx, model.Creator{UID: "u1", Name: "Ana"}, model.EventForm{
		ClientName: "Maria", Services: []string{"Revisão"},
	}, nine)

	two := time.Date(2024, 6, 10, 14, 0, 0, 0, time.UTC)
	m, err := s.Reschedule(ctx, e.ID, two)
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if !m.Start.Equal(two) || !m.End.Equal(two.Add(time.Hour)) {
		t.Errorf("times: %v - %v", m.Start, m.End)
	}
	if m.ClientName != e.ClientName || m.Status != e.Status || !m.CreatedAt.Equal(e.CreatedAt) ||
		m.Services[0] != e.Services[0] {
		t.Errorf("other fields changed: %+v", m)
	}
}

func TestUpdateEventRederivesTitle(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	e, _ := s.CreateEvent(ctx, model.Creator{UID: "u1"}, model.EventForm{
		ClientName: "Maria", CarModel: "Civic", Observations: "barulho no freio",
	}, slot)

	car := "Corolla"
	u, err := s.UpdateEvent(ctx, e.ID, model.EventPatch{CarModel: &car})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if u.Title != "Maria - Corolla" {
		t.Errorf("title: got %s", u.Title)
	}
	if u.Observations != "barulho no freio" {
		t.Errorf("untouched field lost: %q", u.Observations)
	}

	if _, err := s.UpdateEvent(ctx, e.ID, model.EventPatch{}); !errors.Is(err, model.ErrBadPatch) {
		t.Errorf("expected ErrBadPatch for empty patch, got %v", err)
	}
}

func TestUpdateEventKeepsSlotLength(t *testing.T) {
	s, repo := newService(t)
	ctx := context.Background()
	e, _ := s.CreateEvent(ctx, model.Creator{UID: "u1"}, model.EventForm{ClientName: "Maria"}, slot)

	noon := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	five := time.Date(2024, 6, 10, 17, 0, 0, 0, time.UTC)
	u, err := s.UpdateEvent(ctx, e.ID, model.EventPatch{Start: &noon, End: &five})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !u.Start.Equal(noon) || u.End.Sub(u.Start) != time.Hour {
		t.Errorf("times: %v - %v", u.Start, u.End)
	}
	if got := repo.events[e.ID]; got.End.Sub(got.Start) != time.Hour {
		t.Errorf("stored duration: %v", got.End.Sub(got.Start))
	}

	if _, err := s.UpdateEvent(ctx, e.ID, model.EventPatch{End: &five}); !errors.Is(err, model.ErrBadPatch) {
		t.Errorf("expected ErrBadPatch for end alone, got %v", err)
	}
}

func TestHistory(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	by := model.Creator{UID: "u1"}
	first, _ := s.CreateEvent(ctx, by, model.EventForm{ClientName: "Maria", LicensePlate: "abc1d23"}, slot)
	second, _ := s.CreateEvent(ctx, by, model.EventForm{ClientName: "Maria", LicensePlate: "ABC1D23"}, slot.Add(48*time.Hour))
	s.CreateEvent(ctx, by, model.EventForm{ClientName: "João", LicensePlate: "XYZ9K87"}, slot)
	s.Cancel(ctx, first.ID)

	events, err := s.History(ctx, " abc1d23 ")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(events) != 2 || events[0].ID != second.ID || events[1].ID != first.ID {
		t.Fatalf("history: %+v", events)
	}
	if !events[1].Canceled() {
		t.Errorf("canceled visit should be listed as canceled")
	}

	var fe *model.FieldError
	if _, err := s.History(ctx, "  "); !errors.As(err, &fe) || fe.Field != "licensePlate" {
		t.Errorf("expected licensePlate field error, got %v", err)
	}
}

func TestDeleteRequiresAdmin(t *testing.T) {
	s, repo := newService(t)
	ctx := context.Background()
	e, _ := s.CreateEvent(ctx, model.Creator{UID: "u1"}, model.EventForm{ClientName: "Maria"}, slot)

	if err := s.Delete(ctx, model.Creator{UID: "u1"}, model.RoleStaff, e.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := s.Delete(ctx, model.Creator{UID: "a1"}, model.RoleAdmin, e.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if _, ok := repo.events[e.ID]; ok {
		t.Error("event still present")
	}
}

func TestActor(t *testing.T) {
	s, _ := newService(t)
	by, role, err := s.Actor(context.Background(), "a1")
	if err != nil {
		t.Fatalf("actor: %v", err)
	}
	if by.Name != "Root" || role != model.RoleAdmin {
		t.Errorf("got %+v %s", by, role)
	}
	if _, _, err := s.Actor(context.Background(), "nobody"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
