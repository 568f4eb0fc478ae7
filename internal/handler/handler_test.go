package handler_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"workshop-agenda/internal/auth"
	"workshop-agenda/internal/booking"
	"workshop-agenda/internal/feed"
	"workshop-agenda/internal/handler"
	"workshop-agenda/internal/middleware"
	"workshop-agenda/internal/model"
	"workshop-agenda/internal/rpc"
	"workshop-agenda/internal/store"
)

const adminEmail = "root-admin@test.com"

func setup(t *testing.T) (*handler.Handler, *store.Store) {
	t.Helper()
	_ = godotenv.Load("../../.env")
	dbURL := os.Getenv("DATABASE_URL")
	secret := os.Getenv("JWT_SECRET")
	if dbURL == "" || secret == "" {
		t.Skip("DATABASE_URL or JWT_SECRET not set")
	}
	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(pool.Close)
	st := store.New(pool)
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	log := zap.NewNop()
	svc := booking.New(st, "https://agenda.test", log)
	h := handler.New(st, svc, feed.NewHub(st, log), auth.NewSigner(secret), log).Admins(adminEmail)
	return h, st
}

func authedCtx(t *testing.T, resp *rpc.AuthResponse) context.Context {
	t.Helper()
	claims, err := auth.NewSigner(os.Getenv("JWT_SECRET")).Verify(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	return middleware.WithClaims(context.Background(), claims)
}

func registerUser(t *testing.T, h *handler.Handler, name string) *rpc.AuthResponse {
	t.Helper()
	email := fmt.Sprintf("test-%s@test.com", uuid.New().String()[:8])
	rr, err := h.Register(context.Background(), &rpc.RegisterRequest{
		Email: email, Password: "testpass123", Name: name,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return rr
}

func expectCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v, got nil", code)
	}
	if s, _ := status.FromError(err); s.Code() != code {
		t.Fatalf("expected %v, got %v", code, s.Code())
	}
}

// far enough apart that parallel runs do not read each other's slots
func testSlot(hours int) time.Time {
	return time.Now().Truncate(time.Hour).Add(time.Duration(hours) * time.Hour).UTC()
}

// ----- auth -----

func TestRegister(t *testing.T) {
	h, _ := setup(t)
	rr := registerUser(t, h, "Test User")
	if rr.UserID == "" || rr.AccessToken == "" || rr.RefreshToken == "" {
		t.Fatalf("incomplete response: %+v", rr)
	}
	if rr.Role != model.RoleStaff {
		t.Errorf("role: got %s", rr.Role)
	}
}

func TestRegisterValidation(t *testing.T) {
	h, _ := setup(t)

	tests := []struct {
		name string
		req  *rpc.RegisterRequest
	}{
		{"empty email", &rpc.RegisterRequest{Email: "", Password: "testpass123", Name: "X"}},
		{"empty password", &rpc.RegisterRequest{Email: "a@b.com", Password: "", Name: "X"}},
		{"short password", &rpc.RegisterRequest{Email: "a@b.com", Password: "short", Name: "X"}},
		{"empty name", &rpc.RegisterRequest{Email: "a@b.com", Password: "testpass123", Name: " "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Register(context.Background(), tt.req)
			expectCode(t, err, codes.InvalidArgument)
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	h, _ := setup(t)
	email := fmt.Sprintf("test-%s@test.com", uuid.New().String()[:8])
	req := &rpc.RegisterRequest{Email: email, Password: "testpass123", Name: "First"}
	if _, err := h.Register(context.Background(), req); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := h.Register(context.Background(), req)
	expectCode(t, err, codes.AlreadyExists)
}

func TestLogin(t *testing.T) {
	h, _ := setup(t)
	email := fmt.Sprintf("test-%s@test.com", uuid.New().String()[:8])
	h.Register(context.Background(), &rpc.RegisterRequest{Email: email, Password: "testpass123", Name: "Login User"})

	lr, err := h.Login(context.Background(), &rpc.LoginRequest{Email: email, Password: "testpass123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if lr.Name != "Login User" {
		t.Errorf("expected name 'Login User', got '%s'", lr.Name)
	}

	_, err = h.Login(context.Background(), &rpc.LoginRequest{Email: email, Password: "wrongpassword"})
	expectCode(t, err, codes.Unauthenticated)
	_, err = h.Login(context.Background(), &rpc.LoginRequest{Email: "nobody@nowhere.com", Password: "testpass123"})
	expectCode(t, err, codes.Unauthenticated)
}

func TestRefreshRotation(t *testing.T) {
	h, _ := setup(t)
	rr := registerUser(t, h, "Refresh User")

	next, err := h.Refresh(context.Background(), &rpc.RefreshRequest{RefreshToken: rr.RefreshToken})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.RefreshToken == rr.RefreshToken {
		t.Fatal("refresh token not rotated")
	}

	// replaying the rotated token revokes the whole family
	_, err = h.Refresh(context.Background(), &rpc.RefreshRequest{RefreshToken: rr.RefreshToken})
	expectCode(t, err, codes.Unauthenticated)
	_, err = h.Refresh(context.Background(), &rpc.RefreshRequest{RefreshToken: next.RefreshToken})
	expectCode(t, err, codes.Unauthenticated)
}

func TestProfileNameIsSnapshot(t *testing.T) {
	h, _ := setup(t)
	rr := registerUser(t, h, "Ana")
	ctx := authedCtx(t, rr)

	cr, err := h.CreateEvent(ctx, &rpc.CreateEventRequest{Start: testSlot(100), Form: model.EventForm{ClientName: "Maria"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if cr.Event.CreatedBy.Name != "Ana" {
		t.Fatalf("createdBy: %+v", cr.Event.CreatedBy)
	}

	if _, err := h.UpdateProfile(ctx, &rpc.UpdateProfileRequest{Name: "Ana Paula"}); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	lr, err := h.ListEvents(ctx, &rpc.ListEventsRequest{From: testSlot(100), To: testSlot(101)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, e := range lr.Events {
		if e.ID == cr.Event.ID && e.CreatedBy.Name != "Ana" {
			t.Errorf("stamped name changed to %s", e.CreatedBy.Name)
		}
	}
}

// ----- events -----

func TestCreateEvent(t *testing.T) {
	h, _ := setup(t)
	ctx := authedCtx(t, registerUser(t, h, "Staff"))

	start := testSlot(200)
	cr, err := h.CreateEvent(ctx, &rpc.CreateEventRequest{Start: start, Form: model.EventForm{
		ClientName: "Maria", CarModel: "Civic", Services: []string{"Revisão", "  "},
	}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	e := cr.Event
	if e.Title != "Maria - Civic" {
		t.Errorf("title: got %s", e.Title)
	}
	if !e.End.Equal(start.Add(time.Hour)) {
		t.Errorf("end: got %v", e.End)
	}
	if len(e.Services) != 1 {
		t.Errorf("services: %+v", e.Services)
	}
}

func TestCreateEventValidation(t *testing.T) {
	h, _ := setup(t)
	ctx := authedCtx(t, registerUser(t, h, "Staff"))

	tests := []struct {
		name string
		req  *rpc.CreateEventRequest
	}{
		{"empty client", &rpc.CreateEventRequest{Start: testSlot(300), Form: model.EventForm{ClientName: "  "}}},
		{"missing start", &rpc.CreateEventRequest{Form: model.EventForm{ClientName: "X"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.CreateEvent(ctx, tt.req)
			expectCode(t, err, codes.InvalidArgument)
		})
	}
}

func TestVehicleHistory(t *testing.T) {
	h, _ := setup(t)
	ctx := authedCtx(t, registerUser(t, h, "Staff"))
	plate := "H" + uuid.New().String()[:6]
	for _, hours := range []int{500, 548} {
		if _, err := h.CreateEvent(ctx, &rpc.CreateEventRequest{Start: testSlot(hours), Form: model.EventForm{
			ClientName: "Maria", LicensePlate: plate,
		}}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	resp, err := h.VehicleHistory(ctx, &rpc.HistoryRequest{Plate: plate})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(resp.Events) != 2 || !resp.Events[0].Start.After(resp.Events[1].Start) {
		t.Errorf("history: %+v", resp.Events)
	}

	_, err = h.VehicleHistory(ctx, &rpc.HistoryRequest{})
	expectCode(t, err, codes.InvalidArgument)
}

func TestCancelReactivate(t *testing.T) {
	h, st := setup(t)
	ctx := authedCtx(t, registerUser(t, h, "Staff"))
	cr, _ := h.CreateEvent(ctx, &rpc.CreateEventRequest{Start: testSlot(400), Form: model.EventForm{ClientName: "Maria"}})

	c, err := h.CancelEvent(ctx, &rpc.EventRequest{ID: cr.Event.ID})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if c.Event.Status != model.StatusCanceled {
		t.Fatalf("status: %s", c.Event.Status)
	}
	r, err := h.ReactivateEvent(ctx, &rpc.EventRequest{ID: cr.Event.ID})
	if err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	got, _ := st.GetEvent(context.Background(), r.Event.ID)
	if got.Status != model.StatusConfirmed || !got.CreatedAt.Equal(cr.Event.CreatedAt) || got.Title != cr.Event.Title {
		t.Errorf("fields changed: %+v", got)
	}
}

func TestRescheduleOnlyMovesTimes(t *testing.T) {
	h, _ := setup(t)
	ctx := authedCtx(t, registerUser(t, h, "Staff"))
	cr, _ := h.CreateEvent(ctx, &rpc.CreateEventRequest{Start: testSlot(500), Form: model.EventForm{
		ClientName: "Maria", Services: []string{"Freios"},
	}})

	to := testSlot(505)
	mr, err := h.RescheduleEvent(ctx, &rpc.RescheduleEventRequest{ID: cr.Event.ID, Start: to})
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	m := mr.Event
	if !m.Start.Equal(to) || !m.End.Equal(to.Add(time.Hour)) {
		t.Errorf("times: %v - %v", m.Start, m.End)
	}
	if m.ClientName != "Maria" || m.Status != model.StatusConfirmed || len(m.Services) != 1 ||
		!m.CreatedAt.Equal(cr.Event.CreatedAt) {
		t.Errorf("other fields changed: %+v", m)
	}
}

func TestUpdateEventPatchesOnlySetFields(t *testing.T) {
	h, _ := setup(t)
	ctx := authedCtx(t, registerUser(t, h, "Staff"))
	cr, _ := h.CreateEvent(ctx, &rpc.CreateEventRequest{Start: testSlot(600), Form: model.EventForm{
		ClientName: "Maria", CarModel: "Civic", Observations: "barulho",
	}})

	car := "Corolla"
	ur, err := h.UpdateEvent(ctx, &rpc.UpdateEventRequest{ID: cr.Event.ID, Patch: model.EventPatch{CarModel: &car}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if ur.Event.Title != "Maria - Corolla" || ur.Event.Observations != "barulho" {
		t.Errorf("event: %+v", ur.Event)
	}

	_, err = h.UpdateEvent(ctx, &rpc.UpdateEventRequest{ID: uuid.New().String(), Patch: model.EventPatch{CarModel: &car}})
	expectCode(t, err, codes.NotFound)
}

func TestDeleteRequiresAdmin(t *testing.T) {
	h, st := setup(t)
	staff := authedCtx(t, registerUser(t, h, "Staff"))
	cr, _ := h.CreateEvent(staff, &rpc.CreateEventRequest{Start: testSlot(700), Form: model.EventForm{ClientName: "Maria"}})

	_, err := h.DeleteEvent(staff, &rpc.EventRequest{ID: cr.Event.ID})
	expectCode(t, err, codes.PermissionDenied)

	ar, err := h.Login(context.Background(), &rpc.LoginRequest{Email: adminEmail, Password: "adminpass123"})
	if err != nil {
		ar, err = h.Register(context.Background(), &rpc.RegisterRequest{Email: adminEmail, Password: "adminpass123", Name: "Admin"})
		if err != nil {
			t.Skipf("admin account unavailable: %v", err)
		}
	}
	if ar.Role != model.RoleAdmin {
		t.Skipf("%s exists without admin role", adminEmail)
	}
	if _, err := h.DeleteEvent(authedCtx(t, ar), &rpc.EventRequest{ID: cr.Event.ID}); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if _, err := st.GetEvent(context.Background(), cr.Event.ID); err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// ----- pending links -----

func TestPendingLinkConversion(t *testing.T) {
	h, _ := setup(t)
	staff := registerUser(t, h, "Ana")
	ctx := authedCtx(t, staff)

	slot := testSlot(800)
	lr, err := h.CreatePendingLink(ctx, &rpc.CreatePendingLinkRequest{Slot: slot})
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if lr.URL != "https://agenda.test/agendar/"+lr.Pending.ID {
		t.Errorf("url: %s", lr.URL)
	}
	if lr.Pending.Status != model.StatusPending {
		t.Errorf("status: %s", lr.Pending.Status)
	}

	// the public side carries no identity
	public := context.Background()
	if _, err := h.GetPending(public, &rpc.PendingRequest{ID: lr.Pending.ID}); err != nil {
		t.Fatalf("get pending: %v", err)
	}

	_, err = h.SubmitPending(public, &rpc.SubmitPendingRequest{ID: lr.Pending.ID, Form: model.EventForm{ClientName: "Maria"}})
	expectCode(t, err, codes.InvalidArgument)

	sr, err := h.SubmitPending(public, &rpc.SubmitPendingRequest{ID: lr.Pending.ID, Form: model.EventForm{
		ClientName: "Maria", CarModel: "Civic", LicensePlate: "abc1d23",
	}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	e := sr.Event
	if e.ID != lr.Pending.ID || e.Title != "Maria - Civic" || e.Status != model.StatusConfirmed {
		t.Errorf("event: %+v", e)
	}
	if !e.Start.Equal(slot) || !e.End.Equal(slot.Add(time.Hour)) {
		t.Errorf("times: %v - %v", e.Start, e.End)
	}
	if e.CreatedBy.UID != staff.UserID {
		t.Errorf("createdBy: %+v", e.CreatedBy)
	}

	_, err = h.GetPending(public, &rpc.PendingRequest{ID: lr.Pending.ID})
	expectCode(t, err, codes.NotFound)
	_, err = h.SubmitPending(public, &rpc.SubmitPendingRequest{ID: lr.Pending.ID, Form: model.EventForm{
		ClientName: "Maria", CarModel: "Civic", LicensePlate: "X",
	}})
	expectCode(t, err, codes.NotFound)
}
