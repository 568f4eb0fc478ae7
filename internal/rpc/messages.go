package rpc

import (
	"time"

	"workshop-agenda/internal/model"
)

type Empty struct{}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse is returned by Register, Login and Refresh.
type AuthResponse struct {
	UserID       string    `json:"userId"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type ProfileResponse struct {
	User model.User `json:"user"`
}

type UpdateProfileRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	PhotoURL string `json:"photoUrl"`
}

// ListEventsRequest bounds are inclusive-exclusive on start; zero is open.
type ListEventsRequest struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type ListEventsResponse struct {
	Events []model.Event `json:"events"`
}

type HistoryRequest struct {
	Plate string `json:"plate"`
}

type WatchEventsRequest struct{}

type CreateEventRequest struct {
	Start time.Time       `json:"start"`
	Form  model.EventForm `json:"form"`
}

type UpdateEventRequest struct {
	ID    string           `json:"id"`
	Patch model.EventPatch `json:"patch"`
}

type RescheduleEventRequest struct {
	ID    string    `json:"id"`
	Start time.Time `json:"start"`
}

type EventRequest struct {
	ID string `json:"id"`
}

type EventResponse struct {
	Event *model.Event `json:"event"`
}

type CreatePendingLinkRequest struct {
	Slot time.Time `json:"slot"`
}

type PendingLinkResponse struct {
	Pending *model.PendingAppointment `json:"pending"`
	URL     string                    `json:"url"`
}

type PendingRequest struct {
	ID string `json:"id"`
}

type PendingResponse struct {
	Pending *model.PendingAppointment `json:"pending"`
}

type SubmitPendingRequest struct {
	ID   string          `json:"id"`
	Form model.EventForm `json:"form"`
}
