package model

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCanceled  Status = "canceled"
	StatusPending   Status = "pending"
)

// slots are fixed length; every path that sets start also sets end
const SlotDuration = time.Hour

const (
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	PhotoURL     string    `json:"photoUrl,omitempty"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Creator is a snapshot of who created or confirmed a record.
// It is copied, never joined, so later profile edits do not show up here.
type Creator struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

type ServiceItem struct {
	Name string `json:"name"`
}

type Event struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Start        time.Time     `json:"start"`
	End          time.Time     `json:"end"`
	ClientName   string        `json:"clientName"`
	CarModel     string        `json:"carModel,omitempty"`
	LicensePlate string        `json:"licensePlate,omitempty"`
	Phone        string        `json:"phone,omitempty"`
	CPF          string        `json:"cpf,omitempty"`
	ServiceType  string        `json:"serviceType,omitempty"`
	Observations string        `json:"observations,omitempty"`
	Services     []ServiceItem `json:"services"`
	CreatedBy    Creator       `json:"createdBy"`
	Status       Status        `json:"status"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

func (e Event) Canceled() bool { return e.Status == StatusCanceled }

type PendingAppointment struct {
	ID        string    `json:"id"`
	Date      time.Time `json:"date"`
	Status    Status    `json:"status"`
	CreatedBy Creator   `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// Title is "client - car" when a car model is known, else just the client.
func Title(clientName, carModel string) string {
	if carModel == "" {
		return clientName
	}
	return clientName + " - " + carModel
}

// SlotEnd returns the end of the fixed-length slot starting at start.
func SlotEnd(start time.Time) time.Time {
	return start.Add(SlotDuration)
}
