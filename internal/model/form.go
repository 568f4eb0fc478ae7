package model

import (
	"slices"
	"strings"
	"time"
)

type FieldError struct {
	Field string
}

func (e *FieldError) Error() string { return e.Field + " is required" }

// EventForm is what a person types into the appointment form, staff or client.
type EventForm struct {
	ClientName   string   `json:"clientName"`
	CarModel     string   `json:"carModel"`
	LicensePlate string   `json:"licensePlate"`
	Phone        string   `json:"phone"`
	CPF          string   `json:"cpf"`
	ServiceType  string   `json:"serviceType"`
	Observations string   `json:"observations"`
	Services     []string `json:"services"`
}

type FormRules struct {
	// public submissions must identify the vehicle
	RequireVehicle bool
}

var PublicFormRules = FormRules{RequireVehicle: true}

func (f EventForm) Normalize() EventForm {
	out := EventForm{
		ClientName:   strings.TrimSpace(f.ClientName),
		CarModel:     strings.TrimSpace(f.CarModel),
		LicensePlate: strings.ToUpper(strings.TrimSpace(f.LicensePlate)),
		Phone:        strings.TrimSpace(f.Phone),
		CPF:          strings.TrimSpace(f.CPF),
		ServiceType:  strings.TrimSpace(f.ServiceType),
		Observations: strings.TrimSpace(f.Observations),
	}
	for _, s := range f.Services {
		if s = strings.TrimSpace(s); s != "" {
			out.Services = append(out.Services, s)
		}
	}
	return out
}

// Validate checks a normalized form.
func (f EventForm) Validate(r FormRules) error {
	if f.ClientName == "" {
		return &FieldError{Field: "clientName"}
	}
	if r.RequireVehicle {
		if f.CarModel == "" {
			return &FieldError{Field: "carModel"}
		}
		if f.LicensePlate == "" {
			return &FieldError{Field: "licensePlate"}
		}
	}
	return nil
}

func (f EventForm) ServiceItems() []ServiceItem {
	items := make([]ServiceItem, 0, len(f.Services))
	for _, s := range f.Services {
		if s = strings.TrimSpace(s); s != "" {
			items = append(items, ServiceItem{Name: s})
		}
	}
	return items
}

// ToEvent builds a confirmed event occupying the slot that starts at start.
func (f EventForm) ToEvent(id string, start time.Time, by Creator, now time.Time) *Event {
	f = f.Normalize()
	return &Event{
		ID:           id,
		Title:        Title(f.ClientName, f.CarModel),
		Start:        start,
		End:          SlotEnd(start),
		ClientName:   f.ClientName,
		CarModel:     f.CarModel,
		LicensePlate: f.LicensePlate,
		Phone:        f.Phone,
		CPF:          f.CPF,
		ServiceType:  f.ServiceType,
		Observations: f.Observations,
		Services:     f.ServiceItems(),
		CreatedBy:    by,
		Status:       StatusConfirmed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// FormFrom seeds an edit form with the fields of an existing event.
func FormFrom(e *Event) EventForm {
	f := EventForm{
		ClientName:   e.ClientName,
		CarModel:     e.CarModel,
		LicensePlate: e.LicensePlate,
		Phone:        e.Phone,
		CPF:          e.CPF,
		ServiceType:  e.ServiceType,
		Observations: e.Observations,
	}
	for _, s := range e.Services {
		f.Services = append(f.Services, s.Name)
	}
	return f
}

// Diff returns a patch holding only the fields f changes on e.
func (f EventForm) Diff(e *Event) EventPatch {
	f = f.Normalize()
	var p EventPatch
	set := func(dst **string, cur, next string) {
		if cur != next {
			v := next
			*dst = &v
		}
	}
	set(&p.ClientName, e.ClientName, f.ClientName)
	set(&p.CarModel, e.CarModel, f.CarModel)
	set(&p.LicensePlate, e.LicensePlate, f.LicensePlate)
	set(&p.Phone, e.Phone, f.Phone)
	set(&p.CPF, e.CPF, f.CPF)
	set(&p.ServiceType, e.ServiceType, f.ServiceType)
	set(&p.Observations, e.Observations, f.Observations)

	items := f.ServiceItems()
	if !slices.Equal(items, e.Services) {
		p.Services = &items
	}
	if p.ClientName != nil || p.CarModel != nil {
		t := Title(f.ClientName, f.CarModel)
		if t != e.Title {
			p.Title = &t
		}
	}
	return p
}
