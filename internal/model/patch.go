package model

import (
	"errors"
	"time"
)

var ErrBadPatch = errors.New("invalid patch")

// EventPatch names the fields a write touches. Nil fields are left alone.
type EventPatch struct {
	Title        *string        `json:"title,omitempty"`
	ClientName   *string        `json:"clientName,omitempty"`
	CarModel     *string        `json:"carModel,omitempty"`
	LicensePlate *string        `json:"licensePlate,omitempty"`
	Phone        *string        `json:"phone,omitempty"`
	CPF          *string        `json:"cpf,omitempty"`
	ServiceType  *string        `json:"serviceType,omitempty"`
	Observations *string        `json:"observations,omitempty"`
	Services     *[]ServiceItem `json:"services,omitempty"`
	Start        *time.Time     `json:"start,omitempty"`
	End          *time.Time     `json:"end,omitempty"`
	Status       *Status        `json:"status,omitempty"`
}

func Reschedule(start time.Time) EventPatch {
	end := SlotEnd(start)
	return EventPatch{Start: &start, End: &end}
}

func SetStatus(s Status) EventPatch {
	return EventPatch{Status: &s}
}

func (p EventPatch) IsEmpty() bool {
	return p.Title == nil && p.ClientName == nil && p.CarModel == nil &&
		p.LicensePlate == nil && p.Phone == nil && p.CPF == nil &&
		p.ServiceType == nil && p.Observations == nil && p.Services == nil &&
		p.Start == nil && p.End == nil && p.Status == nil
}

func (p EventPatch) Validate() error {
	if p.IsEmpty() {
		return ErrBadPatch
	}
	if (p.Start == nil) != (p.End == nil) {
		return ErrBadPatch
	}
	if p.Start != nil && !p.End.After(*p.Start) {
		return ErrBadPatch
	}
	if p.ClientName != nil && *p.ClientName == "" {
		return &FieldError{Field: "clientName"}
	}
	if p.Status != nil && *p.Status != StatusConfirmed && *p.Status != StatusCanceled {
		return ErrBadPatch
	}
	return nil
}

// Apply writes the set fields onto e.
func (p EventPatch) Apply(e *Event) {
	str := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	str(&e.Title, p.Title)
	str(&e.ClientName, p.ClientName)
	str(&e.CarModel, p.CarModel)
	str(&e.LicensePlate, p.LicensePlate)
	str(&e.Phone, p.Phone)
	str(&e.CPF, p.CPF)
	str(&e.ServiceType, p.ServiceType)
	str(&e.Observations, p.Observations)
	if p.Services != nil {
		e.Services = append([]ServiceItem(nil), (*p.Services)...)
	}
	if p.Start != nil {
		e.Start = *p.Start
	}
	if p.End != nil {
		e.End = *p.End
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
}
