package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"workshop-agenda/internal/model"
	"workshop-agenda/internal/ticket"
)

const confirmedPath = "/agendamento-confirmado"

var fieldLabels = map[string]string{
	"clientName":   "Nome do Cliente",
	"carModel":     "Modelo do Carro",
	"licensePlate": "Placa",
}

type formPage struct {
	Pending *model.PendingAppointment
	Form    model.EventForm
	// Services as typed, one per line
	Services string
	Error    string
}

type messagePage struct {
	Message string
}

func (s *Server) pendingForm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, err := s.bookings.LoadPending(r.Context(), ps.ByName("id"))
	if err != nil {
		s.pendingError(w, err)
		return
	}
	s.render(w, http.StatusOK, "form.html", formPage{Pending: p})
}

func (s *Server) submitPending(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	services := r.PostForm.Get("services")
	form := model.EventForm{
		ClientName:   r.PostForm.Get("clientName"),
		CarModel:     r.PostForm.Get("carModel"),
		LicensePlate: r.PostForm.Get("licensePlate"),
		Phone:        r.PostForm.Get("phone"),
		CPF:          r.PostForm.Get("cpf"),
		ServiceType:  r.PostForm.Get("serviceType"),
		Observations: r.PostForm.Get("observations"),
		Services:     strings.Split(services, "\n"),
	}

	_, err := s.bookings.SubmitPending(r.Context(), id, form)
	var fe *model.FieldError
	switch {
	case err == nil:
		http.Redirect(w, r, confirmedPath, http.StatusSeeOther)
	case errors.As(err, &fe):
		p, lerr := s.bookings.LoadPending(r.Context(), id)
		if lerr != nil {
			s.pendingError(w, lerr)
			return
		}
		s.render(w, http.StatusUnprocessableEntity, "form.html", formPage{
			Pending:  p,
			Form:     form,
			Services: services,
			Error:    "Preencha o campo " + label(fe.Field) + ".",
		})
	default:
		s.pendingError(w, err)
	}
}

func label(field string) string {
	if l, ok := fieldLabels[field]; ok {
		return l
	}
	return field
}

// pendingError renders the terminal pages; a missing link offers no retry.
func (s *Server) pendingError(w http.ResponseWriter, err error) {
	if errors.Is(err, model.ErrNotFound) {
		s.render(w, http.StatusNotFound, "message.html", messagePage{Message: "Agendamento não encontrado"})
		return
	}
	s.log.Error("public appointment", zap.Error(err))
	s.render(w, http.StatusInternalServerError, "message.html", messagePage{Message: "Erro ao salvar agendamento"})
}

func (s *Server) confirmed(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	s.render(w, http.StatusOK, "confirmed.html", nil)
}

func (s *Server) pendingQR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if _, err := s.bookings.LoadPending(r.Context(), id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	png, err := ticket.LinkQR(s.bookings.LinkURL(id), 256)
	if err != nil {
		http.Error(w, "failed to generate QR code", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}
