package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"workshop-agenda/internal/model"
	"workshop-agenda/internal/ticket"
)

// printTicket serves /tickets/{id} as a print page and /tickets/{id}.pdf as PDF.
func (s *Server) printTicket(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if _, ok := s.bearer(r); !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id := ps.ByName("id")
	asPDF := strings.HasSuffix(id, ".pdf")
	id = strings.TrimSuffix(id, ".pdf")

	e, err := s.bookings.GetEvent(r.Context(), id)
	if errors.Is(err, model.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.log.Error("load ticket", zap.String("id", id), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	t := ticket.New(e, s.opts.Location)
	if asPDF {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", "inline; filename=agendamento-"+id+".pdf")
		err = ticket.PDF(w, t)
	} else {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err = ticket.HTML(w, t)
	}
	if err != nil {
		s.log.Error("render ticket", zap.String("id", id), zap.Error(err))
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// token is checked before upgrade
		return true
	},
}

const writeWait = 10 * time.Second

// watch relays the live feed over a websocket as JSON changes.
func (s *Server) watch(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	claims, ok := s.bearer(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch, err := s.feed.Subscribe(ctx)
	if err != nil {
		s.log.Error("subscribe", zap.Error(err))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"))
		return
	}

	// reads only to notice the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for c := range ch {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(c); err != nil {
			return
		}
	}
	if ctx.Err() == nil {
		s.log.Info("websocket subscriber dropped", zap.String("uid", claims.UserID()))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "fell behind"))
	}
}

// calendar exports confirmed events as iCalendar.
func (s *Server) calendar(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if _, ok := s.bearer(r); !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	events, err := s.bookings.ListEvents(r.Context(), time.Time{}, time.Time{})
	if err != nil {
		s.log.Error("export calendar", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=agenda.ics")
	w.Write([]byte(Calendar(events)))
}

func Calendar(events []model.Event) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//workshop-agenda//agenda//PT")
	for _, e := range events {
		if e.Canceled() {
			continue
		}
		ev := cal.AddEvent(e.ID)
		ev.SetCreatedTime(e.CreatedAt)
		ev.SetDtStampTime(e.UpdatedAt)
		ev.SetModifiedAt(e.UpdatedAt)
		ev.SetStartAt(e.Start)
		ev.SetEndAt(e.End)
		ev.SetSummary(e.Title)
		ev.SetDescription(description(&e))
		ev.SetStatus(ical.ObjectStatusConfirmed)
	}
	return cal.Serialize()
}

func description(e *model.Event) string {
	var lines []string
	add := func(label, v string) {
		if v != "" {
			lines = append(lines, label+": "+v)
		}
	}
	add("Cliente", e.ClientName)
	add("Placa", e.LicensePlate)
	add("Telefone", e.Phone)
	add("Tipo de Serviço", e.ServiceType)
	for _, sv := range e.Services {
		lines = append(lines, "- "+sv.Name)
	}
	add("Observações", e.Observations)
	return strings.Join(lines, "\n")
}
