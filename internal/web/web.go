// Package web serves the HTTP side of the agenda: the public appointment
// form behind shared links, printable tickets, the websocket feed and the
// calendar export.
package web

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"workshop-agenda/internal/auth"
	"workshop-agenda/internal/feed"
	"workshop-agenda/internal/model"
	"workshop-agenda/internal/ticket"
)

// Bookings is the part of the booking service the HTTP routes use.
type Bookings interface {
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	ListEvents(ctx context.Context, from, to time.Time) ([]model.Event, error)
	LoadPending(ctx context.Context, id string) (*model.PendingAppointment, error)
	SubmitPending(ctx context.Context, id string, form model.EventForm) (*model.Event, error)
	LinkURL(id string) string
}

type Feed interface {
	Subscribe(ctx context.Context) (<-chan feed.Change, error)
}

// Verifier checks staff bearer tokens. *auth.Signer implements it.
type Verifier interface {
	Verify(raw string) (*auth.Claims, error)
}

type Options struct {
	Tokens         Verifier
	Location       *time.Location
	AllowedOrigins []string
}

type Server struct {
	bookings Bookings
	feed     Feed
	opts     Options
	log      *zap.Logger
	pages    *template.Template
}

//go:embed templates/*.html
var files embed.FS

func New(b Bookings, f Feed, opts Options, log *zap.Logger) *Server {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	s := &Server{bookings: b, feed: f, opts: opts, log: log}
	s.pages = template.Must(template.New("").Funcs(template.FuncMap{
		"datetime": s.datetime,
	}).ParseFS(files, "templates/*.html"))
	return s
}

func (s *Server) Router() *httprouter.Router {
	r := httprouter.New()
	r.GET("/health", s.health)
	r.GET("/agendar/:id", s.pendingForm)
	r.POST("/agendar/:id", s.submitPending)
	r.GET("/agendar/:id/qr.png", s.pendingQR)
	r.GET("/agendamento-confirmado", s.confirmed)
	r.GET("/tickets/:id", s.printTicket)
	r.GET("/ws/events", s.watch)
	r.GET("/calendar.ics", s.calendar)
	return r
}

// Handler wraps the router with CORS and request logging.
func (s *Server) Handler() http.Handler {
	origins := s.opts.AllowedOrigins
	// credentials are only sent back to origins that were listed explicitly
	credentials := len(origins) > 0
	if !credentials {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: credentials,
	})
	return s.logging(c.Handler(s.Router()))
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Duration("took", time.Since(start)))
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (s *Server) datetime(t time.Time) string {
	return ticket.DateTime(t, s.opts.Location)
}

func (s *Server) render(w http.ResponseWriter, code int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := s.pages.ExecuteTemplate(w, name, data); err != nil {
		s.log.Error("render page", zap.String("page", name), zap.Error(err))
	}
}

// bearer accepts the token from the Authorization header or, for links opened
// in a new window or a websocket, from the token query parameter.
func (s *Server) bearer(r *http.Request) (*auth.Claims, bool) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" {
		raw = r.URL.Query().Get("token")
	}
	if raw == "" {
		return nil, false
	}
	c, err := s.opts.Tokens.Verify(raw)
	if err != nil {
		return nil, false
	}
	return c, true
}
