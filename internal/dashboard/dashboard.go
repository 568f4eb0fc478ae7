// Package dashboard is the staff-side calendar logic: the board that mirrors
// the live event feed, the appointment draft workflow and the event detail
// actions. It talks to the server only through EventStore.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"workshop-agenda/internal/feed"
	"workshop-agenda/internal/identity"
	"workshop-agenda/internal/model"
)

var (
	ErrSignedOut    = errors.New("sign in to continue")
	ErrInvalidState = errors.New("action not available in this state")
	ErrNotConfirmed = errors.New("cancel must be confirmed first")
)

// EventStore is the remote API the dashboard drives. rpc.Client satisfies it.
type EventStore interface {
	CreateEvent(ctx context.Context, form model.EventForm, start time.Time) (*model.Event, error)
	UpdateEvent(ctx context.Context, id string, p model.EventPatch) (*model.Event, error)
	Reschedule(ctx context.Context, id string, start time.Time) (*model.Event, error)
	Cancel(ctx context.Context, id string) (*model.Event, error)
	Reactivate(ctx context.Context, id string) (*model.Event, error)
	CreatePendingLink(ctx context.Context, slot time.Time) (*model.PendingAppointment, string, error)
	Subscribe(ctx context.Context) (<-chan feed.Change, error)
}

// Refresher is implemented by providers that hold expiring credentials, such
// as identity.Session. The board calls Fresh before each feed subscription.
type Refresher interface {
	Fresh(ctx context.Context) error
}

// latest keeps the most recent identity delivered by a Provider.
type latest struct {
	mu sync.RWMutex
	id identity.Identity
}

func (l *latest) get() identity.Identity {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.id
}

func (l *latest) set(id identity.Identity) {
	l.mu.Lock()
	l.id = id
	l.mu.Unlock()
}

func (l *latest) follow(ids <-chan identity.Identity) {
	for id := range ids {
		l.set(id)
	}
}
