package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"workshop-agenda/internal/model"
)

var ErrOverflow = errors.New("feed: subscriber fell behind")

const DefaultBuffer = 64

type Source interface {
	ListEvents(ctx context.Context, from, to time.Time) ([]model.Event, error)
	GetEvent(ctx context.Context, id string) (*model.Event, error)
}

type subscriber struct {
	ch      chan Change
	primed  bool
	backlog []Change
}

// Hub fans changes out to live subscribers. A subscriber that cannot keep up
// is dropped and its channel closed; it has to subscribe again.
type Hub struct {
	src    Source
	log    *zap.Logger
	buffer int

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func NewHub(src Source, log *zap.Logger) *Hub {
	return &Hub{
		src:    src,
		log:    log,
		buffer: DefaultBuffer,
		subs:   make(map[*subscriber]struct{}),
	}
}

// Subscribe registers before loading the snapshot so nothing written in
// between is lost; those changes are queued and sent right after it.
func (h *Hub) Subscribe(ctx context.Context) (<-chan Change, error) {
	sub := &subscriber{ch: make(chan Change, h.buffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	events, err := h.src.ListEvents(ctx, time.Time{}, time.Time{})
	if err != nil {
		h.drop(sub)
		return nil, err
	}

	h.mu.Lock()
	if _, ok := h.subs[sub]; !ok {
		h.mu.Unlock()
		return nil, ErrOverflow
	}
	sub.ch <- Snapshot(events)
	for _, c := range sub.backlog {
		sub.ch <- c
	}
	sub.backlog = nil
	sub.primed = true
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.drop(sub)
	}()
	return sub.ch, nil
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) Publish(c Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if !sub.primed {
			// snapshot plus backlog must fit the channel when it is primed
			if len(sub.backlog) >= h.buffer-1 {
				h.dropLocked(sub)
				continue
			}
			sub.backlog = append(sub.backlog, c)
			continue
		}
		select {
		case sub.ch <- c:
		default:
			h.log.Warn("feed: dropping slow subscriber", zap.String("kind", string(c.Kind)))
			h.dropLocked(sub)
		}
	}
}

// Notify resolves a store notification into a change and publishes it.
func (h *Hub) Notify(ctx context.Context, op, id string) {
	if op == "delete" {
		h.Publish(Remove(id))
		return
	}
	e, err := h.src.GetEvent(ctx, id)
	switch {
	case errors.Is(err, model.ErrNotFound):
		h.Publish(Remove(id))
	case err != nil:
		h.log.Error("feed: resolve change", zap.String("id", id), zap.Error(err))
	default:
		h.Publish(Upsert(e))
	}
}

func (h *Hub) drop(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(sub)
}

func (h *Hub) dropLocked(sub *subscriber) {
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.ch)
}

// Resync closes every subscription. Used after the notification listener
// reconnects, since changes made while it was down were never published;
// subscribers come back with a fresh snapshot.
func (h *Hub) Resync() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		h.dropLocked(sub)
	}
}
