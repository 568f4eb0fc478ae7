package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Listen holds a pooled connection in LISTEN on channel and calls fn for every
// notification until ctx is done. It returns ctx.Err() on cancellation and
// any connection error otherwise; the caller decides whether to listen again.
func (s *Store) Listen(ctx context.Context, channel string, fn func(Notice)) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		// a canceled wait leaves the conn closed and the pool drops it on release
		_, _ = conn.Exec(context.Background(), "UNLISTEN *")
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", channel, err)
	}
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		var msg Notice
		if err := json.Unmarshal([]byte(n.Payload), &msg); err != nil {
			continue
		}
		fn(msg)
	}
}
