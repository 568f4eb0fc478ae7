// Package identity tracks who is signed in on the client side. Components
// that stamp records or gate actions receive a Provider and keep the latest
// value it delivers instead of reading shared globals.
package identity

import "context"

// Identity is the current actor. The zero value means signed out.
type Identity struct {
	UserID string `yaml:"user_id"`
	Name   string `yaml:"name"`
	Role   string `yaml:"role"`
}

func (i Identity) SignedIn() bool { return i.UserID != "" }

type Provider interface {
	// Subscribe delivers the current identity right away and again on every
	// sign-in, sign-out or refresh. Only the latest value is kept for slow
	// readers. The channel closes when ctx is done.
	Subscribe(ctx context.Context) <-chan Identity
}

// Static is a Provider that never changes, for tools and tests.
type Static Identity

func (s Static) Subscribe(ctx context.Context) <-chan Identity {
	ch := make(chan Identity, 1)
	ch <- Identity(s)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}
