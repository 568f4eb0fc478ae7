package identity

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"workshop-agenda/internal/rpc"
)

var ErrSignedOut = errors.New("not signed in")

// refresh this long before the access token actually expires
const refreshSkew = 30 * time.Second

// Authenticator is the server side of a session.
type Authenticator interface {
	Register(ctx context.Context, email, password, name string) (*rpc.AuthResponse, error)
	Login(ctx context.Context, email, password string) (*rpc.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*rpc.AuthResponse, error)
	Logout(ctx context.Context) error
}

type state struct {
	Identity     `yaml:",inline"`
	AccessToken  string    `yaml:"access_token"`
	RefreshToken string    `yaml:"refresh_token"`
	ExpiresAt    time.Time `yaml:"expires_at"`
}

// Session holds the tokens of one signed-in user and persists them to a
// YAML file so the CLI stays signed in between runs.
type Session struct {
	auth Authenticator
	path string

	mu   sync.Mutex
	st   state
	subs map[chan Identity]struct{}
	now  func() time.Time
}

func NewSession(auth Authenticator, path string) *Session {
	return &Session{
		auth: auth,
		path: path,
		subs: make(map[chan Identity]struct{}),
		now:  time.Now,
	}
}

// Load reads the session file. A missing file is a signed-out session.
func (s *Session) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var st state
	if err := yaml.Unmarshal(data, &st); err != nil {
		return err
	}
	s.set(st)
	return nil
}

func (s *Session) save() error {
	s.mu.Lock()
	st := s.st
	s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	if !st.SignedIn() {
		err := os.Remove(s.path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	data, err := yaml.Marshal(st)
	if err != nil {
		return err
	}
	return writeAtomic(s.path, data)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".agenda-session-*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer os.Remove(name)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(name, path)
}

func (s *Session) SignIn(ctx context.Context, email, password string) (Identity, error) {
	resp, err := s.auth.Login(ctx, email, password)
	if err != nil {
		return Identity{}, err
	}
	s.set(fromResponse(resp))
	return s.Current(), s.save()
}

// SignUp creates an account and signs the session in as it.
func (s *Session) SignUp(ctx context.Context, email, password, name string) (Identity, error) {
	resp, err := s.auth.Register(ctx, email, password, name)
	if err != nil {
		return Identity{}, err
	}
	s.set(fromResponse(resp))
	return s.Current(), s.save()
}

// SignOut revokes server-side refresh tokens and clears the local session.
// The local state is cleared even when the server call fails.
func (s *Session) SignOut(ctx context.Context) error {
	var err error
	if s.Current().SignedIn() {
		err = s.auth.Logout(ctx)
	}
	s.set(state{})
	if serr := s.save(); err == nil {
		err = serr
	}
	return err
}

// Refresh rotates the tokens. A rejected refresh signs the session out.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	tok := s.st.RefreshToken
	s.mu.Unlock()
	if tok == "" {
		return ErrSignedOut
	}
	resp, err := s.auth.Refresh(ctx, tok)
	if err != nil {
		s.set(state{})
		s.save()
		return err
	}
	s.set(fromResponse(resp))
	return s.save()
}

// Fresh refreshes the access token if it is about to expire.
func (s *Session) Fresh(ctx context.Context) error {
	s.mu.Lock()
	st := s.st
	s.mu.Unlock()
	if !st.SignedIn() {
		return ErrSignedOut
	}
	if s.now().Add(refreshSkew).Before(st.ExpiresAt) {
		return nil
	}
	return s.Refresh(ctx)
}

func (s *Session) Current() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Identity
}

// AccessToken lets the session act as the token source of an rpc.Client.
func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.AccessToken
}

func (s *Session) Subscribe(ctx context.Context) <-chan Identity {
	ch := make(chan Identity, 1)
	s.mu.Lock()
	ch <- s.st.Identity
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch
}

func (s *Session) set(st state) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := st.Identity != s.st.Identity
	s.st = st
	if !changed {
		return
	}
	for ch := range s.subs {
		// keep only the newest value
		select {
		case <-ch:
		default:
		}
		ch <- st.Identity
	}
}

func fromResponse(r *rpc.AuthResponse) state {
	return state{
		Identity:     Identity{UserID: r.UserID, Name: r.Name, Role: r.Role},
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    r.ExpiresAt,
	}
}
