// Package auth signs the short-lived access tokens, mints the opaque refresh
// tokens stored server side and hashes passwords.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var ErrBadToken = errors.New("invalid token")

const (
	Issuer      = "workshop-agenda"
	AccessTTL   = 15 * time.Minute
	RefreshTTL  = 7 * 24 * time.Hour
	MinPassword = 8
)

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func PasswordMatches(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// Claims carry the user id as the subject.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string { return c.Subject }

type Access struct {
	Token     string
	ExpiresAt time.Time
}

// Refresh is a newly minted refresh token. Raw goes to the client, only
// Hash is stored.
type Refresh struct {
	ID        string
	Raw       string
	Hash      string
	ExpiresAt time.Time
}

// Signer holds the HMAC key. The zero value is not usable.
type Signer struct {
	key []byte
	now func() time.Time
}

func NewSigner(secret string) *Signer {
	return &Signer{key: []byte(secret), now: time.Now}
}

func (s *Signer) Access(uid, role string) (Access, error) {
	now := s.now()
	exp := now.Add(AccessTTL)
	c := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.key)
	if err != nil {
		return Access{}, err
	}
	return Access{Token: tok, ExpiresAt: exp}, nil
}

// Verify accepts only HS256 tokens from this issuer that carry an expiry.
func (s *Signer) Verify(raw string) (*Claims, error) {
	var c Claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, errors.Join(ErrBadToken, err)
	}
	if c.Subject == "" {
		return nil, ErrBadToken
	}
	return &c, nil
}

func (s *Signer) Refresh() (Refresh, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return Refresh{}, err
	}
	raw := hex.EncodeToString(b)
	return Refresh{
		ID:        uuid.NewString(),
		Raw:       raw,
		Hash:      HashRefresh(raw),
		ExpiresAt: s.now().Add(RefreshTTL),
	}, nil
}

func HashRefresh(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
