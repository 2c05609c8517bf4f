// Package session keeps the per-client form session (leader name and last picked values)
// in a signed cookie so no server-side state is shared between clients.
package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/automatistasidl/id-coletivo/internal/attendance"
)

// DefaultCookieName is used when Config.CookieName is empty.
const DefaultCookieName = "idc_session"

const issuer = "id-coletivo"

// Config captures the inputs required to sign and verify session cookies.
type Config struct {
	// Secret signs the cookie with HS256. When empty a random key is generated and sessions
	// do not survive a restart.
	Secret     string
	TTL        time.Duration
	CookieName string
	Secure     bool
}

// Manager encodes sessions as HS256 JWTs and moves them in and out of requests.
type Manager struct {
	secret     []byte
	ttl        time.Duration
	cookieName string
	secure     bool
	now        func() time.Time
}

type claims struct {
	jwt.RegisteredClaims
	Leader     string `json:"leader,omitempty"`
	LastSector string `json:"last_sector,omitempty"`
	LastTier   string `json:"last_tier,omitempty"`
}

var errUnexpectedClaims = errors.New("unexpected session claims")

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %s", cfg.TTL)
	}
	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}
	name := cfg.CookieName
	if name == "" {
		name = DefaultCookieName
	}
	return &Manager{
		secret:     secret,
		ttl:        cfg.TTL,
		cookieName: name,
		secure:     cfg.Secure,
		now:        time.Now,
	}, nil
}

// Encode signs sess into a compact token.
func (m *Manager) Encode(sess *attendance.Session) (string, error) {
	if sess == nil {
		return "", errors.New("session is nil")
	}
	now := m.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Leader:     sess.LeaderName,
		LastSector: sess.LastSector,
		LastTier:   sess.LastTier,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return token, nil
}

// Decode verifies token and rebuilds the session it carries.
func (m *Manager) Decode(token string) (*attendance.Session, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("session verification failed: %w", err)
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || c.ID == "" {
		return nil, errUnexpectedClaims
	}
	return &attendance.Session{
		ID:         c.ID,
		LeaderName: c.Leader,
		LastSector: c.LastSector,
		LastTier:   c.LastTier,
	}, nil
}

type ctxKey string

const sessionCtxKey ctxKey = "idcoletivo:session"

// Middleware attaches the request's session to the context, starting a new one when the
// cookie is missing, expired or forged.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := m.load(r)
		ctx := context.WithValue(r.Context(), sessionCtxKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Manager) load(r *http.Request) *attendance.Session {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return attendance.NewSession()
	}
	sess, err := m.Decode(cookie.Value)
	if err != nil {
		return attendance.NewSession()
	}
	return sess
}

// Save writes sess back as a cookie. Call it before the response body is written.
func (m *Manager) Save(w http.ResponseWriter, sess *attendance.Session) error {
	token, err := m.Encode(sess)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// FromContext returns the session attached by Middleware. Outside the middleware it returns
// a fresh session so callers never handle nil.
func FromContext(ctx context.Context) *attendance.Session {
	if sess, ok := ctx.Value(sessionCtxKey).(*attendance.Session); ok && sess != nil {
		return sess
	}
	return attendance.NewSession()
}
