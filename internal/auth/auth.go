// Package auth implements passwordless sign-in: a volunteer enters an
// email, receives a one-time login link, and redeeming it opens a session
// tracked by a cookie.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"townhall/internal/civic"
	"townhall/internal/logging"
	"townhall/internal/store"
)

// ErrUnknownEmail is returned when a login is requested for an email with
// no account.
var ErrUnknownEmail = errors.New("auth: no account for that email")

// ErrInvalidEmail is returned for an address that cannot be an email.
var ErrInvalidEmail = errors.New("auth: enter a valid email address")

// Store is the persistence auth needs.
type Store interface {
	CreateUser(ctx context.Context, u *civic.User) error
	GetUserByEmail(ctx context.Context, email string) (*civic.User, error)
	CreateLoginCode(ctx context.Context, c *store.LoginCode) error
	RedeemLoginCode(ctx context.Context, code string, ttl time.Duration) (*store.LoginCode, error)
	CreateSession(ctx context.Context, s store.Session) error
	SessionUser(ctx context.Context, token string) (*civic.User, error)
	DeleteSession(ctx context.Context, token string) error
	Now() time.Time
}

// Config holds the auth settings.
type Config struct {
	BaseURL       string
	CookieName    string
	SessionTTL    time.Duration
	LoginCodeTTL  time.Duration
	SecureCookies bool
}

// Service issues login codes and sessions.
type Service struct {
	store  Store
	mailer Mailer
	cfg    Config
}

// NewService wires the auth service.
func NewService(st Store, mailer Mailer, cfg Config) *Service {
	if cfg.CookieName == "" {
		cfg.CookieName = "townhall_session"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 14 * 24 * time.Hour
	}
	if cfg.LoginCodeTTL <= 0 {
		cfg.LoginCodeTTL = 15 * time.Minute
	}
	return &Service{store: st, mailer: mailer, cfg: cfg}
}

// Register creates an account for email and sends it a login code. An
// email that is already registered just gets a new code.
func (s *Service) Register(ctx context.Context, email, next string) error {
	email = civic.NormalizeEmail(email)
	if !validEmail(email) {
		return ErrInvalidEmail
	}

	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		u = &civic.User{Email: email, IsActive: true}
		if err := s.store.CreateUser(ctx, u); err != nil {
			return err
		}
		logging.Auth("Registered user %d", u.ID)
	} else if err != nil {
		return err
	} else {
		logging.AuthDebug("Email already registered, re-sending code to user %d", u.ID)
	}
	return s.sendCode(ctx, u, next)
}

// RequestLogin sends a login code to an existing account.
func (s *Service) RequestLogin(ctx context.Context, email, next string) error {
	email = civic.NormalizeEmail(email)
	if !validEmail(email) {
		return ErrInvalidEmail
	}
	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUnknownEmail
	}
	if err != nil {
		return err
	}
	if !u.IsActive {
		logging.AuthWarn("Login requested for inactive user %d", u.ID)
		return ErrUnknownEmail
	}
	return s.sendCode(ctx, u, next)
}

func (s *Service) sendCode(ctx context.Context, u *civic.User, next string) error {
	code, err := newCode()
	if err != nil {
		return fmt.Errorf("failed to generate login code: %w", err)
	}
	lc := &store.LoginCode{Code: code, UserID: u.ID, Next: SafeNext(next)}
	if err := s.store.CreateLoginCode(ctx, lc); err != nil {
		return err
	}
	link := strings.TrimRight(s.cfg.BaseURL, "/") + "/accounts/login/code/" + url.PathEscape(code) + "/"
	if err := s.mailer.SendLoginCode(ctx, u.Email, link); err != nil {
		return fmt.Errorf("failed to send login code: %w", err)
	}
	return nil
}

// Login is a redeemed code turned into a session.
type Login struct {
	Token     string
	Next      string
	ExpiresAt time.Time
	UserID    int64
}

// Redeem exchanges a login code for a new session.
func (s *Service) Redeem(ctx context.Context, code string) (*Login, error) {
	lc, err := s.store.RedeemLoginCode(ctx, code, s.cfg.LoginCodeTTL)
	if err != nil {
		return nil, err
	}
	login := &Login{
		Token:     uuid.NewString(),
		Next:      SafeNext(lc.Next),
		ExpiresAt: s.store.Now().Add(s.cfg.SessionTTL),
		UserID:    lc.UserID,
	}
	if err := s.store.CreateSession(ctx, store.Session{
		Token:     login.Token,
		UserID:    login.UserID,
		ExpiresAt: login.ExpiresAt,
	}); err != nil {
		return nil, err
	}
	logging.Auth("User %d signed in", lc.UserID)
	return login, nil
}

// Logout ends the session with token.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.DeleteSession(ctx, token)
}

// Authenticate returns the user owning token, or nil for an unknown or
// expired session.
func (s *Service) Authenticate(ctx context.Context, token string) (*civic.User, error) {
	if token == "" {
		return nil, nil
	}
	u, err := s.store.SessionUser(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return u, err
}

// SafeNext keeps only local absolute paths, so a login link cannot
// redirect off-site.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return "/"
	}
	return next
}

func newCode() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func validEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}
