package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"townhall/internal/civic"
)

// ErrEmailTaken is returned when creating a user whose email already exists.
var ErrEmailTaken = errors.New("store: email already registered")

// ErrCodeInvalid is returned for an unknown, used, or expired login code.
var ErrCodeInvalid = errors.New("store: login code invalid or expired")

// LoginCode is a one-time code that signs a user in.
type LoginCode struct {
	Code      string
	UserID    int64
	Next      string
	CreatedAt time.Time
	Used      bool
}

// Session binds a browser token to a user until it expires.
type Session struct {
	Token     string
	UserID    int64
	ExpiresAt time.Time
}

// =============================================================================
// USERS
// =============================================================================

// CreateUser inserts a user with a normalized email.
func (h handle) CreateUser(ctx context.Context, u *civic.User) error {
	u.Email = civic.NormalizeEmail(u.Email)
	if u.Email == "" {
		return fmt.Errorf("user email is required")
	}
	u.DateJoined = h.now().UTC()
	res, err := h.x.ExecContext(ctx, `
		INSERT INTO users (email, full_name, is_staff, is_active, date_joined)
		VALUES (?, ?, ?, ?, ?)
	`, u.Email, u.FullName, boolInt(u.IsStaff), boolInt(u.IsActive), formatTime(u.DateJoined))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("%s: %w", u.Email, ErrEmailTaken)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	u.ID, _ = res.LastInsertId()
	return nil
}

const userColumns = `id, email, full_name, is_staff, is_active, date_joined`

func scanUser(r rowScanner) (*civic.User, error) {
	var (
		u             civic.User
		staff, active int
		joined        string
	)
	if err := r.Scan(&u.ID, &u.Email, &u.FullName, &staff, &active, &joined); err != nil {
		return nil, err
	}
	t, err := parseTime(joined)
	if err != nil {
		return nil, err
	}
	u.IsStaff = staff != 0
	u.IsActive = active != 0
	u.DateJoined = t
	return &u, nil
}

// GetUser loads a user by id.
func (h handle) GetUser(ctx context.Context, id int64) (*civic.User, error) {
	u, err := scanUser(h.x.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", id, err)
	}
	return u, nil
}

// GetUserByEmail loads a user by email; the email is normalized first.
func (h handle) GetUserByEmail(ctx context.Context, email string) (*civic.User, error) {
	email = civic.NormalizeEmail(email)
	u, err := scanUser(h.x.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", email, err)
	}
	return u, nil
}

// =============================================================================
// LOGIN CODES
// =============================================================================

// CreateLoginCode stores a fresh code for a user.
func (h handle) CreateLoginCode(ctx context.Context, c *LoginCode) error {
	c.CreatedAt = h.now().UTC()
	_, err := h.x.ExecContext(ctx,
		`INSERT INTO login_codes (code, user_id, next, created_at, used) VALUES (?, ?, ?, ?, 0)`,
		c.Code, c.UserID, c.Next, formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create login code: %w", err)
	}
	return nil
}

// RedeemLoginCode marks a code used and returns it. Codes older than ttl,
// already used, or unknown yield ErrCodeInvalid.
func (h handle) RedeemLoginCode(ctx context.Context, code string, ttl time.Duration) (*LoginCode, error) {
	c := LoginCode{Code: code}
	var created string
	var used int
	err := h.x.QueryRowContext(ctx,
		`SELECT user_id, next, created_at, used FROM login_codes WHERE code = ?`, code,
	).Scan(&c.UserID, &c.Next, &created, &used)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCodeInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load login code: %w", err)
	}
	if c.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if used != 0 || h.now().Sub(c.CreatedAt) > ttl {
		return nil, ErrCodeInvalid
	}

	res, err := h.x.ExecContext(ctx, `UPDATE login_codes SET used = 1 WHERE code = ? AND used = 0`, code)
	if err != nil {
		return nil, fmt.Errorf("failed to redeem login code: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrCodeInvalid
	}
	c.Used = true
	return &c, nil
}

// =============================================================================
// SESSIONS
// =============================================================================

// CreateSession stores a session.
func (h handle) CreateSession(ctx context.Context, s Session) error {
	_, err := h.x.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`,
		s.Token, s.UserID, formatTime(s.ExpiresAt))
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// SessionUser returns the active user owning an unexpired session token.
func (h handle) SessionUser(ctx context.Context, token string) (*civic.User, error) {
	var userID int64
	var expires string
	err := h.x.QueryRowContext(ctx,
		`SELECT user_id, expires_at FROM sessions WHERE token = ?`, token,
	).Scan(&userID, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	exp, err := parseTime(expires)
	if err != nil {
		return nil, err
	}
	if !h.now().Before(exp) {
		return nil, fmt.Errorf("session expired: %w", ErrNotFound)
	}

	u, err := h.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, fmt.Errorf("user %d inactive: %w", u.ID, ErrNotFound)
	}
	return u, nil
}

// DeleteSession removes a session token. Unknown tokens are ignored.
func (h handle) DeleteSession(ctx context.Context, token string) error {
	if _, err := h.x.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// PurgeExpiredSessions deletes expired sessions and returns how many went.
func (h handle) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	res, err := h.x.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, formatTime(h.now()))
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return res.RowsAffected()
}
