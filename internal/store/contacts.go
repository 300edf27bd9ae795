package store

import (
	"context"
	"fmt"

	"townhall/internal/civic"
)

// CreateContactAttempt inserts a contact attempt stamped with the store
// clock and sets its ID and Datetime.
func (h handle) CreateContactAttempt(ctx context.Context, a *civic.ContactAttempt) error {
	if !a.Method.Valid() {
		return fmt.Errorf("unknown contact method %q", a.Method)
	}
	a.Datetime = h.now().UTC()
	res, err := h.x.ExecContext(ctx, `
		INSERT INTO contact_attempts (official_id, user_id, datetime, method, contacted, notes)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.OfficialID, a.UserID, formatTime(a.Datetime), string(a.Method), boolInt(a.Contacted), a.Notes)
	if err != nil {
		return fmt.Errorf("failed to create contact attempt: %w", err)
	}
	a.ID, _ = res.LastInsertId()
	return nil
}

// ListContactAttempts returns an official's contact attempts, newest first,
// with the volunteer's email filled in.
func (h handle) ListContactAttempts(ctx context.Context, officialID int64) ([]civic.ContactAttempt, error) {
	var out []civic.ContactAttempt
	err := h.eachRow(ctx, `
		SELECT c.id, c.official_id, c.user_id, c.datetime, c.method, c.contacted, c.notes, u.email
		FROM contact_attempts c
		JOIN users u ON u.id = c.user_id
		WHERE c.official_id = ?
		ORDER BY c.datetime DESC, c.id DESC
	`, []any{officialID}, func(r rowScanner) error {
		var (
			a         civic.ContactAttempt
			ts        string
			method    string
			contacted int
		)
		if err := r.Scan(&a.ID, &a.OfficialID, &a.UserID, &ts, &method, &contacted, &a.Notes, &a.UserEmail); err != nil {
			return err
		}
		t, err := parseTime(ts)
		if err != nil {
			return err
		}
		a.Datetime = t
		a.Method = civic.ContactMethod(method)
		a.Contacted = contacted != 0
		out = append(out, a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list contact attempts for official %d: %w", officialID, err)
	}
	return out, nil
}
