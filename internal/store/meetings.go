package store

import (
	"context"
	"fmt"

	"townhall/internal/civic"
)

// CreateMeeting inserts a meeting and sets its ID. The date is required.
func (h handle) CreateMeeting(ctx context.Context, m *civic.Meeting) error {
	if m.Date.IsZero() {
		return fmt.Errorf("meeting for official %d has no date", m.OfficialID)
	}
	if m.Type != "" && !m.Type.Valid() {
		return fmt.Errorf("unknown meeting type %q", m.Type)
	}
	res, err := h.x.ExecContext(ctx, `
		INSERT INTO meetings (official_id, date, time, location, meeting_type, event_website, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.OfficialID, m.Date.Format(civic.DateLayout), m.Time, m.Location, string(m.Type), m.EventWebsite, m.Notes)
	if err != nil {
		return fmt.Errorf("failed to create meeting: %w", err)
	}
	m.ID, _ = res.LastInsertId()
	return nil
}

// ListMeetings returns an official's meetings ordered by date, with sources.
func (h handle) ListMeetings(ctx context.Context, officialID int64) ([]civic.Meeting, error) {
	return h.meetingsWhere(ctx, `official_id = ?`, officialID)
}

// CountMeetings returns the total number of meetings for an official.
func (h handle) CountMeetings(ctx context.Context, officialID int64) (int, error) {
	var n int
	err := h.x.QueryRowContext(ctx, `SELECT COUNT(*) FROM meetings WHERE official_id = ?`, officialID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count meetings: %w", err)
	}
	return n, nil
}

func (h handle) meetingsWhere(ctx context.Context, cond string, args ...any) ([]civic.Meeting, error) {
	var out []civic.Meeting
	err := h.eachRow(ctx, `SELECT id, official_id, date, time, location, meeting_type, event_website, notes
		FROM meetings WHERE `+cond+` ORDER BY date, id`, args, func(r rowScanner) error {
		var (
			m    civic.Meeting
			date string
			typ  string
		)
		if err := r.Scan(&m.ID, &m.OfficialID, &date, &m.Time, &m.Location, &typ, &m.EventWebsite, &m.Notes); err != nil {
			return err
		}
		d, err := civic.ParseDate(date)
		if err != nil {
			return fmt.Errorf("meeting %d: %w", m.ID, err)
		}
		m.Date = d
		m.Type = civic.MeetingType(typ)
		out = append(out, m)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load meetings: %w", err)
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]int64, len(out))
	for i := range out {
		ids[i] = out[i].ID
	}
	sources, err := h.sourcesFor(ctx, civic.OwnerMeeting, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Sources = sources[out[i].ID]
	}
	return out, nil
}

// =============================================================================
// SOURCES
// =============================================================================

// AddSource attaches a citation URL to its owner.
func (h handle) AddSource(ctx context.Context, s *civic.Source) error {
	if !s.Owner.Kind.Valid() {
		return fmt.Errorf("unknown source owner kind %q", s.Owner.Kind)
	}
	res, err := h.x.ExecContext(ctx,
		`INSERT INTO sources (url, owner_kind, owner_id) VALUES (?, ?, ?)`,
		s.URL, string(s.Owner.Kind), s.Owner.ID)
	if err != nil {
		return fmt.Errorf("failed to add source for %s: %w", s.Owner, err)
	}
	s.ID, _ = res.LastInsertId()
	return nil
}

// ListSources returns the sources attached to owner.
func (h handle) ListSources(ctx context.Context, owner civic.Owner) ([]civic.Source, error) {
	m, err := h.sourcesFor(ctx, owner.Kind, []int64{owner.ID})
	if err != nil {
		return nil, err
	}
	return m[owner.ID], nil
}

func (h handle) sourcesFor(ctx context.Context, kind civic.OwnerKind, ids []int64) (map[int64][]civic.Source, error) {
	out := make(map[int64][]civic.Source)
	args := make([]any, 0, len(ids)+1)
	args = append(args, string(kind))
	for _, id := range ids {
		args = append(args, id)
	}
	err := h.eachRow(ctx, `SELECT id, url, owner_id FROM sources
		WHERE owner_kind = ? AND owner_id IN (`+placeholders(len(ids))+`) ORDER BY id`, args,
		func(r rowScanner) error {
			s := civic.Source{Owner: civic.Owner{Kind: kind}}
			if err := r.Scan(&s.ID, &s.URL, &s.Owner.ID); err != nil {
				return err
			}
			out[s.Owner.ID] = append(out[s.Owner.ID], s)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}
	return out, nil
}
