package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"townhall/internal/civic"
)

// =============================================================================
// DIVISIONS AND OFFICES
// =============================================================================

// GetOrCreateDivision returns the division with ocdID, creating it with name
// when missing. The bool reports whether a row was created.
func (h handle) GetOrCreateDivision(ctx context.Context, ocdID, name string) (civic.Division, bool, error) {
	d := civic.Division{OCDID: ocdID}
	err := h.x.QueryRowContext(ctx,
		`SELECT id, name FROM divisions WHERE ocd_id = ?`, ocdID,
	).Scan(&d.ID, &d.Name)
	if err == nil {
		return d, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return d, false, fmt.Errorf("failed to load division %s: %w", ocdID, err)
	}

	res, err := h.x.ExecContext(ctx,
		`INSERT INTO divisions (ocd_id, name) VALUES (?, ?)`, ocdID, name)
	if err != nil {
		return d, false, fmt.Errorf("failed to create division %s: %w", ocdID, err)
	}
	d.ID, _ = res.LastInsertId()
	d.Name = name
	return d, true, nil
}

// GetOrCreateOffice returns the office called name in a division, creating
// it when missing.
func (h handle) GetOrCreateOffice(ctx context.Context, divisionID int64, name string) (civic.Office, bool, error) {
	o := civic.Office{DivisionID: divisionID, Name: name}
	err := h.x.QueryRowContext(ctx,
		`SELECT id FROM offices WHERE division_id = ? AND name = ?`, divisionID, name,
	).Scan(&o.ID)
	if err == nil {
		return o, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return o, false, fmt.Errorf("failed to load office %q: %w", name, err)
	}

	res, err := h.x.ExecContext(ctx,
		`INSERT INTO offices (division_id, name) VALUES (?, ?)`, divisionID, name)
	if err != nil {
		return o, false, fmt.Errorf("failed to create office %q: %w", name, err)
	}
	o.ID, _ = res.LastInsertId()
	return o, true, nil
}

// =============================================================================
// OFFICIALS
// =============================================================================

// CreateOfficial inserts an official and sets its ID.
func (h handle) CreateOfficial(ctx context.Context, o *civic.Official) error {
	res, err := h.x.ExecContext(ctx, `
		INSERT INTO officials (name, party, in_office, meeting_info_source, office_id)
		VALUES (?, ?, ?, ?, ?)
	`, o.Name, o.Party, boolInt(o.InOffice), o.MeetingInfoSource, o.OfficeID)
	if err != nil {
		return fmt.Errorf("failed to create official %q: %w", o.Name, err)
	}
	o.ID, _ = res.LastInsertId()
	return nil
}

// GetOrCreateOfficial returns the official with name in officeID, creating
// one with party when missing. The bool reports whether a row was created.
func (h handle) GetOrCreateOfficial(ctx context.Context, name string, officeID int64, party string) (civic.Official, bool, error) {
	var id int64
	err := h.x.QueryRowContext(ctx,
		`SELECT id FROM officials WHERE name = ? AND office_id = ?`, name, officeID,
	).Scan(&id)
	if err == nil {
		o, err := h.GetOfficial(ctx, id)
		if err != nil {
			return civic.Official{}, false, err
		}
		return *o, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return civic.Official{}, false, fmt.Errorf("failed to load official %q: %w", name, err)
	}

	o := civic.Official{Name: name, Party: party, InOffice: true, OfficeID: officeID}
	if err := h.CreateOfficial(ctx, &o); err != nil {
		return civic.Official{}, false, err
	}
	return o, true, nil
}

const officialColumns = `
	o.id, o.name, o.party, o.in_office, o.meeting_info_source, o.office_id,
	f.name, d.id, d.ocd_id, d.name`

const officialJoins = `
	FROM officials o
	JOIN offices f ON f.id = o.office_id
	JOIN divisions d ON d.id = f.division_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOfficial(r rowScanner) (civic.Official, error) {
	var (
		o        civic.Official
		inOffice int
		office   civic.Office
		division civic.Division
	)
	if err := r.Scan(&o.ID, &o.Name, &o.Party, &inOffice, &o.MeetingInfoSource, &o.OfficeID,
		&office.Name, &division.ID, &division.OCDID, &division.Name); err != nil {
		return o, err
	}
	o.InOffice = inOffice != 0
	office.ID = o.OfficeID
	office.DivisionID = division.ID
	office.Division = &division
	o.Office = &office
	return o, nil
}

// GetOfficial loads an official with office, division, contact data and
// meetings (with sources).
func (h handle) GetOfficial(ctx context.Context, id int64) (*civic.Official, error) {
	row := h.x.QueryRowContext(ctx, `SELECT `+officialColumns+officialJoins+` WHERE o.id = ?`, id)
	o, err := scanOfficial(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("official %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load official %d: %w", id, err)
	}

	list := []civic.Official{o}
	if err := h.LoadDetails(ctx, list, DetailAll); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// OfficialExists reports whether an official with id exists.
func (h handle) OfficialExists(ctx context.Context, id int64) (bool, error) {
	var n int
	if err := h.x.QueryRowContext(ctx, `SELECT COUNT(*) FROM officials WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check official %d: %w", id, err)
	}
	return n > 0, nil
}

// UpdateMeetingInfoSource replaces the official's meeting info source text.
func (h handle) UpdateMeetingInfoSource(ctx context.Context, officialID int64, text string) error {
	res, err := h.x.ExecContext(ctx,
		`UPDATE officials SET meeting_info_source = ? WHERE id = ?`, text, officialID)
	if err != nil {
		return fmt.Errorf("failed to update meeting info source for official %d: %w", officialID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("official %d: %w", officialID, ErrNotFound)
	}
	return nil
}

// =============================================================================
// CONTACT DATA
// =============================================================================

// AddAddress attaches a mailing address to an official.
func (h handle) AddAddress(ctx context.Context, a *civic.Address) error {
	res, err := h.x.ExecContext(ctx, `
		INSERT INTO addresses (official_id, line1, line2, line3, location_name, city, state, postal_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.OfficialID, a.Line1, a.Line2, a.Line3, a.LocationName, a.City, a.State, a.PostalCode)
	if err != nil {
		return fmt.Errorf("failed to add address: %w", err)
	}
	a.ID, _ = res.LastInsertId()
	return nil
}

// AddChannel attaches a social media channel to an official.
func (h handle) AddChannel(ctx context.Context, c *civic.SocialMediaChannel) error {
	if !c.Type.Valid() {
		return fmt.Errorf("unknown channel type %q", c.Type)
	}
	res, err := h.x.ExecContext(ctx,
		`INSERT INTO social_media_channels (official_id, channel_id, channel_type) VALUES (?, ?, ?)`,
		c.OfficialID, c.ChannelID, string(c.Type))
	if err != nil {
		return fmt.Errorf("failed to add channel: %w", err)
	}
	c.ID, _ = res.LastInsertId()
	return nil
}

// AddEmail attaches an email address to an official.
func (h handle) AddEmail(ctx context.Context, e *civic.Email) error {
	res, err := h.x.ExecContext(ctx,
		`INSERT INTO emails (official_id, address) VALUES (?, ?)`, e.OfficialID, e.Address)
	if err != nil {
		return fmt.Errorf("failed to add email: %w", err)
	}
	e.ID, _ = res.LastInsertId()
	return nil
}

// AddWebsite attaches a website to an official.
func (h handle) AddWebsite(ctx context.Context, w *civic.Website) error {
	res, err := h.x.ExecContext(ctx,
		`INSERT INTO websites (official_id, url) VALUES (?, ?)`, w.OfficialID, w.URL)
	if err != nil {
		return fmt.Errorf("failed to add website: %w", err)
	}
	w.ID, _ = res.LastInsertId()
	return nil
}

// AddPhone attaches a phone number to an official.
func (h handle) AddPhone(ctx context.Context, p *civic.Phone) error {
	res, err := h.x.ExecContext(ctx,
		`INSERT INTO phones (official_id, phone) VALUES (?, ?)`, p.OfficialID, p.Number)
	if err != nil {
		return fmt.Errorf("failed to add phone: %w", err)
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

// =============================================================================
// BATCH DETAIL LOADING
// =============================================================================

// Detail selects which related records LoadDetails fetches.
type Detail uint8

const (
	DetailMeetings Detail = 1 << iota
	DetailChannels
	DetailPhones
	DetailEmails
	DetailAddresses
	DetailWebsites

	DetailAll = DetailMeetings | DetailChannels | DetailPhones | DetailEmails | DetailAddresses | DetailWebsites
)

// LoadDetails fills the requested related records on every official in
// list with one query per relation.
func (h handle) LoadDetails(ctx context.Context, list []civic.Official, want Detail) error {
	if len(list) == 0 {
		return nil
	}
	index := make(map[int64]*civic.Official, len(list))
	ids := make([]any, 0, len(list))
	for i := range list {
		index[list[i].ID] = &list[i]
		ids = append(ids, list[i].ID)
	}
	in := placeholders(len(ids))

	if want&DetailMeetings != 0 {
		meetings, err := h.meetingsWhere(ctx, `official_id IN (`+in+`)`, ids...)
		if err != nil {
			return err
		}
		for _, m := range meetings {
			if o := index[m.OfficialID]; o != nil {
				o.Meetings = append(o.Meetings, m)
			}
		}
	}

	if want&DetailChannels != 0 {
		err := h.eachRow(ctx, `SELECT id, official_id, channel_id, channel_type FROM social_media_channels
			WHERE official_id IN (`+in+`) ORDER BY id`, ids, func(r rowScanner) error {
			var c civic.SocialMediaChannel
			var typ string
			if err := r.Scan(&c.ID, &c.OfficialID, &c.ChannelID, &typ); err != nil {
				return err
			}
			c.Type = civic.ChannelType(typ)
			index[c.OfficialID].Channels = append(index[c.OfficialID].Channels, c)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to load channels: %w", err)
		}
	}

	if want&DetailPhones != 0 {
		err := h.eachRow(ctx, `SELECT id, official_id, phone FROM phones
			WHERE official_id IN (`+in+`) ORDER BY id`, ids, func(r rowScanner) error {
			var p civic.Phone
			if err := r.Scan(&p.ID, &p.OfficialID, &p.Number); err != nil {
				return err
			}
			index[p.OfficialID].Phones = append(index[p.OfficialID].Phones, p)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to load phones: %w", err)
		}
	}

	if want&DetailEmails != 0 {
		err := h.eachRow(ctx, `SELECT id, official_id, address FROM emails
			WHERE official_id IN (`+in+`) ORDER BY id`, ids, func(r rowScanner) error {
			var e civic.Email
			if err := r.Scan(&e.ID, &e.OfficialID, &e.Address); err != nil {
				return err
			}
			index[e.OfficialID].Emails = append(index[e.OfficialID].Emails, e)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to load emails: %w", err)
		}
	}

	if want&DetailAddresses != 0 {
		err := h.eachRow(ctx, `SELECT id, official_id, line1, line2, line3, location_name, city, state, postal_code
			FROM addresses WHERE official_id IN (`+in+`) ORDER BY id`, ids, func(r rowScanner) error {
			var a civic.Address
			if err := r.Scan(&a.ID, &a.OfficialID, &a.Line1, &a.Line2, &a.Line3, &a.LocationName,
				&a.City, &a.State, &a.PostalCode); err != nil {
				return err
			}
			index[a.OfficialID].Addresses = append(index[a.OfficialID].Addresses, a)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to load addresses: %w", err)
		}
	}

	if want&DetailWebsites != 0 {
		err := h.eachRow(ctx, `SELECT id, official_id, url FROM websites
			WHERE official_id IN (`+in+`) ORDER BY id`, ids, func(r rowScanner) error {
			var w civic.Website
			if err := r.Scan(&w.ID, &w.OfficialID, &w.URL); err != nil {
				return err
			}
			index[w.OfficialID].Websites = append(index[w.OfficialID].Websites, w)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to load websites: %w", err)
		}
	}

	return nil
}

// eachRow runs query and calls fn for every row. Rows are fully drained
// before returning so the single connection is free for the next query.
func (h handle) eachRow(ctx context.Context, query string, args []any, fn func(rowScanner) error) error {
	rows, err := h.x.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
