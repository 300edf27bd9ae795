package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"townhall/internal/civic"
)

// OfficialQuery composes the derived predicates over officials. It is an
// immutable value: every method returns a new query and leaves the
// receiver untouched.
type OfficialQuery struct {
	conds  []string
	args   []any
	order  string
	usReps bool
}

// Officials returns an empty query matching every official.
func Officials() OfficialQuery {
	return OfficialQuery{}
}

func (q OfficialQuery) where(cond string, args ...any) OfficialQuery {
	out := q
	out.conds = append(append([]string(nil), q.conds...), cond)
	out.args = append(append([]any(nil), q.args...), args...)
	return out
}

// WithoutMeetingsSince keeps officials with no meeting dated on or after
// since.
func (q OfficialQuery) WithoutMeetingsSince(since time.Time) OfficialQuery {
	return q.where(
		`NOT EXISTS (SELECT 1 FROM meetings m WHERE m.official_id = o.id AND m.date >= ?)`,
		since.Format(civic.DateLayout),
	)
}

// WithoutMeetings keeps officials with no meetings at all.
func (q OfficialQuery) WithoutMeetings() OfficialQuery {
	return q.where(`NOT EXISTS (SELECT 1 FROM meetings m WHERE m.official_id = o.id)`)
}

// ThroughTwitter keeps officials whose meeting info source mentions social
// media or twitter, ignoring case.
func (q OfficialQuery) ThroughTwitter() OfficialQuery {
	return q.where(`(LOWER(o.meeting_info_source) LIKE '%social media%' OR LOWER(o.meeting_info_source) LIKE '%twitter%')`)
}

// WithoutContactAttempts keeps officials nobody has tried to contact.
func (q OfficialQuery) WithoutContactAttempts() OfficialQuery {
	return q.where(`NOT EXISTS (SELECT 1 FROM contact_attempts c WHERE c.official_id = o.id)`)
}

// USReps keeps officials whose division is a US House district.
// SQLite has no REGEXP, so the match runs after the rows are read.
func (q OfficialQuery) USReps() OfficialQuery {
	out := q
	out.usReps = true
	return out
}

// OrderByContactAttempts orders by the number of contact attempts.
func (q OfficialQuery) OrderByContactAttempts(desc bool) OfficialQuery {
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	out := q
	out.order = `(SELECT COUNT(*) FROM contact_attempts c WHERE c.official_id = o.id) ` + dir + `, o.id`
	return out
}

// OrderByDivisionName orders by division name, then official name.
func (q OfficialQuery) OrderByDivisionName() OfficialQuery {
	out := q
	out.order = `d.name, o.name, o.id`
	return out
}

func (q OfficialQuery) sql() (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT ` + officialColumns + officialJoins)
	if len(q.conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(q.conds, " AND "))
	}
	b.WriteString(" ORDER BY ")
	if q.order != "" {
		b.WriteString(q.order)
	} else {
		b.WriteString("o.id")
	}
	return b.String(), q.args
}

// ListOfficials runs q and returns the matching officials with office and
// division populated. Related records are not loaded; see LoadDetails.
func (h handle) ListOfficials(ctx context.Context, q OfficialQuery) ([]civic.Official, error) {
	query, args := q.sql()

	var out []civic.Official
	err := h.eachRow(ctx, query, args, func(r rowScanner) error {
		o, err := scanOfficial(r)
		if err != nil {
			return err
		}
		if q.usReps && !civic.IsUSHouseDistrict(o.Office.Division.OCDID) {
			return nil
		}
		out = append(out, o)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list officials: %w", err)
	}
	return out, nil
}

// EligibleRepresentativeIDs returns the ids of US House representatives with
// no meetings and no contact attempts, in ascending order.
func (h handle) EligibleRepresentativeIDs(ctx context.Context) ([]int64, error) {
	list, err := h.ListOfficials(ctx, Officials().USReps().WithoutMeetings().WithoutContactAttempts())
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(list))
	for i, o := range list {
		ids[i] = o.ID
	}
	return ids, nil
}

// CountContactAttempts returns the number of contact attempts per official
// for the given ids.
func (h handle) CountContactAttempts(ctx context.Context, ids []int64) (map[int64]int, error) {
	counts := make(map[int64]int, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	err := h.eachRow(ctx, `SELECT official_id, COUNT(*) FROM contact_attempts
		WHERE official_id IN (`+placeholders(len(ids))+`) GROUP BY official_id`, args,
		func(r rowScanner) error {
			var id int64
			var n int
			if err := r.Scan(&id, &n); err != nil {
				return err
			}
			counts[id] = n
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to count contact attempts: %w", err)
	}
	return counts, nil
}
