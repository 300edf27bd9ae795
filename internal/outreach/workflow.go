package outreach

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"townhall/internal/civic"
	"townhall/internal/logging"
	"townhall/internal/store"
)

// ErrNoUser is returned when Submit is called without an acting user.
var ErrNoUser = errors.New("outreach: no acting user")

// Store is the persistence the workflow runs against.
type Store interface {
	Source
	OfficialExists(ctx context.Context, id int64) (bool, error)
	WithTx(ctx context.Context, fn func(tx *store.Tx) error) error
	Now() time.Time
}

// slowSubmit is the submit duration above which a warning is logged.
const slowSubmit = time.Second

// Workflow coordinates the call-a-representative page.
type Workflow struct {
	store    Store
	selector *Selector
}

// NewWorkflow wires a workflow to its store and selector.
func NewWorkflow(st Store, sel *Selector) *Workflow {
	return &Workflow{store: st, selector: sel}
}

// Page is everything the call-a-representative page renders.
type Page struct {
	Representative  *civic.Official
	NextMeeting     FormResult[MeetingData]
	LastMeeting     FormResult[MeetingData]
	ContactAttempt  FormResult[ContactAttemptData]
	MeetingInfo     FormResult[MeetingInfoData]
	ContactAttempts []civic.ContactAttempt
}

// Valid reports whether all four forms validated.
func (p *Page) Valid() bool {
	return p.NextMeeting.Valid() && p.LastMeeting.Valid() &&
		p.ContactAttempt.Valid() && p.MeetingInfo.Valid()
}

// Outcome is the result of a submission. On success Saved is true and
// Message names the contacted representative; otherwise Page carries the
// bound forms with their errors for redisplay.
type Outcome struct {
	Saved          bool
	Message        string
	ContactAttempt *civic.ContactAttempt
	Meetings       []*civic.Meeting
	Page           *Page
}

// Display picks a representative and builds the unbound forms.
func (w *Workflow) Display(ctx context.Context) (*Page, error) {
	rep, err := w.selector.Pick(ctx)
	if err != nil {
		return nil, err
	}
	page := &Page{
		NextMeeting:    FormResult[MeetingData]{Form: NewForm(PrefixNextMeeting)},
		LastMeeting:    FormResult[MeetingData]{Form: NewForm(PrefixLastMeeting)},
		ContactAttempt: FormResult[ContactAttemptData]{Form: NewForm(PrefixContactAttempt)},
		MeetingInfo:    FormResult[MeetingInfoData]{Form: NewForm(PrefixMeetingInfoSource)},
	}
	page.ContactAttempt.Values["method"] = string(civic.MethodPhone)

	if err := w.attach(ctx, page, rep); err != nil {
		return nil, err
	}
	if rep != nil {
		id := strconv.FormatInt(rep.ID, 10)
		page.NextMeeting.Values["official"] = id
		page.LastMeeting.Values["official"] = id
		page.ContactAttempt.Values["official"] = id
		page.MeetingInfo.Values["id"] = id
		page.MeetingInfo.Values["meeting_info_source"] = rep.MeetingInfoSource
	}
	return page, nil
}

// Submit validates all four forms and, only when every one is valid, saves
// them in a single transaction: the contact attempt, each meeting whose date
// was filled, and the official's meeting info source.
func (w *Workflow) Submit(ctx context.Context, user *civic.User, v url.Values) (*Outcome, error) {
	if user == nil {
		return nil, ErrNoUser
	}
	timer := logging.StartTimer(logging.CategoryOutreach, "Workflow.Submit")
	defer timer.StopWithThreshold(slowSubmit)

	today := w.store.Now()
	page := &Page{
		NextMeeting:    BindMeeting(PrefixNextMeeting, v, today),
		LastMeeting:    BindMeeting(PrefixLastMeeting, v, today),
		ContactAttempt: BindContactAttempt(v),
		MeetingInfo:    BindMeetingInfo(v),
	}
	if err := w.checkOfficials(ctx, page); err != nil {
		return nil, err
	}

	if !page.Valid() {
		logging.OutreachDebug("Submission by user %d invalid; redisplaying", user.ID)
		rep, err := w.redisplayRepresentative(ctx, page)
		if err != nil {
			return nil, err
		}
		if err := w.attach(ctx, page, rep); err != nil {
			return nil, err
		}
		return &Outcome{Page: page}, nil
	}

	rep, err := w.store.GetOfficial(ctx, page.ContactAttempt.Cleaned.OfficialID)
	if err != nil {
		return nil, fmt.Errorf("failed to load contacted official: %w", err)
	}

	out := &Outcome{Saved: true}
	err = w.store.WithTx(ctx, func(tx *store.Tx) error {
		c := page.ContactAttempt.Cleaned
		attempt := &civic.ContactAttempt{
			OfficialID: c.OfficialID,
			UserID:     user.ID,
			Method:     c.Method,
			Contacted:  c.Contacted,
			Notes:      c.Notes,
		}
		if err := tx.CreateContactAttempt(ctx, attempt); err != nil {
			return err
		}
		out.ContactAttempt = attempt

		for _, f := range []FormResult[MeetingData]{page.NextMeeting, page.LastMeeting} {
			if !f.Cleaned.HasDate() {
				continue
			}
			m := f.Cleaned.Meeting()
			if err := tx.CreateMeeting(ctx, m); err != nil {
				return err
			}
			out.Meetings = append(out.Meetings, m)
		}

		info := page.MeetingInfo.Cleaned
		return tx.UpdateMeetingInfoSource(ctx, info.OfficialID, info.MeetingInfoSource)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save outreach submission: %w", err)
	}

	logging.Outreach("User %d contacted official %d by %s (meetings saved: %d)",
		user.ID, rep.ID, out.ContactAttempt.Method, len(out.Meetings))
	out.Message = fmt.Sprintf("You contacted %s.  Thanks! You can contact another representative using the form below.", rep.Name)
	return out, nil
}

// checkOfficials marks official fields that parse but name no official.
func (w *Workflow) checkOfficials(ctx context.Context, page *Page) error {
	known := map[int64]bool{}
	check := func(f *Form, field string, id int64) error {
		if id == 0 || f.Error(field) != "" {
			return nil
		}
		ok, seen := known[id]
		if !seen {
			var err error
			if ok, err = w.store.OfficialExists(ctx, id); err != nil {
				return err
			}
			known[id] = ok
		}
		if !ok {
			f.AddError(field, msgInvalidChoice)
		}
		return nil
	}

	for _, c := range []struct {
		form  *Form
		field string
		id    int64
	}{
		{&page.NextMeeting.Form, "official", page.NextMeeting.Cleaned.OfficialID},
		{&page.LastMeeting.Form, "official", page.LastMeeting.Cleaned.OfficialID},
		{&page.ContactAttempt.Form, "official", page.ContactAttempt.Cleaned.OfficialID},
		{&page.MeetingInfo.Form, "id", page.MeetingInfo.Cleaned.OfficialID},
	} {
		if err := check(c.form, c.field, c.id); err != nil {
			return err
		}
	}
	return nil
}

// redisplayRepresentative keeps the posted representative on an invalid
// submission when it still exists, and picks a fresh one otherwise.
func (w *Workflow) redisplayRepresentative(ctx context.Context, page *Page) (*civic.Official, error) {
	if page.ContactAttempt.Error("official") == "" {
		rep, err := w.store.GetOfficial(ctx, page.ContactAttempt.Cleaned.OfficialID)
		if err == nil {
			return rep, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		logging.OutreachWarn("Official %d is gone; picking a new representative", page.ContactAttempt.Cleaned.OfficialID)
	}
	return w.selector.Pick(ctx)
}

// attach sets the representative and its prior contact attempts.
func (w *Workflow) attach(ctx context.Context, page *Page, rep *civic.Official) error {
	page.Representative = rep
	page.ContactAttempts = []civic.ContactAttempt{}
	if rep == nil {
		return nil
	}
	attempts, err := w.store.ListContactAttempts(ctx, rep.ID)
	if err != nil {
		return err
	}
	if attempts != nil {
		page.ContactAttempts = attempts
	}
	return nil
}
