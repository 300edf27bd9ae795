package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"townhall/internal/auth"
	"townhall/internal/civic"
	"townhall/internal/outreach"
	"townhall/internal/store"
)

// sourceForms is how many source URL inputs the add-meeting page offers.
const sourceForms = 3

// =============================================================================
// OFFICIALS
// =============================================================================

type indexPage struct {
	Officials []civic.Official
	Since     string
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	q := store.Officials()
	page := indexPage{}

	if raw, ok := r.URL.Query()["without_meetings_since"]; ok {
		since, err := civic.ParseDate(strings.TrimSpace(raw[0]))
		if err != nil {
			h.badRequest(w, r, "without_meetings_since must be a date formatted YYYY-MM-DD.")
			return
		}
		q = q.WithoutMeetingsSince(since)
		page.Since = since.Format(civic.DateLayout)
	}

	list, err := h.store.ListOfficials(r.Context(), q.OrderByDivisionName())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.LoadDetails(r.Context(), list, store.DetailMeetings); err != nil {
		h.fail(w, r, err)
		return
	}
	page.Officials = list
	h.render(w, r, http.StatusOK, "index", page)
}

// officialFromPath loads the official named by the {ref} path segment,
// which is "<id>-<slug>". Only the id is significant.
func (h *Handler) officialFromPath(r *http.Request) (*civic.Official, error) {
	ref := r.PathValue("ref")
	idPart, _, _ := strings.Cut(ref, "-")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("official reference %q: %w", ref, store.ErrNotFound)
	}
	return h.store.GetOfficial(r.Context(), id)
}

type detailPage struct {
	Official *civic.Official
}

func (h *Handler) officialDetail(w http.ResponseWriter, r *http.Request) {
	o, err := h.officialFromPath(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "official_detail", detailPage{Official: o})
}

// =============================================================================
// ADD MEETING
// =============================================================================

type addMeetingPage struct {
	Official *civic.Official
	Form     outreach.Form
	Sources  []outreach.Form
}

func newSourceForms() []outreach.Form {
	forms := make([]outreach.Form, sourceForms)
	for i := range forms {
		forms[i] = outreach.NewForm(fmt.Sprintf("source-%d", i))
	}
	return forms
}

func (h *Handler) addMeetingForm(w http.ResponseWriter, r *http.Request) {
	o, err := h.officialFromPath(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	form := outreach.NewForm("meeting")
	form.Values["official"] = strconv.FormatInt(o.ID, 10)
	h.render(w, r, http.StatusOK, "add_meeting", addMeetingPage{Official: o, Form: form, Sources: newSourceForms()})
}

func (h *Handler) addMeeting(w http.ResponseWriter, r *http.Request) {
	o, err := h.officialFromPath(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.badRequest(w, r, "Malformed form submission.")
		return
	}

	meeting := outreach.BindMeeting("meeting", r.PostForm, h.store.Now())
	if meeting.Value("date") == "" {
		meeting.AddError("date", "This field is required.")
	}
	if meeting.Cleaned.OfficialID != o.ID {
		meeting.AddError("official", "Select a valid choice. That choice is not one of the available choices.")
	}

	sources := newSourceForms()
	valid := meeting.Valid()
	for i := range sources {
		sources[i].Bind(r.PostForm, "url")
		if u := sources[i].Value("url"); u != "" && !outreach.ValidURL(u) {
			sources[i].AddError("url", "Enter a valid URL.")
			valid = false
		}
	}

	if !valid {
		h.render(w, r, http.StatusOK, "add_meeting", addMeetingPage{Official: o, Form: meeting.Form, Sources: sources})
		return
	}

	err = h.store.WithTx(r.Context(), func(tx *store.Tx) error {
		m := meeting.Cleaned.Meeting()
		if err := tx.CreateMeeting(r.Context(), m); err != nil {
			return err
		}
		for _, f := range sources {
			u := f.Value("url")
			if u == "" {
				continue
			}
			if err := tx.AddSource(r.Context(), &civic.Source{URL: u, Owner: civic.MeetingOwner(m.ID)}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, o.Path(), http.StatusFound)
}

// =============================================================================
// CALL A REPRESENTATIVE
// =============================================================================

func (h *Handler) callUsRepForm(w http.ResponseWriter, r *http.Request) {
	page, err := h.workflow.Display(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "call_us_rep", page)
}

func (h *Handler) callUsRep(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.badRequest(w, r, "Malformed form submission.")
		return
	}
	out, err := h.workflow.Submit(r.Context(), auth.UserFromContext(r.Context()), r.PostForm)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !out.Saved {
		h.render(w, r, http.StatusOK, "call_us_rep", out.Page)
		return
	}
	setFlash(w, out.Message)
	http.Redirect(w, r, "/call-us-rep/", http.StatusFound)
}

// =============================================================================
// ACCOUNTS
// =============================================================================

type accountPage struct {
	Email string
	Next  string
	Error string
}

func (h *Handler) registerForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "register", accountPage{Next: r.URL.Query().Get("next")})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	h.requestCode(w, r, "register", h.auth.Register)
}

func (h *Handler) loginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login", accountPage{Next: r.URL.Query().Get("next")})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	h.requestCode(w, r, "login", h.auth.RequestLogin)
}

func (h *Handler) requestCode(w http.ResponseWriter, r *http.Request, tmpl string,
	send func(ctx context.Context, email, next string) error) {
	if err := r.ParseForm(); err != nil {
		h.badRequest(w, r, "Malformed form submission.")
		return
	}
	page := accountPage{
		Email: strings.TrimSpace(r.PostForm.Get("email")),
		Next:  r.URL.Query().Get("next"),
	}

	err := send(r.Context(), page.Email, page.Next)
	switch {
	case err == nil:
		h.render(w, r, http.StatusOK, "sent_mail", page)
	case errors.Is(err, auth.ErrInvalidEmail):
		page.Error = "Enter a valid email address."
		h.render(w, r, http.StatusOK, tmpl, page)
	case errors.Is(err, auth.ErrUnknownEmail):
		page.Error = "No account uses that email address. Sign up first."
		h.render(w, r, http.StatusOK, tmpl, page)
	default:
		h.fail(w, r, err)
	}
}

func (h *Handler) loginCode(w http.ResponseWriter, r *http.Request) {
	login, err := h.auth.Redeem(r.Context(), r.PathValue("code"))
	if errors.Is(err, store.ErrCodeInvalid) {
		h.render(w, r, http.StatusNotFound, "error", errorPage{
			"Login link expired",
			"That login link is invalid or has already been used. Request a new one.",
		})
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.auth.SetCookie(w, login)
	http.Redirect(w, r, login.Next, http.StatusFound)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), h.auth.Token(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	h.auth.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusFound)
}
