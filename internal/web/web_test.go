package web

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"townhall/internal/auth"
	"townhall/internal/civic"
	"townhall/internal/outreach"
	"townhall/internal/store"
)

var testToday = time.Date(2017, 6, 15, 12, 0, 0, 0, time.UTC)

type harness struct {
	t      *testing.T
	store  *store.Store
	auth   *auth.Service
	mux    http.Handler
	user   *civic.User
	cookie *http.Cookie
	links  []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "web.db"), store.WithClock(func() time.Time { return testToday }))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	h := &harness{t: t, store: st}
	mailer := auth.MailerFunc(func(_ context.Context, _, link string) error {
		h.links = append(h.links, link)
		return nil
	})
	h.auth = auth.NewService(st, mailer, auth.Config{BaseURL: "http://example.test"})
	wf := outreach.NewWorkflow(st, outreach.NewSelector(st, rand.New(rand.NewSource(7))))

	handler, err := New(st, wf, h.auth)
	require.NoError(t, err)
	mux := http.NewServeMux()
	handler.Register(mux)
	h.mux = h.auth.Middleware(mux)
	return h
}

// signIn creates a volunteer with a live session.
func (h *harness) signIn() {
	ctx := context.Background()
	h.user = &civic.User{Email: "volunteer@example.org", IsActive: true}
	require.NoError(h.t, h.store.CreateUser(ctx, h.user))
	require.NoError(h.t, h.store.CreateSession(ctx, store.Session{
		Token: "tok", UserID: h.user.ID, ExpiresAt: testToday.Add(time.Hour),
	}))
	h.cookie = &http.Cookie{Name: "townhall_session", Value: "tok"}
}

func (h *harness) official(ocdID, name string) civic.Official {
	ctx := context.Background()
	d, _, err := h.store.GetOrCreateDivision(ctx, ocdID, name+" district")
	require.NoError(h.t, err)
	office, _, err := h.store.GetOrCreateOffice(ctx, d.ID, "United States House of Representatives")
	require.NoError(h.t, err)
	o := civic.Official{Name: name, Party: "Independent", OfficeID: office.ID, InOffice: true}
	require.NoError(h.t, h.store.CreateOfficial(ctx, &o))
	return o
}

func (h *harness) do(method, target string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)
	return rec
}

func parse(t *testing.T, rec *httptest.ResponseRecorder) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	return doc
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func byTag(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.Data == tag }
}

func byClass(class string) func(*html.Node) bool {
	return func(n *html.Node) bool { return hasClass(n, class) }
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// =============================================================================
// OFFICIAL LIST
// =============================================================================

func TestIndex_ListsByDivisionName(t *testing.T) {
	h := newHarness(t)
	h.official("ocd-division/country:us/state:wy/cd:1", "Zed")
	h.official("ocd-division/country:us/state:al/cd:1", "Amy")

	rec := h.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rows := findAll(findAll(parse(t, rec), byTag("tbody"))[0], byTag("tr"))
	require.Len(t, rows, 2)
	assert.Contains(t, text(rows[0]), "Amy")
	assert.Contains(t, text(rows[1]), "Zed")
}

func TestIndex_WithoutMeetingsSince(t *testing.T) {
	h := newHarness(t)
	a := h.official("ocd-division/country:us/state:ky/cd:1", "Met Recently")
	h.official("ocd-division/country:us/state:ky/cd:2", "Never Met")
	d, err := civic.ParseDate("2017-06-01")
	require.NoError(t, err)
	require.NoError(t, h.store.CreateMeeting(context.Background(), &civic.Meeting{OfficialID: a.ID, Date: d}))

	rec := h.do(http.MethodGet, "/?without_meetings_since=2017-01-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Never Met")
	assert.NotContains(t, body, "Met Recently")

	rec = h.do(http.MethodGet, "/?without_meetings_since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "without_meetings_since")
}

// =============================================================================
// OFFICIAL DETAIL AND ADD MEETING
// =============================================================================

func TestDetail_RequiresLogin(t *testing.T) {
	h := newHarness(t)
	o := h.official("ocd-division/country:us/state:ky/cd:5", "Harold Rogers")

	rec := h.do(http.MethodGet, o.Path(), nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/accounts/login/?next="))
}

func TestDetail_Renders(t *testing.T) {
	h := newHarness(t)
	h.signIn()
	ctx := context.Background()
	o := h.official("ocd-division/country:us/state:ky/cd:5", "Harold Rogers")
	require.NoError(t, h.store.AddChannel(ctx, &civic.SocialMediaChannel{OfficialID: o.ID, ChannelID: "RepHalRogers", Type: civic.ChannelTwitter}))
	m := &civic.Meeting{OfficialID: o.ID, Date: testToday.AddDate(0, 1, 0), Notes: "Host: Town of Hazard"}
	require.NoError(t, h.store.CreateMeeting(ctx, m))

	rec := h.do(http.MethodGet, o.Path(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := parse(t, rec)

	channels := findAll(doc, byClass("channel"))
	require.Len(t, channels, 1)
	assert.Equal(t, "https://twitter.com/RepHalRogers", attr(channels[0], "href"))
	assert.Equal(t, "Twitter", text(channels[0]))
	assert.Contains(t, text(doc), "Town of Hazard")
	assert.Contains(t, text(doc), "No past meeting recorded.")

	rec = h.do(http.MethodGet, "/officials/999-nobody/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddMeeting(t *testing.T) {
	h := newHarness(t)
	h.signIn()
	o := h.official("ocd-division/country:us/state:ky/cd:5", "Harold Rogers")
	id := strconv.FormatInt(o.ID, 10)

	rec := h.do(http.MethodGet, o.Path()+"add-meeting/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	bad := url.Values{"meeting-official": {id}, "source-0-url": {"nope"}}
	rec = h.do(http.MethodPost, o.Path()+"add-meeting/", bad)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, findAll(parse(t, rec), byClass("error")), 2, "date required and bad source")

	good := url.Values{
		"meeting-official":     {id},
		"meeting-date":         {"2017-02-20"},
		"meeting-meeting_type": {"telephone"},
		"source-0-url":         {"https://example.org/announcement"},
		"source-2-url":         {"https://example.org/recap"},
	}
	rec = h.do(http.MethodPost, o.Path()+"add-meeting/", good)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, o.Path(), rec.Header().Get("Location"))

	meetings, err := h.store.ListMeetings(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, meetings, 1)
	assert.Equal(t, civic.MeetingTelephone, meetings[0].Type)
	assert.Len(t, meetings[0].Sources, 2)
}

// =============================================================================
// CALL A REPRESENTATIVE
// =============================================================================

func TestCallUsRep_EmptyState(t *testing.T) {
	h := newHarness(t)
	h.signIn()

	rec := h.do(http.MethodGet, "/call-us-rep/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, findAll(parse(t, rec), byClass("empty")), 1)
}

func TestCallUsRep_SubmitAndFlash(t *testing.T) {
	h := newHarness(t)
	h.signIn()
	o := h.official("ocd-division/country:us/state:ky/cd:5", "Harold Rogers")
	id := strconv.FormatInt(o.ID, 10)

	rec := h.do(http.MethodGet, "/call-us-rep/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := parse(t, rec)
	assert.Contains(t, text(findAll(doc, byTag("h1"))[0]), "Harold Rogers")
	hidden := findAll(doc, func(n *html.Node) bool { return attr(n, "name") == "contact_attempt-method" })
	require.Len(t, hidden, 1)
	assert.Equal(t, "phone", attr(hidden[0], "value"))

	form := url.Values{
		"next_meeting-official":                   {id},
		"last_meeting-official":                   {id},
		"contact_attempt-official":                {id},
		"contact_attempt-method":                  {"phone"},
		"contact_attempt-contacted":               {"on"},
		"meeting_info_source-id":                  {id},
		"meeting_info_source-meeting_info_source": {"Newsletter"},
	}
	rec = h.do(http.MethodPost, "/call-us-rep/", form)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/call-us-rep/", rec.Header().Get("Location"))

	var flash *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == flashCookie {
			flash = c
		}
	}
	require.NotNil(t, flash)

	rec = h.do(http.MethodGet, "/call-us-rep/", nil, flash)
	require.Equal(t, http.StatusOK, rec.Code)
	alerts := findAll(parse(t, rec), byClass("alert-success"))
	require.Len(t, alerts, 1)
	assert.Contains(t, text(alerts[0]), "You contacted Harold Rogers.")

	attempts, err := h.store.ListContactAttempts(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, h.user.ID, attempts[0].UserID)
}

func TestCallUsRep_AnonymousPostSavesNothing(t *testing.T) {
	h := newHarness(t)
	o := h.official("ocd-division/country:us/state:ky/cd:5", "Harold Rogers")
	id := strconv.FormatInt(o.ID, 10)

	form := url.Values{
		"next_meeting-official":                   {id},
		"next_meeting-date":                       {"2017-07-04"},
		"last_meeting-official":                   {id},
		"contact_attempt-official":                {id},
		"contact_attempt-method":                  {"phone"},
		"contact_attempt-contacted":               {"on"},
		"meeting_info_source-id":                  {id},
		"meeting_info_source-meeting_info_source": {"Newsletter"},
	}
	rec := h.do(http.MethodPost, "/call-us-rep/", form)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/accounts/login/?next="))

	ctx := context.Background()
	attempts, err := h.store.ListContactAttempts(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, attempts)
	meetings, err := h.store.ListMeetings(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, meetings)
	got, err := h.store.GetOfficial(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, got.MeetingInfoSource)
}

func TestCallUsRep_InvalidRedisplays(t *testing.T) {
	h := newHarness(t)
	h.signIn()
	o := h.official("ocd-division/country:us/state:ky/cd:5", "Harold Rogers")
	id := strconv.FormatInt(o.ID, 10)

	form := url.Values{
		"next_meeting-official":    {id},
		"next_meeting-date":        {"2017-07-04"},
		"last_meeting-official":    {id},
		"contact_attempt-official": {id},
		"contact_attempt-method":   {"carrier-pigeon"},
		"meeting_info_source-id":   {id},
	}
	rec := h.do(http.MethodPost, "/call-us-rep/", form)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := parse(t, rec)
	assert.NotEmpty(t, findAll(doc, byClass("error")))

	dates := findAll(doc, func(n *html.Node) bool { return attr(n, "name") == "next_meeting-date" })
	require.Len(t, dates, 1)
	assert.Equal(t, "2017-07-04", attr(dates[0], "value"))

	n, err := h.store.CountMeetings(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestRegisterAndLogin(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/accounts/register/?next=/call-us-rep/", url.Values{"email": {"new@example.org"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Check your email")
	require.Len(t, h.links, 1)

	path := strings.TrimPrefix(h.links[0], "http://example.test")
	rec = h.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/call-us-rep/", rec.Header().Get("Location"))

	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "townhall_session" {
			session = c
		}
	}
	require.NotNil(t, session)

	rec = h.do(http.MethodGet, "/call-us-rep/", nil, session)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The link only works once.
	rec = h.do(http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodPost, "/accounts/logout/", url.Values{}, session)
	assert.Equal(t, http.StatusFound, rec.Code)
	rec = h.do(http.MethodGet, "/call-us-rep/", nil, session)
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestLogin_UnknownEmail(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/accounts/login/", url.Values{"email": {"ghost@example.org"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, findAll(parse(t, rec), byClass("error")), 1)
	assert.Empty(t, h.links)
}
