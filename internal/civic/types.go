// Package civic defines the records townhall tracks: political divisions,
// offices, the officials who hold them, their public meetings, and the
// contact attempts volunteers make to them.
package civic

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// TimeLayout is the wire and storage format for a meeting's time of day.
const TimeLayout = "15:04"

// Division is a political division identified by an Open Civic Data id.
type Division struct {
	ID    int64
	OCDID string
	Name  string
}

func (d Division) String() string { return d.Name }

// Office is a political office representing a division.
type Office struct {
	ID         int64
	DivisionID int64
	Name       string
	Division   *Division
}

func (o Office) String() string { return o.Name }

// Official is a person holding political office.
type Official struct {
	ID                int64
	Name              string
	Party             string
	InOffice          bool
	MeetingInfoSource string
	OfficeID          int64

	// Populated by the store when loading a full record.
	Office    *Office
	Addresses []Address
	Channels  []SocialMediaChannel
	Emails    []Email
	Websites  []Website
	Phones    []Phone
	Meetings  []Meeting
}

func (o Official) String() string { return o.Name }

// Slug is the URL fragment derived from the official's name.
func (o Official) Slug() string { return Slugify(o.Name) }

// Path is the canonical detail page path.
func (o Official) Path() string {
	return fmt.Sprintf("/officials/%d-%s/", o.ID, o.Slug())
}

// NextMeeting returns the earliest loaded meeting on or after today.
func (o Official) NextMeeting(today time.Time) *Meeting {
	day := Day(today)
	var next *Meeting
	for i := range o.Meetings {
		m := &o.Meetings[i]
		if m.Date.Before(day) {
			continue
		}
		if next == nil || m.Date.Before(next.Date) {
			next = m
		}
	}
	return next
}

// LastMeeting returns the latest loaded meeting strictly before today.
func (o Official) LastMeeting(today time.Time) *Meeting {
	day := Day(today)
	var last *Meeting
	for i := range o.Meetings {
		m := &o.Meetings[i]
		if !m.Date.Before(day) {
			continue
		}
		if last == nil || m.Date.After(last.Date) {
			last = m
		}
	}
	return last
}

// Address is a mailing address for an official.
type Address struct {
	ID           int64
	OfficialID   int64
	Line1        string
	Line2        string
	Line3        string
	LocationName string
	City         string
	State        string
	PostalCode   string
}

func (a Address) String() string {
	bits := []string{a.Line1}
	if a.Line2 != "" {
		bits = append(bits, a.Line2)
	}
	if a.Line3 != "" {
		bits = append(bits, a.Line3)
	}
	bits = append(bits, fmt.Sprintf("%s, %s %s", a.City, a.State, a.PostalCode))
	return strings.Join(bits, "\n")
}

// Email is an email address for an official.
type Email struct {
	ID         int64
	OfficialID int64
	Address    string
}

// Website is a website for an official.
type Website struct {
	ID         int64
	OfficialID int64
	URL        string
}

// Phone is a phone number for an official.
type Phone struct {
	ID         int64
	OfficialID int64
	Number     string
}

// MeetingType classifies how a public meeting is held.
type MeetingType string

const (
	MeetingInPerson  MeetingType = "in-person"
	MeetingTelephone MeetingType = "telephone"
	MeetingFacebook  MeetingType = "facebook"
	MeetingRadio     MeetingType = "radio"
)

// MeetingTypes lists the valid meeting types in display order.
var MeetingTypes = []MeetingType{MeetingInPerson, MeetingTelephone, MeetingFacebook, MeetingRadio}

var meetingTypeLabels = map[MeetingType]string{
	MeetingInPerson:  "In-person",
	MeetingTelephone: "Telephone",
	MeetingFacebook:  "Facebook",
	MeetingRadio:     "Radio",
}

// Valid reports whether t is a known meeting type.
func (t MeetingType) Valid() bool {
	_, ok := meetingTypeLabels[t]
	return ok
}

// Label is the human-readable name.
func (t MeetingType) Label() string { return meetingTypeLabels[t] }

// Meeting is a public meeting held by an official.
type Meeting struct {
	ID           int64
	OfficialID   int64
	Date         time.Time
	Time         string // HH:MM, empty when unknown
	Location     string
	Type         MeetingType // empty when unknown
	EventWebsite string
	Notes        string
	Sources      []Source
}

func (m Meeting) String() string {
	return fmt.Sprintf("meeting of official %d on %s", m.OfficialID, m.Date.Format(DateLayout))
}

// FieldsFromNotes extracts the key: value lines of the meeting notes.
func (m Meeting) FieldsFromNotes() map[string]string {
	return ParseNoteFields(m.Notes)
}

// ContactMethod is how a volunteer reached an official.
type ContactMethod string

const (
	MethodPhone ContactMethod = "phone"
	MethodEmail ContactMethod = "email"
)

// Valid reports whether m is a known contact method.
func (m ContactMethod) Valid() bool {
	return m == MethodPhone || m == MethodEmail
}

// Label is the human-readable name.
func (m ContactMethod) Label() string {
	switch m {
	case MethodPhone:
		return "Phone"
	case MethodEmail:
		return "Email"
	}
	return string(m)
}

// ContactAttempt records a volunteer contacting an official.
type ContactAttempt struct {
	ID         int64
	OfficialID int64
	UserID     int64
	Datetime   time.Time
	Method     ContactMethod
	Contacted  bool
	Notes      string

	UserEmail string // filled by listing queries for display
}

// User is a volunteer account identified by email.
type User struct {
	ID         int64
	Email      string
	FullName   string
	IsStaff    bool
	IsActive   bool
	DateJoined time.Time
}

// DisplayName is the full name if set, else the email.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

func (u User) String() string { return u.Email }

// NormalizeEmail lowercases the domain part of an address.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}
