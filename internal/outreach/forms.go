package outreach

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"townhall/internal/civic"
)

// Form prefixes. Posted field names are "<prefix>-<field>".
const (
	PrefixNextMeeting       = "next_meeting"
	PrefixLastMeeting       = "last_meeting"
	PrefixContactAttempt    = "contact_attempt"
	PrefixMeetingInfoSource = "meeting_info_source"
)

// Messages shown next to invalid fields.
const (
	msgInvalidChoice = "Select a valid choice. That choice is not one of the available choices."
	msgRequired      = "This field is required."
	msgInvalidDate   = "Enter a valid date."
	msgInvalidTime   = "Enter a valid time."
	msgInvalidURL    = "Enter a valid URL."
	msgNextInPast    = "The next meeting can't be in the past."
	msgLastInFuture  = "The last meeting can't be in the future."
)

// Form holds the raw values and field errors of one prefixed sub-form.
type Form struct {
	Prefix string
	Values map[string]string
	Errors map[string]string
}

// NewForm returns an empty form whose fields are posted under prefix.
func NewForm(prefix string) Form {
	return Form{Prefix: prefix, Values: map[string]string{}, Errors: map[string]string{}}
}

// Name is the posted name of field.
func (f Form) Name(field string) string { return f.Prefix + "-" + field }

// Value is the bound or initial value of field.
func (f Form) Value(field string) string { return f.Values[field] }

// Error is the validation message for field, if any.
func (f Form) Error(field string) string { return f.Errors[field] }

// Valid reports whether the form has no errors.
func (f Form) Valid() bool { return len(f.Errors) == 0 }

// Bind reads fields from posted values, trimming whitespace.
func (f *Form) Bind(v url.Values, fields ...string) {
	for _, field := range fields {
		f.Values[field] = strings.TrimSpace(v.Get(f.Name(field)))
	}
}

// AddError records msg against field unless it already has an error.
func (f *Form) AddError(field, msg string) {
	if _, ok := f.Errors[field]; !ok {
		f.Errors[field] = msg
	}
}

// FormResult is a bound sub-form: the raw form plus, when valid, its
// cleaned data.
type FormResult[T any] struct {
	Form
	Cleaned T
}

// MeetingData is the cleaned content of a meeting form.
type MeetingData struct {
	OfficialID   int64
	Date         time.Time // zero when left blank
	Time         string
	Location     string
	Type         civic.MeetingType
	EventWebsite string
	Notes        string
}

// HasDate reports whether a date was entered; only dated meetings are saved.
func (d MeetingData) HasDate() bool { return !d.Date.IsZero() }

// Meeting converts the data into a record ready to insert.
func (d MeetingData) Meeting() *civic.Meeting {
	return &civic.Meeting{
		OfficialID:   d.OfficialID,
		Date:         d.Date,
		Time:         d.Time,
		Location:     d.Location,
		Type:         d.Type,
		EventWebsite: d.EventWebsite,
		Notes:        d.Notes,
	}
}

// ContactAttemptData is the cleaned content of the contact attempt form.
type ContactAttemptData struct {
	OfficialID int64
	Method     civic.ContactMethod
	Contacted  bool
	Notes      string
}

// MeetingInfoData is the cleaned content of the meeting info source form.
type MeetingInfoData struct {
	OfficialID        int64
	MeetingInfoSource string
}

var meetingFields = []string{"official", "date", "time", "location", "meeting_type", "event_website", "notes"}

// dateRule constrains which side of today a meeting date may fall on.
type dateRule int

const (
	anyDate dateRule = iota
	notPast
	notFuture
)

func ruleFor(prefix string) dateRule {
	switch prefix {
	case PrefixNextMeeting:
		return notPast
	case PrefixLastMeeting:
		return notFuture
	}
	return anyDate
}

// BindMeeting binds and validates a meeting form. The date is optional;
// when present it must respect the prefix's direction relative to today.
func BindMeeting(prefix string, v url.Values, today time.Time) FormResult[MeetingData] {
	r := FormResult[MeetingData]{Form: NewForm(prefix)}
	r.Bind(v, meetingFields...)

	r.Cleaned.OfficialID = cleanOfficial(&r.Form, "official")

	if raw := r.Value("date"); raw != "" {
		d, err := civic.ParseDate(raw)
		if err != nil {
			r.AddError("date", msgInvalidDate)
		} else {
			day := civic.Day(today)
			switch {
			case ruleFor(prefix) == notPast && d.Before(day):
				r.AddError("date", msgNextInPast)
			case ruleFor(prefix) == notFuture && d.After(day):
				r.AddError("date", msgLastInFuture)
			}
			r.Cleaned.Date = d
		}
	}

	if raw := r.Value("time"); raw != "" {
		if _, err := time.Parse(civic.TimeLayout, raw); err != nil {
			if _, err := time.Parse(civic.TimeLayout+":05", raw); err != nil {
				r.AddError("time", msgInvalidTime)
			} else {
				raw = raw[:5]
			}
		}
		r.Cleaned.Time = raw
	}

	if raw := r.Value("meeting_type"); raw != "" {
		mt := civic.MeetingType(raw)
		if !mt.Valid() {
			r.AddError("meeting_type", msgInvalidChoice)
		}
		r.Cleaned.Type = mt
	}

	if raw := r.Value("event_website"); raw != "" {
		if !ValidURL(raw) {
			r.AddError("event_website", msgInvalidURL)
		}
		r.Cleaned.EventWebsite = raw
	}

	r.Cleaned.Location = r.Value("location")
	r.Cleaned.Notes = r.Value("notes")
	return r
}

// BindContactAttempt binds and validates the contact attempt form.
func BindContactAttempt(v url.Values) FormResult[ContactAttemptData] {
	r := FormResult[ContactAttemptData]{Form: NewForm(PrefixContactAttempt)}
	r.Bind(v, "official", "method", "contacted", "notes")

	r.Cleaned.OfficialID = cleanOfficial(&r.Form, "official")

	method := civic.ContactMethod(r.Value("method"))
	switch {
	case method == "":
		r.AddError("method", msgRequired)
	case !method.Valid():
		r.AddError("method", msgInvalidChoice)
	}
	r.Cleaned.Method = method

	r.Cleaned.Contacted = checked(r.Value("contacted"))
	r.Cleaned.Notes = r.Value("notes")
	return r
}

// BindMeetingInfo binds and validates the meeting info source form.
func BindMeetingInfo(v url.Values) FormResult[MeetingInfoData] {
	r := FormResult[MeetingInfoData]{Form: NewForm(PrefixMeetingInfoSource)}
	r.Bind(v, "id", "meeting_info_source")

	r.Cleaned.OfficialID = cleanOfficial(&r.Form, "id")
	r.Cleaned.MeetingInfoSource = r.Value("meeting_info_source")
	return r
}

// cleanOfficial parses an official id field. Existence is checked later
// against the store.
func cleanOfficial(f *Form, field string) int64 {
	raw := f.Value(field)
	if raw == "" {
		f.AddError(field, msgRequired)
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		f.AddError(field, msgInvalidChoice)
		return 0
	}
	return id
}

func checked(v string) bool {
	switch strings.ToLower(v) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// ValidURL reports whether raw is an absolute http or https URL.
func ValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
