package api

import (
	"net/http"

	"townhall/internal/civic"
	"townhall/internal/store"
)

type officialJSON struct {
	ID                int64         `json:"id"`
	Name              string        `json:"name"`
	Party             string        `json:"party"`
	InOffice          bool          `json:"in_office"`
	MeetingInfoSource string        `json:"meeting_info_source"`
	Meetings          []meetingJSON `json:"meetings"`
	SocialMedia       []channelJSON `json:"social_media"`
	Office            *officeJSON   `json:"office"`
	Phones            *[]string     `json:"phones,omitempty"`
	Emails            *[]string     `json:"emails,omitempty"`
}

type meetingJSON struct {
	ID           int64    `json:"id"`
	Date         string   `json:"date"`
	Time         *string  `json:"time"`
	MeetingType  *string  `json:"meeting_type"`
	Location     string   `json:"location"`
	EventWebsite string   `json:"event_website"`
	Sources      []string `json:"sources"`
}

type channelJSON struct {
	ChannelID   string `json:"channel_id"`
	ChannelType string `json:"channel_type"`
}

type officeJSON struct {
	Name     string       `json:"name"`
	Division divisionJSON `json:"division"`
}

type divisionJSON struct {
	OCDID string `json:"ocd_id"`
	Name  string `json:"name"`
}

// extras are the optional fields requested with include_field.
type extras struct {
	phones bool
	emails bool
}

func includes(r *http.Request) extras {
	var e extras
	for _, f := range r.URL.Query()["include_field"] {
		switch f {
		case "phones":
			e.phones = true
		case "emails":
			e.emails = true
		}
	}
	return e
}

func (e extras) detail() store.Detail {
	var d store.Detail
	if e.phones {
		d |= store.DetailPhones
	}
	if e.emails {
		d |= store.DetailEmails
	}
	return d
}

func prepare(o civic.Official, e extras) officialJSON {
	out := officialJSON{
		ID:                o.ID,
		Name:              o.Name,
		Party:             o.Party,
		InOffice:          o.InOffice,
		MeetingInfoSource: o.MeetingInfoSource,
		Meetings:          make([]meetingJSON, 0, len(o.Meetings)),
		SocialMedia:       make([]channelJSON, 0, len(o.Channels)),
	}
	for _, m := range o.Meetings {
		out.Meetings = append(out.Meetings, prepareMeeting(m))
	}
	for _, c := range o.Channels {
		out.SocialMedia = append(out.SocialMedia, channelJSON{c.ChannelID, string(c.Type)})
	}
	if o.Office != nil {
		out.Office = &officeJSON{Name: o.Office.Name}
		if d := o.Office.Division; d != nil {
			out.Office.Division = divisionJSON{OCDID: d.OCDID, Name: d.Name}
		}
	}

	// Requested lists are present even when empty.
	if e.phones {
		phones := make([]string, 0, len(o.Phones))
		for _, p := range o.Phones {
			phones = append(phones, p.Number)
		}
		out.Phones = &phones
	}
	if e.emails {
		emails := make([]string, 0, len(o.Emails))
		for _, m := range o.Emails {
			emails = append(emails, m.Address)
		}
		out.Emails = &emails
	}
	return out
}

func prepareMeeting(m civic.Meeting) meetingJSON {
	out := meetingJSON{
		ID:           m.ID,
		Date:         m.Date.Format(civic.DateLayout),
		Location:     m.Location,
		EventWebsite: m.EventWebsite,
		Sources:      make([]string, 0, len(m.Sources)),
	}
	if m.Time != "" {
		t := m.Time
		out.Time = &t
	}
	if m.Type != "" {
		mt := string(m.Type)
		out.MeetingType = &mt
	}
	for _, s := range m.Sources {
		out.Sources = append(out.Sources, s.URL)
	}
	return out
}
