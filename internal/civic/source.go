package civic

import "fmt"

// OwnerKind names the kind of record a Source is attached to.
type OwnerKind string

const (
	OwnerMeeting  OwnerKind = "meeting"
	OwnerOfficial OwnerKind = "official"
)

// Valid reports whether k is a known owner kind.
func (k OwnerKind) Valid() bool {
	return k == OwnerMeeting || k == OwnerOfficial
}

// Owner identifies the record a Source cites information for.
type Owner struct {
	Kind OwnerKind
	ID   int64
}

// MeetingOwner is the owner value for a meeting.
func MeetingOwner(id int64) Owner { return Owner{Kind: OwnerMeeting, ID: id} }

// OfficialOwner is the owner value for an official.
func OfficialOwner(id int64) Owner { return Owner{Kind: OwnerOfficial, ID: id} }

func (o Owner) String() string { return fmt.Sprintf("%s:%d", o.Kind, o.ID) }

// Source is a citation URL for a piece of information in the system.
type Source struct {
	ID    int64
	URL   string
	Owner Owner
}

func (s Source) String() string { return s.URL }
