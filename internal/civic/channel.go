package civic

import "fmt"

// ChannelType is a social media service.
type ChannelType string

const (
	ChannelGooglePlus ChannelType = "GooglePlus"
	ChannelYouTube    ChannelType = "YouTube"
	ChannelFacebook   ChannelType = "Facebook"
	ChannelTwitter    ChannelType = "Twitter"
)

var channelServiceNames = map[ChannelType]string{
	ChannelGooglePlus: "Google+",
	ChannelYouTube:    "YouTube",
	ChannelFacebook:   "Facebook",
	ChannelTwitter:    "Twitter",
}

var channelURLTemplates = map[ChannelType]string{
	ChannelFacebook:   "https://www.facebook.com/%s",
	ChannelTwitter:    "https://twitter.com/%s",
	ChannelYouTube:    "https://www.youtube.com/user/%s",
	ChannelGooglePlus: "https://plus.google.com/u/0/+%s",
}

// Valid reports whether t is a known channel type.
func (t ChannelType) Valid() bool {
	_, ok := channelServiceNames[t]
	return ok
}

// SocialMediaChannel is an official's account on a social media service.
type SocialMediaChannel struct {
	ID         int64
	OfficialID int64
	ChannelID  string
	Type       ChannelType
}

func (c SocialMediaChannel) String() string { return c.ChannelID }

// URL is the public profile URL, or empty for an unknown type.
func (c SocialMediaChannel) URL() string {
	tmpl, ok := channelURLTemplates[c.Type]
	if !ok {
		return ""
	}
	return fmt.Sprintf(tmpl, c.ChannelID)
}

// ServiceName is the display name of the channel's service.
func (c SocialMediaChannel) ServiceName() string {
	if name, ok := channelServiceNames[c.Type]; ok {
		return name
	}
	return string(c.Type)
}
