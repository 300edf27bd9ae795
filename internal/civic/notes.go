package civic

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Meeting notes may carry structured facts as ArchieML-style key lines:
//
//	Host: Town of Hazard
//	RSVP-Link: https://example.org/rsvp
//	Agenda: Health care
//	Second line of agenda
//	:end
//
// A value spans multiple lines only when closed by ":end". ":ignore" stops
// parsing. Keys are slugified with '-' replaced by '_' ("RSVP-Link" becomes
// "rsvp_link").
var noteKeyLine = regexp.MustCompile(`^\s*([A-Za-z0-9_\-\.]+)[ \t]*:[ \t]*(.*?)\s*$`)

// ParseNoteFields extracts key: value facts from free-text notes.
func ParseNoteFields(notes string) map[string]string {
	fields := make(map[string]string)

	var (
		lastKey string
		pending []string
	)
	for _, line := range strings.Split(strings.ReplaceAll(notes, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		switch strings.ToLower(trimmed) {
		case ":ignore":
			return fields
		case ":end":
			if lastKey != "" && len(pending) > 0 {
				fields[lastKey] = strings.TrimSpace(fields[lastKey] + "\n" + strings.Join(pending, "\n"))
			}
			pending = nil
			continue
		}

		if m := noteKeyLine.FindStringSubmatch(line); m != nil {
			key := strings.ReplaceAll(Slugify(m[1]), "-", "_")
			if key == "" {
				continue
			}
			fields[key] = m[2]
			lastKey = key
			pending = nil
			continue
		}

		if lastKey != "" {
			pending = append(pending, strings.TrimPrefix(trimmed, `\`))
		}
	}
	return fields
}

var (
	slugStrip    = regexp.MustCompile(`[^\w\s-]`)
	slugSeparate = regexp.MustCompile(`[-\s]+`)
)

// Slugify converts s to a lowercase ASCII slug: accents are decomposed and
// dropped, punctuation removed, and runs of spaces or hyphens collapsed to a
// single hyphen.
func Slugify(s string) string {
	decomposed := norm.NFKD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if r > unicode.MaxASCII {
			continue
		}
		b.WriteRune(r)
	}
	slug := slugStrip.ReplaceAllString(b.String(), "")
	slug = strings.ToLower(strings.TrimSpace(slug))
	return strings.Trim(slugSeparate.ReplaceAllString(slug, "-"), "-")
}
