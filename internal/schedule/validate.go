package schedule

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/iliyamo/festival-ticketing/internal/identity"
	"github.com/iliyamo/festival-ticketing/internal/model"
	"github.com/iliyamo/festival-ticketing/internal/ticketing"
)

var (
	groupIDPattern   = regexp.MustCompile(`^[a-zA-Z0-9_\-.]{3,16}$`)
	classIDPattern   = regexp.MustCompile(`^[1-3][1-8]r$`)
	twitterPattern   = regexp.MustCompile(`^https?://x\.com/[0-9a-zA-Z_]{1,15}/?$`)
	instagramPattern = regexp.MustCompile(`^https?://instagram\.com/[0-9a-zA-Z_.]{1,30}/?$`)
	streamPattern    = regexp.MustCompile(`^https?://web\.microsoftstream\.com/video/[\w!?+\-_~=;.,*&@#$%()'\[\]]+/?$`)
)

// Field length limits.
const (
	maxTextLen     = 200
	maxLinkNameLen = 100
	maxLinkTextLen = 1024
)

// ValidateGroupID checks the id syntax and the class namespace: plays
// must use a class id (11r..38r) and only plays may.
func ValidateGroupID(id, typ string) error {
	if !groupIDPattern.MatchString(id) {
		return ticketing.Invalid("id", "must be 3-16 characters of letters, digits, _ - .")
	}
	if (typ == model.GroupTypePlay) != classIDPattern.MatchString(id) {
		return ticketing.Invalid("id", "class ids (11r..38r) are reserved for plays")
	}
	return nil
}

func validGroupType(t string) bool {
	switch t {
	case model.GroupTypePlay, model.GroupTypeHebe, model.GroupTypeClub, model.GroupTypeTest, model.GroupTypeOther:
		return true
	}
	return false
}

// ValidateGroup checks a group before it is created.
func ValidateGroup(g *model.Group) error {
	if !validGroupType(g.Type) {
		return ticketing.Invalid("type", "unknown group type")
	}
	if err := ValidateGroupID(g.ID, g.Type); err != nil {
		return err
	}
	if g.Groupname == "" || utf8.RuneCountInString(g.Groupname) > maxTextLen {
		return ticketing.Invalid("groupname", fmt.Sprintf("must be 1-%d characters", maxTextLen))
	}
	return validateGroupFields(g)
}

type textField struct {
	name string
	v    *string
}

type urlField struct {
	name string
	v    *string
	re   *regexp.Regexp
}

// validateGroupFields checks the optional fields in declaration order and
// reports the first offender.
func validateGroupFields(g *model.Group) error {
	for _, f := range []textField{
		{"title", g.Title},
		{"description", g.Description},
		{"public_thumbnail_image_url", g.PublicThumbnailURL},
		{"public_page_content_url", g.PublicPageURL},
		{"private_page_content_url", g.PrivatePageURL},
		{"place", g.Place},
	} {
		if f.v != nil && utf8.RuneCountInString(*f.v) > maxTextLen {
			return ticketing.Invalid(f.name, fmt.Sprintf("longer than %d characters", maxTextLen))
		}
	}
	for _, f := range []urlField{
		{"twitter_url", g.TwitterURL, twitterPattern},
		{"instagram_url", g.InstagramURL, instagramPattern},
		{"stream_url", g.StreamURL, streamPattern},
	} {
		if f.v != nil && !f.re.MatchString(*f.v) {
			return ticketing.Invalid(f.name, "not a recognised URL")
		}
	}
	return nil
}

// ValidateEvent checks an event's windows, target role and stock.
func ValidateEvent(roles *identity.Resolver, e *model.Event) error {
	switch {
	case e.Eventname == "":
		return ticketing.Invalid("eventname", "must not be empty")
	case !roles.Known(e.Target):
		return ticketing.Invalid("target", fmt.Sprintf("unknown role %q", e.Target))
	case e.TicketStock < 0:
		return ticketing.Invalid("ticket_stock", "must not be negative")
	case !e.StartsAt.Before(e.EndsAt):
		return ticketing.Invalid("ends_at", "must be after starts_at")
	case !e.SellStarts.Before(e.SellEnds):
		return ticketing.Invalid("sell_ends", "must be after sell_starts")
	}
	return nil
}

// ValidateLink checks the length limits of a group link.
func ValidateLink(l *model.GroupLink) error {
	if l.Name == "" || utf8.RuneCountInString(l.Name) > maxLinkNameLen {
		return ticketing.Invalid("name", fmt.Sprintf("must be 1-%d characters", maxLinkNameLen))
	}
	if l.Linktext == "" || utf8.RuneCountInString(l.Linktext) > maxLinkTextLen {
		return ticketing.Invalid("linktext", fmt.Sprintf("must be 1-%d characters", maxLinkTextLen))
	}
	return nil
}
