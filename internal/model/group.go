package model

// Group is a participating organization (a class play, a club, ...).
// The ID is chosen by the admin who registers the group; IDs of the
// form 11r..38r are reserved for class plays.
//
// Fields:
//  ID                 : user chosen identifier, 3..16 chars of [a-zA-Z0-9_-.].
//  Groupname          : display name.
//  Type               : one of play, hebe, club, test, other.
//  EnableVote         : whether visitors may vote for the group.
//  PublicThumbnailURL : thumbnail shown in listings.
//  PublicPageURL      : public page content.
//  PrivatePageURL     : page shown to ticket holders only.
type Group struct {
	ID                 string  `json:"id"`                              // groups.id
	Groupname          string  `json:"groupname"`                       // groups.groupname
	Title              *string `json:"title"`                           // groups.title (nullable)
	Description        *string `json:"description"`                     // groups.description (nullable)
	Type               string  `json:"type"`                            // groups.type
	EnableVote         bool    `json:"enable_vote"`                     // groups.enable_vote
	TwitterURL         *string `json:"twitter_url"`                     // groups.twitter_url (nullable)
	InstagramURL       *string `json:"instagram_url"`                   // groups.instagram_url (nullable)
	StreamURL          *string `json:"stream_url"`                      // groups.stream_url (nullable)
	PublicThumbnailURL *string `json:"public_thumbnail_image_url"`      // groups.public_thumbnail_image_url (nullable)
	PublicPageURL      *string `json:"public_page_content_url"`         // groups.public_page_content_url (nullable)
	PrivatePageURL     *string `json:"private_page_content_url,omitempty"` // groups.private_page_content_url (nullable)
	Floor              *int    `json:"floor"`                           // groups.floor (nullable)
	Place              *string `json:"place"`                           // groups.place (nullable)
	Tags               []Tag   `json:"tags"`                            // resolved through grouptags
}

// Group types.
const (
	GroupTypePlay  = "play"
	GroupTypeHebe  = "hebe"
	GroupTypeClub  = "club"
	GroupTypeTest  = "test"
	GroupTypeOther = "other"
)

// Tag is a free-form label attached to groups.
type Tag struct {
	ID      string `json:"id"`      // tags.id
	Tagname string `json:"tagname"` // tags.tagname
}

// GroupTag links a tag to a group. The pair is unique.
type GroupTag struct {
	ID      string // grouptags.id
	GroupID string // grouptags.group_id
	TagID   string // grouptags.tag_id
}

// GroupLink is an external link shown on a group's page.
type GroupLink struct {
	ID       string `json:"id"`       // grouplinks.id
	GroupID  string `json:"group_id"` // grouplinks.group_id
	Name     string `json:"name"`     // grouplinks.name
	Linktext string `json:"linktext"` // grouplinks.linktext
}

// GroupOwner grants a user management rights over a group.
type GroupOwner struct {
	ID      string `json:"id"`       // groupowners.id
	GroupID string `json:"group_id"` // groupowners.group_id
	UserID  string `json:"user_id"`  // groupowners.user_id
	Note    string `json:"note"`     // groupowners.note
}
