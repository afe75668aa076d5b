package model

// News is an announcement on the festival front page. Timestamp is the
// ISO-8601 JST instant it was posted.
type News struct {
	ID        string  `json:"id"`        // news.id
	Title     string  `json:"title"`     // news.title
	Timestamp string  `json:"timestamp"` // news.timestamp
	Author    string  `json:"author"`    // news.author
	Detail    *string `json:"detail"`    // news.detail (nullable)
}

// Boards of the Hebe stage display.
const (
	HebeNowPlaying = "nowplaying"
	HebeUpNext     = "upnext"
)

// HebeBoard names the group shown on one board of the Hebe stage.
type HebeBoard struct {
	Board   string `json:"board"`    // hebe_boards.board
	GroupID string `json:"group_id"` // hebe_boards.group_id
}
