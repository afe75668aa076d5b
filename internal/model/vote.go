package model

// Vote is one user's vote for a group. At most one vote exists per
// (user, group) pair; the database enforces it with a unique key.
type Vote struct {
	ID      string `json:"id"`       // votes.id
	GroupID string `json:"group_id"` // votes.group_id
	UserID  string `json:"user_id"`  // votes.user_id
}
