// Package identity turns verified identity-provider claims into the roles
// used for authorization. Token verification lives in verifier.go; role
// resolution in roles.go is a pure function of the claims.
package identity

// Claims is the verified subset of an identity token the service relies on.
type Claims struct {
	Sub    string   `json:"sub"`
	OID    string   `json:"oid,omitempty"`
	Name   string   `json:"name,omitempty"`
	Groups []string `json:"groups,omitempty"`
	Iss    string   `json:"iss"`
}

// OwnerID is the immutable identifier stored on tickets and votes: the
// object id when the provider sets one, the subject otherwise.
func (c Claims) OwnerID() string {
	if c.OID != "" {
		return c.OID
	}
	return c.Sub
}

// InGroup reports whether the claims carry the membership id.
func (c Claims) InGroup(id string) bool {
	if id == "" {
		return false
	}
	for _, g := range c.Groups {
		if g == id {
			return true
		}
	}
	return false
}
