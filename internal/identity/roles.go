package identity

import (
	"fmt"
	"sort"
)

// Role names a permission predicate over Claims. Event targets are role
// names too, so the set is closed and validated on input.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleOwner          Role = "owner"
	RoleChief          Role = "chief"
	RoleEntry          Role = "entry"
	RoleVisited        Role = "visited"
	RoleStudent        Role = "student"
	RoleTeacher        Role = "teacher"
	RoleParents        Role = "parents"
	RoleGuest          Role = "guest"
	RoleSchool         Role = "school"
	RolePaper          Role = "paper"
	RoleEveryone       Role = "everyone"
	RoleB2C            Role = "b2c"
	RoleAD             Role = "ad"
	RoleB2CVisited     Role = "b2c_visited"
	RoleVisitedParents Role = "visited_parents"
	RoleVisitedSchool  Role = "visited_school"
	RoleSchoolParents  Role = "school_parents"
)

// maxCompositeDepth bounds composite expansion; NewResolver rejects
// directories nesting deeper.
const maxCompositeDepth = 4

// Directory is the data behind role resolution. Memberships map primitive
// roles to identity-provider group ids, Issuers map roles decided by the
// token issuer, Composites are disjunctions over other roles, and
// ClassParents maps a class id (11r..38r) to its parents' group id.
type Directory struct {
	Memberships  map[Role]string   `yaml:"memberships"`
	Issuers      map[Role]string   `yaml:"issuers"`
	Composites   map[Role][]Role   `yaml:"composites"`
	ClassParents map[string]string `yaml:"class_parents"`
}

// Resolver evaluates roles against claims. It holds no mutable state and
// is safe for concurrent use.
type Resolver struct {
	dir Directory
}

// NewResolver validates dir and returns a Resolver over it.
func NewResolver(dir Directory) (*Resolver, error) {
	r := &Resolver{dir: dir}
	for role, members := range dir.Composites {
		for _, m := range members {
			if !r.Known(string(m)) {
				return nil, fmt.Errorf("composite role %q references unknown role %q", role, m)
			}
		}
		if r.depth(role, 0) > maxCompositeDepth {
			return nil, fmt.Errorf("composite role %q nests too deeply", role)
		}
	}
	return r, nil
}

func (r *Resolver) depth(role Role, d int) int {
	if d > maxCompositeDepth {
		return d
	}
	max := d
	for _, m := range r.dir.Composites[role] {
		if n := r.depth(m, d+1); n > max {
			max = n
		}
	}
	return max
}

// Known reports whether name is a role the resolver can evaluate.
func (r *Resolver) Known(name string) bool {
	role := Role(name)
	switch role {
	case RoleEveryone, RolePaper:
		return true
	}
	if _, ok := r.dir.Memberships[role]; ok {
		return true
	}
	if _, ok := r.dir.Issuers[role]; ok {
		return true
	}
	_, ok := r.dir.Composites[role]
	return ok
}

// Has reports whether the claims satisfy role. Unknown roles are never
// satisfied. Paper is a pseudo target for staff-issued tickets and no
// membership grants it.
func (r *Resolver) Has(c Claims, role Role) bool {
	return r.has(c, role, 0)
}

func (r *Resolver) has(c Claims, role Role, d int) bool {
	if d > maxCompositeDepth {
		return false
	}
	switch role {
	case RoleEveryone:
		return true
	case RolePaper:
		return false
	}
	if iss, ok := r.dir.Issuers[role]; ok && iss != "" && c.Iss == iss {
		return true
	}
	if id, ok := r.dir.Memberships[role]; ok && c.InGroup(id) {
		return true
	}
	for _, m := range r.dir.Composites[role] {
		if r.has(c, m, d+1) {
			return true
		}
	}
	return false
}

// HasAny reports whether the claims satisfy at least one of roles.
func (r *Resolver) HasAny(c Claims, roles ...Role) bool {
	for _, role := range roles {
		if r.Has(c, role) {
			return true
		}
	}
	return false
}

// IsParentOf reports whether the claims belong to the parents of class.
// Classes outside the directory are never matched.
func (r *Resolver) IsParentOf(c Claims, class string) bool {
	id, ok := r.dir.ClassParents[class]
	return ok && c.InGroup(id)
}

// Roles lists every role the claims satisfy, sorted by name.
func (r *Resolver) Roles(c Claims) []Role {
	seen := map[Role]bool{}
	var out []Role
	add := func(role Role) {
		if !seen[role] && r.Has(c, role) {
			seen[role] = true
			out = append(out, role)
		}
	}
	add(RoleEveryone)
	for role := range r.dir.Memberships {
		add(role)
	}
	for role := range r.dir.Issuers {
		add(role)
	}
	for role := range r.dir.Composites {
		add(role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParentOf returns the classes whose parents group the claims belong to.
func (r *Resolver) ParentOf(c Claims) []string {
	var out []string
	for class, id := range r.dir.ClassParents {
		if c.InGroup(id) {
			out = append(out, class)
		}
	}
	sort.Strings(out)
	return out
}
