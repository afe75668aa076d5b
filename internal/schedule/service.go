// Package schedule maintains the festival catalogue: groups, their
// events, tags, links and owners, plus the front-page news and the Hebe
// stage boards.
package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iliyamo/festival-ticketing/internal/authz"
	"github.com/iliyamo/festival-ticketing/internal/clock"
	"github.com/iliyamo/festival-ticketing/internal/identity"
	"github.com/iliyamo/festival-ticketing/internal/model"
	"github.com/iliyamo/festival-ticketing/internal/repository"
	"github.com/iliyamo/festival-ticketing/internal/ticketing"
)

// Service is the Schedule Store. Reads are public; writes check the
// caller against the admin role or the group's managers.
type Service struct {
	authz *authz.Authorizer
	roles *identity.Resolver
	cache ticketing.Invalidator
	log   *slog.Logger
	clk   clock.Clock

	Groups *repository.GroupRepo
	Events *repository.EventRepo
	Tags   *repository.TagRepo
	Links  *repository.LinkRepo
	Owners *repository.OwnerRepo
	News   *repository.NewsRepo
	Hebe   *repository.HebeRepo
}

// NewService constructs a Service. cache and logger may be nil.
func NewService(db *sql.DB, az *authz.Authorizer, cache ticketing.Invalidator, logger *slog.Logger) *Service {
	if db == nil || az == nil {
		panic("nil dependency passed to schedule.NewService")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		authz:  az,
		roles:  az.Roles(),
		cache:  cache,
		log:    logger,
		clk:    clock.Real(),
		Groups: repository.NewGroupRepo(db),
		Events: repository.NewEventRepo(db),
		Tags:   repository.NewTagRepo(db),
		Links:  repository.NewLinkRepo(db),
		Owners: repository.NewOwnerRepo(db),
		News:   repository.NewNewsRepo(db),
		Hebe:   repository.NewHebeRepo(db),
	}
	return s
}

// Roles exposes the resolver used to validate event targets.
func (s *Service) Roles() *identity.Resolver { return s.roles }

func (s *Service) invalidate(ctx context.Context, kind, id string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, kind, id)
	}
}

// translate maps repository sentinels onto the core error set.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s", ticketing.ErrNotFound, what)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %s still referenced", ticketing.ErrConflict, what)
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%w: %s already exists", ticketing.ErrConflict, what)
	}
	return err
}

func (s *Service) requireAdmin(c identity.Claims) error {
	if !s.roles.Has(c, identity.RoleAdmin) {
		return ticketing.ErrForbidden
	}
	return nil
}

// requireManager admits admins, chiefs and owners of an existing group.
func (s *Service) requireManager(ctx context.Context, c identity.Claims, groupID string) error {
	if _, err := s.Groups.GetByID(ctx, groupID); err != nil {
		return translate(err, "group "+groupID)
	}
	ok, err := s.authz.CanManageGroup(ctx, c, groupID)
	if err != nil {
		return err
	}
	if !ok {
		return ticketing.ErrForbidden
	}
	return nil
}

// CreateGroup registers a new group. Admins only.
func (s *Service) CreateGroup(ctx context.Context, c identity.Claims, g *model.Group) error {
	if err := s.requireAdmin(c); err != nil {
		return err
	}
	if err := ValidateGroup(g); err != nil {
		return err
	}
	if err := s.Groups.Create(ctx, g); err != nil {
		return translate(err, "group "+g.ID)
	}
	g.Tags = []model.Tag{}
	s.invalidate(ctx, ticketing.KindGroup, g.ID)
	s.log.InfoContext(ctx, "group created", slog.String("group_id", g.ID))
	return nil
}

// GetGroup returns a group with its tags.
func (s *Service) GetGroup(ctx context.Context, id string) (*model.Group, error) {
	g, err := s.Groups.GetByID(ctx, id)
	return g, translate(err, "group "+id)
}

// ListGroups returns every group.
func (s *Service) ListGroups(ctx context.Context) ([]*model.Group, error) {
	return s.Groups.List(ctx)
}

// GroupPatch carries the editable fields of a group. Nil fields keep
// their stored value; the id and type never change.
type GroupPatch struct {
	Groupname      *string `json:"groupname"`
	Title          *string `json:"title"`
	Description    *string `json:"description"`
	EnableVote     *bool   `json:"enable_vote"`
	TwitterURL     *string `json:"twitter_url"`
	InstagramURL   *string `json:"instagram_url"`
	StreamURL      *string `json:"stream_url"`
	PublicPageURL  *string `json:"public_page_content_url"`
	PrivatePageURL *string `json:"private_page_content_url"`
	Floor          *int    `json:"floor"`
	Place          *string `json:"place"`
}

func (p GroupPatch) apply(g *model.Group) {
	if p.Groupname != nil {
		g.Groupname = *p.Groupname
	}
	if p.EnableVote != nil {
		g.EnableVote = *p.EnableVote
	}
	for dst, src := range map[**string]*string{
		&g.Title:          p.Title,
		&g.Description:    p.Description,
		&g.TwitterURL:     p.TwitterURL,
		&g.InstagramURL:   p.InstagramURL,
		&g.StreamURL:      p.StreamURL,
		&g.PublicPageURL:  p.PublicPageURL,
		&g.PrivatePageURL: p.PrivatePageURL,
		&g.Place:          p.Place,
	} {
		if src != nil {
			*dst = src
		}
	}
	if p.Floor != nil {
		g.Floor = p.Floor
	}
}

// UpdateGroup applies patch to a group. Managers of the group only.
func (s *Service) UpdateGroup(ctx context.Context, c identity.Claims, id string, patch GroupPatch) (*model.Group, error) {
	if err := s.requireManager(ctx, c, id); err != nil {
		return nil, err
	}
	g, err := s.Groups.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "group "+id)
	}
	patch.apply(g)
	if err := ValidateGroup(g); err != nil {
		return nil, err
	}
	if err := s.Groups.Update(ctx, g); err != nil {
		return nil, translate(err, "group "+id)
	}
	s.invalidate(ctx, ticketing.KindGroup, id)
	return g, nil
}

// ChangeThumbnail replaces the public thumbnail URL; nil clears it.
func (s *Service) ChangeThumbnail(ctx context.Context, c identity.Claims, id string, url *string) (*model.Group, error) {
	if err := s.requireManager(ctx, c, id); err != nil {
		return nil, err
	}
	if err := validateGroupFields(&model.Group{PublicThumbnailURL: url}); err != nil {
		return nil, err
	}
	if err := s.Groups.UpdateThumbnail(ctx, id, url); err != nil {
		return nil, translate(err, "group "+id)
	}
	s.invalidate(ctx, ticketing.KindGroup, id)
	return s.GetGroup(ctx, id)
}

// DeleteGroup removes a group without events, tickets, tags or links.
// Admins only.
func (s *Service) DeleteGroup(ctx context.Context, c identity.Claims, id string) error {
	if err := s.requireAdmin(c); err != nil {
		return err
	}
	if err := s.Groups.Delete(ctx, id); err != nil {
		return translate(err, "group "+id)
	}
	s.invalidate(ctx, ticketing.KindGroup, id)
	s.log.InfoContext(ctx, "group deleted", slog.String("group_id", id))
	return nil
}

// CreateEvent schedules a performance of e.GroupID.
func (s *Service) CreateEvent(ctx context.Context, c identity.Claims, e *model.Event) error {
	if err := s.requireManager(ctx, c, e.GroupID); err != nil {
		return err
	}
	if err := ValidateEvent(s.roles, e); err != nil {
		return err
	}
	e.ID = ""
	if err := s.Events.Create(ctx, e); err != nil {
		return err
	}
	s.invalidate(ctx, ticketing.KindEvent, e.ID)
	s.log.InfoContext(ctx, "event created", slog.String("group_id", e.GroupID), slog.String("event_id", e.ID))
	return nil
}

// GetEvent returns an event of groupID. Events of other groups are
// reported as missing.
func (s *Service) GetEvent(ctx context.Context, groupID, id string) (*model.Event, error) {
	e, err := s.Events.GetByID(ctx, id)
	if err == nil && e.GroupID != groupID {
		err = repository.ErrNotFound
	}
	if err != nil {
		return nil, translate(err, "event "+id)
	}
	return e, nil
}

// ListEvents returns the events of a group ordered by start.
func (s *Service) ListEvents(ctx context.Context, groupID string) ([]*model.Event, error) {
	if _, err := s.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.Events.ListByGroup(ctx, groupID)
}

// DeleteEvent removes an event that has no tickets.
func (s *Service) DeleteEvent(ctx context.Context, c identity.Claims, groupID, id string) error {
	if err := s.requireManager(ctx, c, groupID); err != nil {
		return err
	}
	if err := s.Events.Delete(ctx, groupID, id); err != nil {
		return translate(err, "event "+id)
	}
	s.invalidate(ctx, ticketing.KindEvent, id)
	return nil
}

func validTagname(name string) error {
	if name == "" || len([]rune(name)) > maxTextLen {
		return ticketing.Invalid("tagname", fmt.Sprintf("must be 1-%d characters", maxTextLen))
	}
	return nil
}

// CreateTag adds a tag. Admins only; names are unique.
func (s *Service) CreateTag(ctx context.Context, c identity.Claims, name string) (*model.Tag, error) {
	if err := s.requireAdmin(c); err != nil {
		return nil, err
	}
	if err := validTagname(name); err != nil {
		return nil, err
	}
	t, err := s.Tags.Create(ctx, name)
	if err != nil {
		return nil, translate(err, "tag "+name)
	}
	s.invalidate(ctx, ticketing.KindTag, t.ID)
	return t, nil
}

// GetTag returns one tag.
func (s *Service) GetTag(ctx context.Context, id string) (*model.Tag, error) {
	t, err := s.Tags.GetByID(ctx, id)
	return t, translate(err, "tag "+id)
}

// ListTags returns every tag.
func (s *Service) ListTags(ctx context.Context) ([]model.Tag, error) {
	return s.Tags.List(ctx)
}

// RenameTag changes a tag's name. Admins only.
func (s *Service) RenameTag(ctx context.Context, c identity.Claims, id, name string) (*model.Tag, error) {
	if err := s.requireAdmin(c); err != nil {
		return nil, err
	}
	if err := validTagname(name); err != nil {
		return nil, err
	}
	if err := s.Tags.Rename(ctx, id, name); err != nil {
		return nil, translate(err, "tag "+id)
	}
	s.invalidate(ctx, ticketing.KindTag, id)
	return &model.Tag{ID: id, Tagname: name}, nil
}

// DeleteTag removes a tag that no group uses. Admins only.
func (s *Service) DeleteTag(ctx context.Context, c identity.Claims, id string) error {
	if err := s.requireAdmin(c); err != nil {
		return err
	}
	if err := s.Tags.Delete(ctx, id); err != nil {
		return translate(err, "tag "+id)
	}
	s.invalidate(ctx, ticketing.KindTag, id)
	return nil
}

// AddTagToGroup attaches a tag to a group.
func (s *Service) AddTagToGroup(ctx context.Context, c identity.Claims, groupID, tagID string) error {
	if err := s.requireManager(ctx, c, groupID); err != nil {
		return err
	}
	if _, err := s.GetTag(ctx, tagID); err != nil {
		return err
	}
	if err := s.Tags.AddToGroup(ctx, groupID, tagID); err != nil {
		return translate(err, "tag "+tagID+" on group "+groupID)
	}
	s.invalidate(ctx, ticketing.KindGroup, groupID)
	return nil
}

// RemoveTagFromGroup detaches a tag from a group.
func (s *Service) RemoveTagFromGroup(ctx context.Context, c identity.Claims, groupID, tagID string) error {
	if err := s.requireManager(ctx, c, groupID); err != nil {
		return err
	}
	if err := s.Tags.RemoveFromGroup(ctx, groupID, tagID); err != nil {
		return translate(err, "tag "+tagID+" on group "+groupID)
	}
	s.invalidate(ctx, ticketing.KindGroup, groupID)
	return nil
}

// TagsOfGroup lists the tags attached to a group.
func (s *Service) TagsOfGroup(ctx context.Context, groupID string) ([]model.Tag, error) {
	if _, err := s.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.Tags.ListByGroup(ctx, groupID)
}

// AddLink adds an external link to a group page.
func (s *Service) AddLink(ctx context.Context, c identity.Claims, l *model.GroupLink) error {
	if err := s.requireManager(ctx, c, l.GroupID); err != nil {
		return err
	}
	if err := ValidateLink(l); err != nil {
		return err
	}
	if err := s.Links.Create(ctx, l); err != nil {
		return translate(err, "link "+l.Name)
	}
	s.invalidate(ctx, ticketing.KindGroup, l.GroupID)
	return nil
}

// ListLinks returns a group's links.
func (s *Service) ListLinks(ctx context.Context, groupID string) ([]model.GroupLink, error) {
	if _, err := s.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.Links.ListByGroup(ctx, groupID)
}

// DeleteLink removes a link of a group.
func (s *Service) DeleteLink(ctx context.Context, c identity.Claims, groupID, id string) error {
	if err := s.requireManager(ctx, c, groupID); err != nil {
		return err
	}
	if err := s.Links.Delete(ctx, groupID, id); err != nil {
		return translate(err, "link "+id)
	}
	s.invalidate(ctx, ticketing.KindGroup, groupID)
	return nil
}

// GrantOwner binds userID to a group as owner. Admins only.
func (s *Service) GrantOwner(ctx context.Context, c identity.Claims, groupID, userID, note string) (*model.GroupOwner, error) {
	if err := s.requireAdmin(c); err != nil {
		return nil, err
	}
	if _, err := s.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, ticketing.Invalid("user_id", "must not be empty")
	}
	o, err := s.Owners.Grant(ctx, groupID, userID, note)
	if err != nil {
		return nil, translate(err, "owner "+userID+" of "+groupID)
	}
	s.log.InfoContext(ctx, "owner granted", slog.String("group_id", groupID), slog.String("user_id", userID))
	return o, nil
}

// RevokeOwner removes an ownership binding. Admins only.
func (s *Service) RevokeOwner(ctx context.Context, c identity.Claims, groupID, userID string) error {
	if err := s.requireAdmin(c); err != nil {
		return err
	}
	return translate(s.Owners.Revoke(ctx, groupID, userID), "owner "+userID+" of "+groupID)
}

// ListOwners lists the owners of a group for its managers.
func (s *Service) ListOwners(ctx context.Context, c identity.Claims, groupID string) ([]model.GroupOwner, error) {
	if err := s.requireManager(ctx, c, groupID); err != nil {
		return nil, err
	}
	return s.Owners.ListByGroup(ctx, groupID)
}
