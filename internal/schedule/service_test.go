package schedule

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/festival-ticketing/internal/authz"
	"github.com/iliyamo/festival-ticketing/internal/clock"
	"github.com/iliyamo/festival-ticketing/internal/database/dbtest"
	"github.com/iliyamo/festival-ticketing/internal/identity"
	"github.com/iliyamo/festival-ticketing/internal/model"
	"github.com/iliyamo/festival-ticketing/internal/repository"
	"github.com/iliyamo/festival-ticketing/internal/ticketing"
)

var start = time.Date(2023, 9, 16, 10, 0, 0, 0, clock.JST)

func newService(t *testing.T) (*Service, identity.Claims) {
	t.Helper()
	db := dbtest.New(t)
	roles := identity.MustDefaultResolver()
	svc := NewService(db, authz.New(roles, repository.NewOwnerRepo(db)), nil, nil)
	admin := identity.Claims{Sub: "admin", Groups: []string{identity.DefaultDirectory().Memberships[identity.RoleAdmin]}}
	return svc, admin
}

func ptr[T any](v T) *T { return &v }

func TestValidateGroupID(t *testing.T) {
	for _, tc := range []struct {
		id, typ string
		ok      bool
	}{
		{"21r", model.GroupTypePlay, true},
		{"38r", model.GroupTypePlay, true},
		{"41r", model.GroupTypePlay, false},
		{"19r", model.GroupTypePlay, false},
		{"drama", model.GroupTypePlay, false},
		{"21r", model.GroupTypeClub, false},
		{"brass-band", model.GroupTypeClub, true},
		{"ab", model.GroupTypeClub, false},
		{"a/b/c", model.GroupTypeClub, false},
		{"seventeen-chars-x", model.GroupTypeClub, false},
	} {
		err := ValidateGroupID(tc.id, tc.typ)
		if tc.ok {
			assert.NoError(t, err, tc.id)
		} else {
			assert.ErrorIs(t, err, ticketing.ErrValidation, tc.id)
		}
	}
}

func TestValidateEvent(t *testing.T) {
	roles := identity.MustDefaultResolver()
	valid := func() *model.Event {
		return &model.Event{
			Eventname: "first", Target: "everyone", TicketStock: 10,
			StartsAt: start, EndsAt: start.Add(time.Hour),
			SellStarts: start.Add(-time.Hour), SellEnds: start,
		}
	}
	require.NoError(t, ValidateEvent(roles, valid()))

	for name, mutate := range map[string]func(*model.Event){
		"unknown target":  func(e *model.Event) { e.Target = "nobody" },
		"negative stock":  func(e *model.Event) { e.TicketStock = -1 },
		"empty window":    func(e *model.Event) { e.EndsAt = e.StartsAt },
		"inverted sales":  func(e *model.Event) { e.SellEnds = e.SellStarts.Add(-time.Second) },
		"empty eventname": func(e *model.Event) { e.Eventname = "" },
	} {
		e := valid()
		mutate(e)
		assert.ErrorIs(t, ValidateEvent(roles, e), ticketing.ErrValidation, name)
	}

	e := valid()
	e.Target = "paper"
	assert.NoError(t, ValidateEvent(roles, e))
}

func TestValidateGroupReportsFirstBadField(t *testing.T) {
	long := strings.Repeat("x", maxTextLen+1)
	g := &model.Group{
		ID: "brass-band", Groupname: "Brass", Type: model.GroupTypeClub,
		Title: ptr(long), Place: ptr(long),
		TwitterURL: ptr("nope"), StreamURL: ptr("nope"),
	}
	for i := 0; i < 20; i++ {
		var ve *ticketing.ValidationError
		require.ErrorAs(t, ValidateGroup(g), &ve)
		assert.Equal(t, "title", ve.Field)
	}

	g.Title, g.Place = nil, nil
	for i := 0; i < 20; i++ {
		var ve *ticketing.ValidationError
		require.ErrorAs(t, ValidateGroup(g), &ve)
		assert.Equal(t, "twitter_url", ve.Field)
	}
}

func TestGroupLifecycle(t *testing.T) {
	svc, admin := newService(t)
	ctx := context.Background()
	visitor := identity.Claims{Sub: "visitor"}

	g := &model.Group{ID: "21r", Groupname: "Class 2-1", Type: model.GroupTypePlay, EnableVote: true}
	assert.ErrorIs(t, svc.CreateGroup(ctx, visitor, g), ticketing.ErrForbidden)
	require.NoError(t, svc.CreateGroup(ctx, admin, g))
	assert.ErrorIs(t, svc.CreateGroup(ctx, admin, g), ticketing.ErrConflict)

	bad := &model.Group{ID: "club1", Groupname: "x", Type: model.GroupTypeClub, TwitterURL: ptr("https://example.com/x")}
	assert.ErrorIs(t, svc.CreateGroup(ctx, admin, bad), ticketing.ErrValidation)

	_, err := svc.UpdateGroup(ctx, visitor, "21r", GroupPatch{Title: ptr("Hamlet")})
	assert.ErrorIs(t, err, ticketing.ErrForbidden)

	_, err = svc.Owners.Grant(ctx, "21r", "owner-1", "")
	require.NoError(t, err)
	owner := identity.Claims{Sub: "s", OID: "owner-1"}
	updated, err := svc.UpdateGroup(ctx, owner, "21r", GroupPatch{Title: ptr("Hamlet"), EnableVote: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, "Hamlet", *updated.Title)
	assert.False(t, updated.EnableVote)
	assert.Equal(t, "Class 2-1", updated.Groupname)

	got, err := svc.ChangeThumbnail(ctx, owner, "21r", ptr("https://cdn.example/21r.png"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/21r.png", *got.PublicThumbnailURL)

	_, err = svc.GetGroup(ctx, "nope")
	assert.ErrorIs(t, err, ticketing.ErrNotFound)
	_, err = svc.UpdateGroup(ctx, admin, "nope", GroupPatch{})
	assert.ErrorIs(t, err, ticketing.ErrNotFound)
}

func TestDeleteGroupBlockedByDependents(t *testing.T) {
	svc, admin := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateGroup(ctx, admin, &model.Group{ID: "club1", Groupname: "c", Type: model.GroupTypeClub}))

	l := &model.GroupLink{GroupID: "club1", Name: "site", Linktext: "https://club1.example"}
	require.NoError(t, svc.AddLink(ctx, admin, l))
	assert.ErrorIs(t, svc.DeleteGroup(ctx, admin, "club1"), ticketing.ErrConflict)

	require.NoError(t, svc.DeleteLink(ctx, admin, "club1", l.ID))
	require.NoError(t, svc.DeleteGroup(ctx, admin, "club1"))
	assert.ErrorIs(t, svc.DeleteGroup(ctx, admin, "club1"), ticketing.ErrNotFound)
}

func TestEvents(t *testing.T) {
	svc, admin := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateGroup(ctx, admin, &model.Group{ID: "club1", Groupname: "c", Type: model.GroupTypeClub}))
	require.NoError(t, svc.CreateGroup(ctx, admin, &model.Group{ID: "club2", Groupname: "d", Type: model.GroupTypeClub}))

	e := &model.Event{
		GroupID: "club1", Eventname: "first", Target: "school", TicketStock: 30,
		StartsAt: start, EndsAt: start.Add(time.Hour), SellStarts: start.Add(-time.Hour), SellEnds: start,
	}
	require.NoError(t, svc.CreateEvent(ctx, admin, e))
	assert.NotEmpty(t, e.ID)

	got, err := svc.GetEvent(ctx, "club1", e.ID)
	require.NoError(t, err)
	assert.True(t, got.SellStarts.Equal(e.SellStarts))
	_, err = svc.GetEvent(ctx, "club2", e.ID)
	assert.ErrorIs(t, err, ticketing.ErrNotFound)

	events, err := svc.ListEvents(ctx, "club1")
	require.NoError(t, err)
	assert.Len(t, events, 1)

	missing := *e
	missing.GroupID = "ghost"
	assert.ErrorIs(t, svc.CreateEvent(ctx, admin, &missing), ticketing.ErrNotFound)

	require.NoError(t, svc.DeleteEvent(ctx, admin, "club1", e.ID))
	assert.ErrorIs(t, svc.DeleteEvent(ctx, admin, "club1", e.ID), ticketing.ErrNotFound)
}

func TestTags(t *testing.T) {
	svc, admin := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateGroup(ctx, admin, &model.Group{ID: "club1", Groupname: "c", Type: model.GroupTypeClub}))

	tag, err := svc.CreateTag(ctx, admin, "music")
	require.NoError(t, err)
	_, err = svc.CreateTag(ctx, admin, "music")
	assert.ErrorIs(t, err, ticketing.ErrConflict)

	require.NoError(t, svc.AddTagToGroup(ctx, admin, "club1", tag.ID))
	assert.ErrorIs(t, svc.AddTagToGroup(ctx, admin, "club1", tag.ID), ticketing.ErrConflict)
	assert.ErrorIs(t, svc.AddTagToGroup(ctx, admin, "club1", "ghost"), ticketing.ErrNotFound)

	g, err := svc.GetGroup(ctx, "club1")
	require.NoError(t, err)
	require.Len(t, g.Tags, 1)
	assert.Equal(t, "music", g.Tags[0].Tagname)

	assert.ErrorIs(t, svc.DeleteTag(ctx, admin, tag.ID), ticketing.ErrConflict)

	renamed, err := svc.RenameTag(ctx, admin, tag.ID, "live music")
	require.NoError(t, err)
	assert.Equal(t, "live music", renamed.Tagname)

	require.NoError(t, svc.RemoveTagFromGroup(ctx, admin, "club1", tag.ID))
	tags, err := svc.TagsOfGroup(ctx, "club1")
	require.NoError(t, err)
	assert.Empty(t, tags)
	require.NoError(t, svc.DeleteTag(ctx, admin, tag.ID))
}

func TestOwners(t *testing.T) {
	svc, admin := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateGroup(ctx, admin, &model.Group{ID: "club1", Groupname: "c", Type: model.GroupTypeClub}))

	_, err := svc.GrantOwner(ctx, admin, "ghost", "u1", "")
	assert.ErrorIs(t, err, ticketing.ErrNotFound)
	_, err = svc.GrantOwner(ctx, admin, "club1", "u1", "lead")
	require.NoError(t, err)
	_, err = svc.GrantOwner(ctx, admin, "club1", "u1", "lead")
	assert.ErrorIs(t, err, ticketing.ErrConflict)

	owners, err := svc.ListOwners(ctx, identity.Claims{Sub: "u1"}, "club1")
	require.NoError(t, err)
	require.Len(t, owners, 1)
	assert.Equal(t, "lead", owners[0].Note)

	require.NoError(t, svc.RevokeOwner(ctx, admin, "club1", "u1"))
	_, err = svc.ListOwners(ctx, identity.Claims{Sub: "u1"}, "club1")
	assert.ErrorIs(t, err, ticketing.ErrForbidden)
}

func TestNews(t *testing.T) {
	svc, admin := newService(t)
	svc.clk = clock.NewFake(start)
	ctx := context.Background()
	chief := identity.Claims{Sub: "chief", Groups: []string{identity.DefaultDirectory().Memberships[identity.RoleChief]}}

	n := &model.News{Title: "Gates open at nine", Author: "committee"}
	assert.ErrorIs(t, svc.CreateNews(ctx, identity.Claims{Sub: "visitor"}, n), ticketing.ErrForbidden)
	require.NoError(t, svc.CreateNews(ctx, chief, n))
	assert.Equal(t, clock.Format(start), n.Timestamp)

	var ve *ticketing.ValidationError
	require.ErrorAs(t, svc.CreateNews(ctx, admin, &model.News{Title: "no author"}), &ve)
	assert.Equal(t, "author", ve.Field)
	long := strings.Repeat("x", maxNewsDetailLen+1)
	assert.ErrorIs(t, svc.CreateNews(ctx, admin, &model.News{Title: "t", Author: "a", Detail: &long}), ticketing.ErrValidation)

	updated, err := svc.UpdateNews(ctx, admin, n.ID, NewsPatch{Detail: ptr("Bring your ticket")})
	require.NoError(t, err)
	assert.Equal(t, "Gates open at nine", updated.Title)
	assert.Equal(t, "Bring your ticket", *updated.Detail)
	assert.Equal(t, n.Timestamp, updated.Timestamp)

	list, err := svc.ListNews(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.ErrorIs(t, svc.DeleteNews(ctx, identity.Claims{Sub: "visitor"}, n.ID), ticketing.ErrForbidden)
	require.NoError(t, svc.DeleteNews(ctx, chief, n.ID))
	_, err = svc.GetNews(ctx, n.ID)
	assert.ErrorIs(t, err, ticketing.ErrNotFound)
	_, err = svc.UpdateNews(ctx, admin, n.ID, NewsPatch{})
	assert.ErrorIs(t, err, ticketing.ErrNotFound)
}

func TestHebeBoards(t *testing.T) {
	svc, admin := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateGroup(ctx, admin, &model.Group{ID: "stage1", Groupname: "s", Type: model.GroupTypeHebe}))
	require.NoError(t, svc.CreateGroup(ctx, admin, &model.Group{ID: "club1", Groupname: "c", Type: model.GroupTypeClub}))

	_, err := svc.HebeBoard(ctx, model.HebeNowPlaying)
	assert.ErrorIs(t, err, ticketing.ErrNotFound)
	_, err = svc.HebeBoard(ctx, "backstage")
	assert.ErrorIs(t, err, ticketing.ErrValidation)

	_, err = svc.SetHebeBoard(ctx, identity.Claims{Sub: "visitor"}, model.HebeNowPlaying, "stage1")
	assert.ErrorIs(t, err, ticketing.ErrForbidden)
	_, err = svc.SetHebeBoard(ctx, admin, model.HebeNowPlaying, "club1")
	assert.ErrorIs(t, err, ticketing.ErrValidation)
	_, err = svc.SetHebeBoard(ctx, admin, model.HebeNowPlaying, "ghost")
	assert.ErrorIs(t, err, ticketing.ErrNotFound)

	_, err = svc.SetHebeBoard(ctx, admin, model.HebeUpNext, "stage1")
	require.NoError(t, err)
	b, err := svc.HebeBoard(ctx, model.HebeUpNext)
	require.NoError(t, err)
	assert.Equal(t, "stage1", b.GroupID)

	assert.ErrorIs(t, svc.DeleteGroup(ctx, admin, "stage1"), ticketing.ErrConflict)
}
