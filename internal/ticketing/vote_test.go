package ticketing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/festival-ticketing/internal/identity"
	"github.com/iliyamo/festival-ticketing/internal/model"
	"github.com/iliyamo/festival-ticketing/internal/repository"
)

// attend gives the visitor a ticket for a fresh performance of groupID
// that starts at start.
func (f *fixture) attend(t *testing.T, c identity.Claims, groupID string, start time.Time) {
	t.Helper()
	ev := f.event(t, groupID, "everyone", 10, start)
	f.clk.Set(start.Add(-time.Minute))
	_, err := f.ledger.CreateTicket(context.Background(), c, ev.ID, 1)
	require.NoError(t, err)
}

func TestVoteRequiresFinishedPerformance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.group(t, "club1", model.GroupTypeClub)
	guest := f.user("g1", identity.RoleGuest)

	_, err := f.votes.CreateVote(ctx, guest, "club1")
	assert.ErrorIs(t, err, ErrNotQualified)

	f.attend(t, guest, "club1", showtime)

	ok, err := f.votes.IsVotable(ctx, guest, "club1")
	require.NoError(t, err)
	assert.False(t, ok, "performance has not ended yet")

	f.clk.Set(showtime.Add(2 * time.Hour))
	ok, err = f.votes.IsVotable(ctx, guest, "club1")
	require.NoError(t, err)
	assert.True(t, ok)

	v, err := f.votes.CreateVote(ctx, guest, "club1")
	require.NoError(t, err)
	assert.Equal(t, "g1", v.UserID)
	assert.Contains(t, f.rec.dropped, KindVotes+":club1")

	_, err = f.votes.CreateVote(ctx, guest, "club1")
	assert.ErrorIs(t, err, ErrNotQualified)

	n, err := f.votes.UserVoteCount(ctx, guest)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestVoteLimitPerUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	parent := f.user("p1", identity.RoleParents)
	for i, id := range []string{"club1", "club2", "club3"} {
		f.group(t, id, model.GroupTypeClub)
		f.attend(t, parent, id, showtime.Add(time.Duration(2*i)*time.Hour))
	}
	f.clk.Set(showtime.Add(24 * time.Hour))

	_, err := f.votes.CreateVote(ctx, parent, "club1")
	require.NoError(t, err)
	_, err = f.votes.CreateVote(ctx, parent, "club2")
	require.NoError(t, err)
	_, err = f.votes.CreateVote(ctx, parent, "club3")
	assert.ErrorIs(t, err, ErrNotQualified)

	votes, err := f.votes.UserVotes(ctx, parent)
	require.NoError(t, err)
	assert.Len(t, votes, 2)
}

func TestVoteRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.group(t, "club1", model.GroupTypeClub)
	require.NoError(t, repository.NewGroupRepo(f.db).Create(ctx, &model.Group{
		ID: "quiet", Groupname: "quiet", Type: model.GroupTypeClub, EnableVote: false,
	}))

	_, err := f.votes.CreateVote(ctx, f.user("s1", identity.RoleStudent), "club1")
	assert.ErrorIs(t, err, ErrForbidden)

	guest := f.user("g1", identity.RoleGuest)
	_, err = f.votes.CreateVote(ctx, guest, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.votes.IsVotable(ctx, guest, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.votes.CreateVote(ctx, guest, "quiet")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCancelledTicketDoesNotQualifyForVote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.group(t, "club1", model.GroupTypeClub)
	guest := f.user("g1", identity.RoleGuest)
	f.attend(t, guest, "club1", showtime)

	tickets, err := f.ledger.ListUserTickets(ctx, guest)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	_, err = f.ledger.CancelTicket(ctx, guest, tickets[0].ID)
	require.NoError(t, err)

	f.clk.Set(showtime.Add(2 * time.Hour))
	_, err = f.votes.CreateVote(ctx, guest, "club1")
	assert.ErrorIs(t, err, ErrNotQualified)
}

func TestGroupVoteCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.group(t, "club1", model.GroupTypeClub)
	for _, id := range []string{"g1", "g2"} {
		guest := f.user(id, identity.RoleGuest)
		f.attend(t, guest, "club1", showtime)
		f.clk.Set(showtime.Add(2 * time.Hour))
		_, err := f.votes.CreateVote(ctx, guest, "club1")
		require.NoError(t, err)
	}

	_, err := f.votes.GroupVoteCount(ctx, f.user("g1", identity.RoleGuest), "club1")
	assert.ErrorIs(t, err, ErrForbidden)

	n, err := f.votes.GroupVoteCount(ctx, f.user("chief", identity.RoleChief), "club1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
