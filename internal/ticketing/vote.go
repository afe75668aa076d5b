package ticketing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iliyamo/festival-ticketing/internal/clock"
	"github.com/iliyamo/festival-ticketing/internal/database"
	"github.com/iliyamo/festival-ticketing/internal/identity"
	"github.com/iliyamo/festival-ticketing/internal/model"
	"github.com/iliyamo/festival-ticketing/internal/repository"
)

// VoteLedger records visitor votes for groups. A visitor votes at most
// once per group and MaxVotesPerUser times overall, and only for a group
// whose performance they attended.
type VoteLedger struct {
	db      *sql.DB
	dialect database.Dialect
	roles   *identity.Resolver
	policy  Policy
	opts    Options

	groups  *repository.GroupRepo
	tickets *repository.TicketRepo
	votes   *repository.VoteRepo
	holders *repository.HolderRepo
}

// NewVoteLedger constructs a VoteLedger.
func NewVoteLedger(db *sql.DB, d database.Dialect, roles *identity.Resolver, p Policy, opts Options) *VoteLedger {
	if db == nil || roles == nil {
		panic("nil dependency passed to NewVoteLedger")
	}
	return &VoteLedger{
		db:      db,
		dialect: d,
		roles:   roles,
		policy:  p,
		opts:    opts.withDefaults(),
		groups:  repository.NewGroupRepo(db),
		tickets: repository.NewTicketRepo(db),
		votes:   repository.NewVoteRepo(db),
		holders: repository.NewHolderRepo(db, d),
	}
}

// checkTx evaluates every vote rule under the caller's holder lock.
func (v *VoteLedger) checkTx(ctx context.Context, tx *sql.Tx, c identity.Claims, groupID string) error {
	if !v.roles.HasAny(c, identity.RoleGuest, identity.RoleParents) {
		return ErrForbidden
	}
	user := c.OwnerID()
	if err := v.holders.LockTx(ctx, tx, user); err != nil {
		return fmt.Errorf("lock holder: %w", err)
	}
	g, err := v.groups.GetTx(ctx, tx, groupID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: group %s", ErrNotFound, groupID)
	}
	if err != nil {
		return err
	}
	if !g.EnableVote {
		return Invalid("group_id", "voting is disabled for this group")
	}
	n, err := v.votes.CountByUserTx(ctx, tx, user)
	if err != nil {
		return err
	}
	if n >= v.policy.MaxVotesPerUser {
		return notQualified("vote limit reached")
	}
	voted, err := v.votes.ExistsTx(ctx, tx, user, groupID)
	if err != nil {
		return err
	}
	if voted {
		return notQualified("already voted for this group")
	}
	attended, err := v.tickets.HasAttendedTx(ctx, tx, user, groupID, clock.Format(v.opts.Clock.Now()))
	if err != nil {
		return err
	}
	if !attended {
		return notQualified("no finished performance attended")
	}
	return nil
}

// CreateVote records a vote by the caller for groupID.
func (v *VoteLedger) CreateVote(ctx context.Context, c identity.Claims, groupID string) (*model.Vote, error) {
	tx, err := v.db.BeginTx(ctx, txOptions(v.dialect))
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := v.checkTx(ctx, tx, c, groupID); err != nil {
		return nil, err
	}
	vote := &model.Vote{GroupID: groupID, UserID: c.OwnerID()}
	if err := v.votes.CreateTx(ctx, tx, vote); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, notQualified("already voted for this group")
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	v.opts.Logger.InfoContext(ctx, "vote recorded", slog.String("group_id", groupID))
	v.opts.Cache.Invalidate(ctx, KindVotes, groupID)
	return vote, nil
}

// IsVotable reports whether CreateVote would currently accept the
// caller's vote for groupID. Rule violations yield false; lookup and
// database failures are returned.
func (v *VoteLedger) IsVotable(ctx context.Context, c identity.Claims, groupID string) (bool, error) {
	tx, err := v.db.BeginTx(ctx, txOptions(v.dialect))
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()
	err = v.checkTx(ctx, tx, c, groupID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, err
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrValidation), errors.Is(err, ErrNotQualified):
		return false, nil
	}
	return false, err
}

// UserVoteCount returns how many votes the caller has cast.
func (v *VoteLedger) UserVoteCount(ctx context.Context, c identity.Claims) (int, error) {
	return v.votes.CountByUser(ctx, c.OwnerID())
}

// UserVotes lists the caller's votes.
func (v *VoteLedger) UserVotes(ctx context.Context, c identity.Claims) ([]model.Vote, error) {
	return v.votes.ListByUser(ctx, c.OwnerID())
}

// GroupVoteCount returns the votes received by groupID. Admins and
// chiefs only.
func (v *VoteLedger) GroupVoteCount(ctx context.Context, c identity.Claims, groupID string) (int, error) {
	if !v.roles.HasAny(c, identity.RoleAdmin, identity.RoleChief) {
		return 0, ErrForbidden
	}
	return v.votes.CountByGroup(ctx, groupID)
}
