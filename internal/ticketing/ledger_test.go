package ticketing

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/festival-ticketing/internal/authz"
	"github.com/iliyamo/festival-ticketing/internal/clock"
	"github.com/iliyamo/festival-ticketing/internal/database"
	"github.com/iliyamo/festival-ticketing/internal/database/dbtest"
	"github.com/iliyamo/festival-ticketing/internal/identity"
	"github.com/iliyamo/festival-ticketing/internal/model"
	"github.com/iliyamo/festival-ticketing/internal/repository"
)

// showtime is the start of the default test performance; its sell window
// is the preceding day.
var showtime = time.Date(2023, 9, 16, 10, 0, 0, 0, clock.JST)

type recorder struct {
	mu        sync.Mutex
	issued    []model.Ticket
	cancelled []model.Ticket
	dropped   []string
}

func (r *recorder) TicketIssued(_ context.Context, t model.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issued = append(r.issued, t)
}

func (r *recorder) TicketCancelled(_ context.Context, t model.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, t)
}

func (r *recorder) Invalidate(_ context.Context, kind, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped = append(r.dropped, kind+":"+id)
}

type fixture struct {
	db     *sql.DB
	clk    *clock.Fake
	dir    identity.Directory
	rec    *recorder
	ledger *Ledger
	votes  *VoteLedger
}

func newFixture(t *testing.T, tweak ...func(*Policy)) *fixture {
	t.Helper()
	db := dbtest.New(t)
	p := DefaultPolicy()
	p.FamilyTicketSellStarts = showtime.Add(-48 * time.Hour)
	for _, fn := range tweak {
		fn(&p)
	}
	roles := identity.MustDefaultResolver()
	az := authz.New(roles, repository.NewOwnerRepo(db))
	clk := clock.NewFake(showtime.Add(-time.Hour))
	rec := &recorder{}
	opts := Options{Clock: clk, Notifier: rec, Cache: rec}
	return &fixture{
		db:     db,
		clk:    clk,
		dir:    identity.DefaultDirectory(),
		rec:    rec,
		ledger: NewLedger(db, database.SQLite, az, p, opts),
		votes:  NewVoteLedger(db, database.SQLite, roles, p, opts),
	}
}

// user returns claims for a distinct visitor holding the given roles.
func (f *fixture) user(id string, roles ...identity.Role) identity.Claims {
	c := identity.Claims{Sub: "sub-" + id, OID: id, Iss: identity.IssuerB2C}
	for _, r := range roles {
		c.Groups = append(c.Groups, f.dir.Memberships[r])
	}
	return c
}

func (f *fixture) group(t *testing.T, id, typ string) {
	t.Helper()
	require.NoError(t, repository.NewGroupRepo(f.db).Create(context.Background(), &model.Group{
		ID: id, Groupname: id, Type: typ, EnableVote: true,
	}))
}

func (f *fixture) event(t *testing.T, groupID, target string, stock int, start time.Time) *model.Event {
	t.Helper()
	e := &model.Event{
		GroupID: groupID, Eventname: "performance", Target: target, TicketStock: stock,
		StartsAt: start, EndsAt: start.Add(time.Hour),
		SellStarts: start.Add(-24 * time.Hour), SellEnds: start,
	}
	require.NoError(t, repository.NewEventRepo(f.db).Create(context.Background(), e))
	return e
}

func TestCreateTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.group(t, "club1", model.GroupTypeClub)
	ev := f.event(t, "club1", "everyone", 10, showtime)

	tk, err := f.ledger.CreateTicket(ctx, f.user("u1"), ev.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, model.TicketActive, tk.Status)
	assert.Equal(t, "u1", tk.OwnerID)
	assert.Equal(t, "club1", tk.GroupID)
	assert.Equal(t, 3, tk.Person)
	assert.False(t, tk.IsFamilyTicket)

	n, err := f.ledger.TicketsNumber(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketsNumber{Taken: 3, Left: 7, Stock: 10}, n)

	require.Len(t, f.rec.issued, 1)
	assert.Equal(t, tk.ID, f.rec.issued[0].ID)
	assert.Contains(t, f.rec.dropped, KindTickets+":"+ev.ID)

	ok, err := f.ledger.IsAvailable(ctx, tk.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateTicketRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.group(t, "club1", model.GroupTypeClub)
	open := f.event(t, "club1", "everyone", 10, showtime)
	students := f.event(t, "club1", "student", 10, showtime.Add(2*time.Hour))
	empty := f.event(t, "club1", "everyone", 0, showtime.Add(4*time.Hour))
	later := f.event(t, "club1", "everyone", 10, showtime.Add(48*time.Hour))

	_, err := f.ledger.CreateTicket(ctx, f.user("u1"), "missing", 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.ledger.CreateTicket(ctx, f.user("u1", identity.RoleGuest), students.ID, 1)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.ledger.CreateTicket(ctx, f.user("u1"), later.ID, 1)
	assert.ErrorIs(t, err, ErrOutOfWindow)

	_, err = f.ledger.CreateTicket(ctx, f.user("u1"), empty.ID, 1)
	assert.ErrorIs(t, err, ErrSoldOut)

	// stock is checked before the party size
	_, err = f.ledger.CreateTicket(ctx, f.user("u1"), empty.ID, 0)
	assert.ErrorIs(t, err, ErrSoldOut)

	_, err = f.ledger.CreateTicket(ctx, f.user("u1"), open.ID, 4)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.ledger.CreateTicket(ctx, f.user("u1"), open.ID, 0)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.ledger.CreateTicket(ctx, f.user("u1", identity.RoleStudent), students.ID, 1)
	assert.NoError(t, err)
	assert.Len(t, f.rec.issued, 1)
}

func TestSellWindowIsExclusive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.group(t, "club1", model.GroupTypeClub)
	ev := f.event(t, "club1", "everyone", 10, showtime)

	f.clk.Set(ev.SellStarts)
	_, err := f.ledger.CreateTicket(ctx, f.user("u1"), ev.ID, 1)
	assert.ErrorIs(t, err, ErrOutOfWindow)

	f.clk.Set(ev.SellEnds)
	_, err = f.ledger.CreateTicket(ctx, f.user("u1"), ev.ID, 1)
	assert.ErrorIs(t, err, ErrOutOfWindow)

	f.clk.Set(ev.SellStarts.Add(time.Nanosecond))
	_, err = f.ledger.CreateTicket(ctx, f.user("u1"), ev.ID, 1)
	assert.NoError(t, err)
}

func TestCapacityIsExact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.group(t, "club1", model.GroupTypeClub)
	ev := f.event(t, "club1", "everyone", 5, showtime)

	_, err := f.ledger.CreateTicket(ctx, f.user("u1"), ev.ID, 3)
	require.NoError(t, err)
	_, err = f.ledger.CreateTicket(ctx, f.user("u2"), ev.ID, 3)
	assert.ErrorIs(t, err, ErrSoldOut)
	_, err = f.ledger.CreateTicket(ctx, f.user("u2"), ev.ID, 2)
	require.NoError(t, err)

	taken, err := f.ledger.TakenCount(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, taken)
}

func TestOverlappingTicketsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.group(t, "club1", model.GroupTypeClub)
	first := f.event(t, "club1", "everyone", 10, showtime)
	overlapping := f.event(t, "club1", "everyone", 10, showtime.Add(30*time.Minute))
	touching := f.event(t, "club1", "everyone", 10, showtime.Add(time.Hour))

	u := f.user("u1")
	_, err := f.ledger.CreateTicket(ctx, u, first.ID, 1)
	require.NoError(t, err)

	_, err = f.ledger.CreateTicket(ctx, u, first.ID, 1)
	assert.ErrorIs(t, err, ErrNotQualified, "second ticket for the same event")

	_, err = f.ledger.CreateTicket(ctx, u, overlapping.ID, 1)
	assert.ErrorIs(t, err, ErrNotQualified)

	_, err = f.ledger.CreateTicket(ctx, u, touching.ID, 1)
	assert.NoError(t, err)
}

func TestLifetimeCapThroughLedger(t *testing.T) {
	for _, tc := range []struct {
		name      string
		inclusive bool
		accepted  int
	}{
		{"strict", false, 3},
		{"inclusive", true, 2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, func(p *Policy) {
				p.MaxTickets = 2
				p.InclusiveLifetimeCap = tc.inclusive
			})
			ctx := context.Background()
			f.group(t, "club1", model.GroupTypeClub)
			u := f.user("u1")
			got := 0
			for i := range 4 {
				ev := f.event(t, "club1", "everyone", 10, showtime.Add(time.Duration(2*i)*time.Hour))
				f.clk.Set(ev.StartsAt.Add(-time.Minute))
				if _, err := f.ledger.CreateTicket(ctx, u, ev.ID, 1); err == nil {
					got++
				} else {
					assert.ErrorIs(t, err, ErrNotQualified)
				}
			}
			assert.Equal(t, tc.accepted, got)
		})
	}
}

func TestCancelledTicketsFreeStockAndEligibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.group(t, "club1", model.GroupTypeClub)
	ev := f.event(t, "club1", "everyone", 2, showtime)
	u := f.user("u1")

	tk, err := f.ledger.CreateTicket(ctx, u, ev.ID, 2)
	require.NoError(t, err)

	_, err = f.ledger.CancelTicket(ctx, f.user("intruder"), tk.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.ledger.CancelTicket(ctx, u, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := f.ledger.CancelTicket(ctx, u, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketCancelled, got.Status)
	_, err = f.ledger.CancelTicket(ctx, u, tk.ID)
	assert.NoError(t, err, "cancelling twice is a no-op")
	require.Len(t, f.rec.cancelled, 1)

	ok, err := f.ledger.IsAvailable(ctx, tk.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.ledger.CreateTicket(ctx, u, ev.ID, 2)
	assert.NoError(t, err)
}

func TestUseTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.group(t, "club1", model.GroupTypeClub)
	ev := f.event(t, "club1", "everyone", 10, showtime)
	u := f.user("u1")
	tk, err := f.ledger.CreateTicket(ctx, u, ev.ID, 1)
	require.NoError(t, err)

	_, err = f.ledger.UseTicket(ctx, f.user("guest", identity.RoleGuest), tk.ID)
	assert.ErrorIs(t, err, ErrAlreadyUsed)

	used, err := f.ledger.UseTicket(ctx, f.user("staff", identity.RoleEntry), tk.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketUsed, used.Status)

	_, err = f.ledger.UseTicket(ctx, f.user("staff", identity.RoleEntry), tk.ID)
	assert.ErrorIs(t, err, ErrAlreadyUsed)
	_, err = f.ledger.UseTicket(ctx, f.user("staff", identity.RoleEntry), "missing")
	assert.ErrorIs(t, err, ErrAlreadyUsed)

	_, err = f.ledger.CancelTicket(ctx, u, tk.ID)
	assert.ErrorIs(t, err, ErrAlreadyUsed)

	// used tickets still hold their seats
	taken, err := f.ledger.TakenCount(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, taken)
}

func TestUseTicketHidesExistenceFromOutsiders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.group(t, "club1", model.GroupTypeClub)
	ev := f.event(t, "club1", "everyone", 10, showtime)
	tk, err := f.ledger.CreateTicket(ctx, f.user("u1"), ev.ID, 1)
	require.NoError(t, err)

	outsider := f.user("guest", identity.RoleGuest)
	_, existing := f.ledger.UseTicket(ctx, outsider, tk.ID)
	_, missing := f.ledger.UseTicket(ctx, outsider, "01890000-0000-7000-8000-000000000000")
	require.Error(t, existing)
	require.Error(t, missing)
	assert.ErrorIs(t, existing, ErrAlreadyUsed)
	assert.ErrorIs(t, missing, ErrAlreadyUsed)
	assert.Equal(t, missing.Error(), existing.Error())

	ok, err := f.ledger.IsAvailable(ctx, tk.ID)
	require.NoError(t, err)
	assert.True(t, ok, "a refused punch leaves the ticket active")
}

func TestGroupOwnerMayPunchOwnTickets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.group(t, "club1", model.GroupTypeClub)
	f.group(t, "club2", model.GroupTypeClub)
	ev := f.event(t, "club1", "everyone", 10, showtime)
	tk, err := f.ledger.CreateTicket(ctx, f.user("u1"), ev.ID, 1)
	require.NoError(t, err)

	owners := repository.NewOwnerRepo(f.db)
	_, err = owners.Grant(ctx, "club2", "other-owner", "")
	require.NoError(t, err)
	_, err = owners.Grant(ctx, "club1", "club-owner", "")
	require.NoError(t, err)

	_, err = f.ledger.UseTicket(ctx, f.user("other-owner"), tk.ID)
	assert.ErrorIs(t, err, ErrAlreadyUsed)
	_, err = f.ledger.UseTicket(ctx, f.user("club-owner"), tk.ID)
	assert.NoError(t, err)

	ids, err := f.ledger.ListActiveTicketIDs(ctx, f.user("club-owner"), ev.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
	_, err = f.ledger.ListActiveTicketIDs(ctx, f.user("other-owner"), ev.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAdminCreateTicketSkipsWindowAndEligibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.group(t, "club1", model.GroupTypeClub)
	ev := f.event(t, "club1", "everyone", 3, showtime.Add(72*time.Hour))
	admin := f.user("admin", identity.RoleAdmin)

	_, err := f.ledger.AdminCreateTicket(ctx, f.user("u1"), ev.ID, 1)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.ledger.AdminCreateTicket(ctx, admin, ev.ID, 2)
	require.NoError(t, err)
	_, err = f.ledger.AdminCreateTicket(ctx, admin, ev.ID, 1)
	require.NoError(t, err, "overlap with own ticket is not checked")
	_, err = f.ledger.AdminCreateTicket(ctx, admin, ev.ID, 1)
	assert.ErrorIs(t, err, ErrSoldOut)
}

func TestFamilyTickets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.group(t, "11r", model.GroupTypePlay)
	f.group(t, "12r", model.GroupTypePlay)
	ev := f.event(t, "11r", "student", 10, showtime)
	other := f.event(t, "12r", "student", 10, showtime)

	parent := identity.Claims{Sub: "p", OID: "parent-1", Groups: []string{f.dir.ClassParents["11r"]}}

	_, err := f.ledger.CreateFamilyTicket(ctx, parent, other.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	f.clk.Set(showtime.Add(-48 * time.Hour))
	_, err = f.ledger.CreateFamilyTicket(ctx, parent, ev.ID)
	assert.ErrorIs(t, err, ErrOutOfWindow)
	f.clk.Set(showtime.Add(-time.Hour))

	first, err := f.ledger.CreateFamilyTicket(ctx, parent, ev.ID)
	require.NoError(t, err)
	assert.True(t, first.IsFamilyTicket)
	assert.Equal(t, 1, first.Person)

	// the family pool ignores overlap with the parent's own tickets
	_, err = f.ledger.CreateFamilyTicket(ctx, parent, ev.ID)
	require.NoError(t, err)

	_, err = f.ledger.CreateFamilyTicket(ctx, parent, ev.ID)
	assert.ErrorIs(t, err, ErrNotQualified)
}

func TestFamilyPoolClosedWithoutSellStart(t *testing.T) {
	f := newFixture(t, func(p *Policy) { p.FamilyTicketSellStarts = time.Time{} })
	ctx := context.Background()
	f.group(t, "11r", model.GroupTypePlay)
	ev := f.event(t, "11r", "student", 10, showtime)
	parent := identity.Claims{Sub: "p", OID: "parent-1", Groups: []string{f.dir.ClassParents["11r"]}}

	for _, at := range []time.Time{showtime.Add(-30 * 24 * time.Hour), showtime.Add(-time.Hour)} {
		f.clk.Set(at)
		_, err := f.ledger.CreateFamilyTicket(ctx, parent, ev.ID)
		assert.ErrorIs(t, err, ErrOutOfWindow)
	}
	taken, err := f.ledger.TakenCount(ctx, ev.ID)
	require.NoError(t, err)
	assert.Zero(t, taken)
}

func TestPaperTickets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.group(t, "club1", model.GroupTypeClub)
	paper := f.event(t, "club1", "paper", 1, showtime)
	digital := f.event(t, "club1", "everyone", 10, showtime)
	chief := f.user("chief", identity.RoleChief)

	_, err := f.ledger.CreatePaperTicket(ctx, f.user("u1"), paper.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.ledger.CreatePaperTicket(ctx, chief, digital.ID)
	assert.ErrorIs(t, err, ErrValidation)

	tk, err := f.ledger.CreatePaperTicket(ctx, chief, paper.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketPaper, tk.Status)

	// paper tickets stay outside the stock formula
	_, err = f.ledger.CreatePaperTicket(ctx, chief, paper.ID)
	require.NoError(t, err)
	n, err := repository.NewTicketRepo(f.db).CountPaper(ctx, paper.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// nobody satisfies the paper target online
	_, err = f.ledger.CreateTicket(ctx, f.user("admin", identity.RoleAdmin), paper.ID, 1)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.ledger.RetractPaperTicket(ctx, f.user("u1"), paper.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	for range 2 {
		_, err = f.ledger.RetractPaperTicket(ctx, chief, paper.ID)
		require.NoError(t, err)
	}
	_, err = f.ledger.RetractPaperTicket(ctx, chief, paper.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.ledger.RetractPaperTicket(ctx, chief, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentIssuanceNeverOversells(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.group(t, "club1", model.GroupTypeClub)
	ev := f.event(t, "club1", "everyone", 20, showtime)

	const requests = 25
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ok   int
		sold int
	)
	for i := range requests {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.ledger.CreateTicket(ctx, f.user(fmt.Sprintf("u%02d", i)), ev.ID, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, ErrSoldOut):
				sold++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, ok)
	assert.Equal(t, 5, sold)
	taken, err := f.ledger.TakenCount(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, taken)
}

func TestConcurrentRequestsBySameUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.group(t, "club1", model.GroupTypeClub)
	ev := f.event(t, "club1", "everyone", 20, showtime)
	u := f.user("u1")

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.ledger.CreateTicket(ctx, u, ev.ID, 1)
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, ErrNotQualified)
	}
	assert.Equal(t, 1, won)

	tickets, err := f.ledger.ListUserTickets(ctx, u)
	require.NoError(t, err)
	assert.Len(t, tickets, 1)
}

func TestPerDayCapThroughLedger(t *testing.T) {
	f := newFixture(t, func(p *Policy) { p.MaxTicketsPerDay = 2 })
	ctx := context.Background()
	f.group(t, "club1", model.GroupTypeClub)
	u := f.user("u1")

	var errs []error
	for i := range 3 {
		ev := f.event(t, "club1", "everyone", 10, showtime.Add(time.Duration(2*i)*time.Hour))
		f.clk.Set(ev.StartsAt.Add(-time.Minute))
		_, err := f.ledger.CreateTicket(ctx, u, ev.ID, 1)
		errs = append(errs, err)
	}
	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assert.ErrorIs(t, errs[2], ErrNotQualified)

	next := f.event(t, "club1", "everyone", 10, showtime.Add(24*time.Hour))
	f.clk.Set(next.StartsAt.Add(-time.Minute))
	_, err := f.ledger.CreateTicket(ctx, u, next.ID, 1)
	assert.NoError(t, err, "the cap resets on the next day")
}
