// Package importer loads event schedules from CSV sheets. A sheet is
// validated completely before any row is written, and all rows are
// written in one transaction.
package importer

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/festival-ticketing/internal/clock"
	"github.com/iliyamo/festival-ticketing/internal/identity"
	"github.com/iliyamo/festival-ticketing/internal/model"
	"github.com/iliyamo/festival-ticketing/internal/repository"
	"github.com/iliyamo/festival-ticketing/internal/schedule"
	"github.com/iliyamo/festival-ticketing/internal/ticketing"
)

// Columns is the header of the canonical nine-column sheet.
var Columns = []string{
	"group_id", "eventname", "lottery", "target", "ticket_stock",
	"starts_at", "ends_at", "sell_starts", "sell_ends",
}

// dated sheets split the performance day from the clock times:
// group_id, eventname, lottery, target, ticket_stock, year, month, day,
// starts, ends, sell_starts, sell_ends.
const datedColumns = 12

// RowError reports a rejected sheet row. Row is 1-based and counts data
// rows only; Row 0 refers to the header.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	if e.Row == 0 {
		return "header: " + e.Err.Error()
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Importer turns sheets into events.
type Importer struct {
	db     *sql.DB
	roles  *identity.Resolver
	groups *repository.GroupRepo
	events *repository.EventRepo
	log    *slog.Logger
}

// New returns an Importer. logger may be nil.
func New(db *sql.DB, roles *identity.Resolver, logger *slog.Logger) *Importer {
	if db == nil || roles == nil {
		panic("nil dependency passed to importer.New")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		db:     db,
		roles:  roles,
		groups: repository.NewGroupRepo(db),
		events: repository.NewEventRepo(db),
		log:    logger,
	}
}

// Parse reads a nine- or twelve-column sheet and returns its events. It
// checks the header, the field syntax and the event invariants; every
// failing row is reported, joined into one error.
func (im *Importer) Parse(r io.Reader) ([]*model.Event, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, &RowError{Err: ticketing.Invalid("csv", err.Error())}
	}
	if len(records) == 0 {
		return nil, &RowError{Err: ticketing.Invalid("csv", "empty sheet")}
	}
	header, rows := records[0], records[1:]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var errs []error
	if len(header) == datedColumns {
		rows, errs = convertDated(rows)
	} else if err := checkHeader(header); err != nil {
		return nil, &RowError{Err: err}
	}

	var out []*model.Event
	for i, rec := range rows {
		if rec == nil {
			continue
		}
		e, err := im.parseRow(rec)
		if err != nil {
			errs = append(errs, &RowError{Row: i + 1, Err: err})
			continue
		}
		out = append(out, e)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func checkHeader(header []string) error {
	if len(header) != len(Columns) {
		return ticketing.Invalid("header", fmt.Sprintf("expected %d or %d columns, got %d", len(Columns), datedColumns, len(header)))
	}
	for i, name := range Columns {
		if strings.TrimSpace(header[i]) != name {
			return ticketing.Invalid("header", fmt.Sprintf("column %d is %q, want %q", i+1, header[i], name))
		}
	}
	return nil
}

// convertDated rewrites twelve-column rows into the nine-column form.
// Rows that cannot be converted are reported and left nil.
func convertDated(rows [][]string) ([][]string, []error) {
	out := make([][]string, len(rows))
	var errs []error
	for i, rec := range rows {
		if len(rec) != datedColumns {
			errs = append(errs, &RowError{Row: i + 1, Err: ticketing.Invalid("columns", fmt.Sprintf("expected %d fields", datedColumns))})
			continue
		}
		date, err := joinDate(rec[5], rec[6], rec[7])
		if err != nil {
			errs = append(errs, &RowError{Row: i + 1, Err: err})
			continue
		}
		conv := append([]string{}, rec[:5]...)
		ok := true
		for _, hms := range rec[8:12] {
			clockTime, err := padClock(hms)
			if err != nil {
				errs = append(errs, &RowError{Row: i + 1, Err: err})
				ok = false
				break
			}
			conv = append(conv, date+"T"+clockTime+"+09:00")
		}
		if ok {
			out[i] = conv
		}
	}
	return out, errs
}

func joinDate(year, month, day string) (string, error) {
	y, err1 := strconv.Atoi(strings.TrimSpace(year))
	m, err2 := strconv.Atoi(strings.TrimSpace(month))
	d, err3 := strconv.Atoi(strings.TrimSpace(day))
	if err := errors.Join(err1, err2, err3); err != nil {
		return "", ticketing.Invalid("date", "year, month and day must be numbers")
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d), nil
}

// padClock normalizes H:MM:SS to HH:MM:SS.
func padClock(s string) (string, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return "", ticketing.Invalid("time", fmt.Sprintf("%q is not H:MM:SS", s))
	}
	if len(parts[0]) == 1 {
		parts[0] = "0" + parts[0]
	}
	return strings.Join(parts, ":"), nil
}

// timestamp layouts accepted in the nine-column form. Layouts without an
// offset are read as Tokyo time.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

func parseTimestamp(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, clock.JST); err == nil {
			return t.In(clock.JST), nil
		}
	}
	return time.Time{}, ticketing.Invalid(field, fmt.Sprintf("%q is not an ISO-8601 timestamp", s))
}

func (im *Importer) parseRow(rec []string) (*model.Event, error) {
	if len(rec) != len(Columns) {
		return nil, ticketing.Invalid("columns", fmt.Sprintf("expected %d fields", len(Columns)))
	}
	for i := range rec {
		rec[i] = strings.TrimSpace(rec[i])
	}
	lottery, err := strconv.ParseBool(rec[2])
	if err != nil {
		return nil, ticketing.Invalid("lottery", fmt.Sprintf("%q is not a boolean", rec[2]))
	}
	stock, err := strconv.Atoi(rec[4])
	if err != nil {
		return nil, ticketing.Invalid("ticket_stock", fmt.Sprintf("%q is not an integer", rec[4]))
	}
	e := &model.Event{GroupID: rec[0], Eventname: rec[1], Lottery: lottery, Target: rec[3], TicketStock: stock}
	for i, dst := range []*time.Time{&e.StartsAt, &e.EndsAt, &e.SellStarts, &e.SellEnds} {
		t, err := parseTimestamp(Columns[5+i], rec[5+i])
		if err != nil {
			return nil, err
		}
		*dst = t
	}
	if err := schedule.ValidateEvent(im.roles, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Import parses the sheet, checks that every referenced group exists
// and inserts all events in a single transaction. Nothing is written if
// any row fails.
func (im *Importer) Import(ctx context.Context, r io.Reader) ([]*model.Event, error) {
	events, err := im.Parse(r)
	if err != nil {
		return nil, err
	}
	tx, err := im.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var errs []error
	known := map[string]bool{}
	for i, e := range events {
		ok, seen := known[e.GroupID]
		if !seen {
			if ok, err = im.groups.ExistsTx(ctx, tx, e.GroupID); err != nil {
				return nil, err
			}
			known[e.GroupID] = ok
		}
		if !ok {
			errs = append(errs, &RowError{Row: i + 1, Err: ticketing.Invalid("group_id", fmt.Sprintf("group %q does not exist", e.GroupID))})
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	for _, e := range events {
		if err := im.events.CreateTx(ctx, tx, e); err != nil {
			return nil, fmt.Errorf("insert event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	im.log.InfoContext(ctx, "schedule imported", slog.Int("events", len(events)))
	return events, nil
}
