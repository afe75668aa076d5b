// festival-import loads a performance schedule sheet into the database.
// It runs the same parser and the same all-or-nothing insert as the
// HTTP import, for operators working next to the database.
//
//	festival-import --driver sqlite --sqlite-path festival.db schedule.csv
//	festival-import --dry-run schedule.csv
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/iliyamo/festival-ticketing/internal/cache"
	"github.com/iliyamo/festival-ticketing/internal/config"
	"github.com/iliyamo/festival-ticketing/internal/database"
	"github.com/iliyamo/festival-ticketing/internal/identity"
	"github.com/iliyamo/festival-ticketing/internal/importer"
	"github.com/iliyamo/festival-ticketing/internal/model"
	"github.com/iliyamo/festival-ticketing/internal/ticketing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	driver     string
	host       string
	port       string
	user       string
	pass       string
	name       string
	sqlitePath string
	roles      string
	migrate    bool
	dryRun     bool
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func run() error {
	_ = godotenv.Load()

	var o options
	flagSet := pflag.NewFlagSet("festival-import", pflag.ContinueOnError)
	flagSet.StringVar(&o.driver, "driver", envOr("DB_DRIVER", "mysql"), "database driver: mysql or sqlite")
	flagSet.StringVar(&o.host, "db-host", envOr("DB_HOST", "localhost"), "MySQL host")
	flagSet.StringVar(&o.port, "db-port", envOr("DB_PORT", "3306"), "MySQL port")
	flagSet.StringVar(&o.user, "db-user", os.Getenv("DB_USER"), "MySQL user")
	flagSet.StringVar(&o.name, "db-name", os.Getenv("DB_NAME"), "MySQL database")
	flagSet.StringVar(&o.sqlitePath, "sqlite-path", envOr("SQLITE_PATH", "festival.db"), "SQLite database file")
	flagSet.StringVar(&o.roles, "roles", os.Getenv("ROLE_DIRECTORY_FILE"), "YAML role directory overlay used to check event targets")
	flagSet.BoolVar(&o.migrate, "migrate", false, "create missing tables before importing")
	flagSet.BoolVarP(&o.dryRun, "dry-run", "n", false, "parse and validate the sheet without writing")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	// the password stays out of the flag set so it never shows in ps
	o.pass = os.Getenv("DB_PASS")

	args := flagSet.Args()
	if len(args) != 1 {
		printHelp(flagSet)
		return errors.New("expected exactly one sheet path, or - for stdin")
	}
	var src io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dir, err := config.LoadDirectory(o.roles)
	if err != nil {
		return err
	}
	roles, err := identity.NewResolver(dir)
	if err != nil {
		return err
	}

	name := o.name
	if o.driver == string(database.SQLite) {
		name = o.sqlitePath
	}
	db, dialect, err := database.Open(o.driver, o.user, o.pass, o.host, o.port, name)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if o.migrate {
		if err := database.Migrate(ctx, db, dialect); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	im := importer.New(db, roles, logger)
	var events []*model.Event
	if o.dryRun {
		events, err = im.Parse(src)
	} else {
		events, err = im.Import(ctx, src)
	}
	if err != nil {
		report(err)
		return errors.New("sheet rejected, nothing was written")
	}

	if !o.dryRun {
		invalidate(ctx, events, logger)
	}
	verb := "imported"
	if o.dryRun {
		verb = "validated"
	}
	fmt.Printf("%s %d events\n", verb, len(events))
	return nil
}

// invalidate drops cached group pages of the server when Redis is
// reachable, so the new events show up before the cache expires.
func invalidate(ctx context.Context, events []*model.Event, logger *slog.Logger) {
	rdb := config.NewRedisClient()
	if rdb == nil {
		return
	}
	defer rdb.Close()
	store := cache.New(rdb, config.LoadCacheConfig(), logger)
	seen := map[string]bool{}
	for _, e := range events {
		if !seen[e.GroupID] {
			seen[e.GroupID] = true
			store.Invalidate(ctx, ticketing.KindGroup, e.GroupID)
		}
	}
}

func report(err error) {
	var leaves []error
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		leaves = j.Unwrap()
	} else {
		leaves = []error{err}
	}
	for _, e := range leaves {
		var re *importer.RowError
		if errors.As(e, &re) && re.Row > 0 {
			fmt.Fprintf(os.Stderr, "row %d: %v\n", re.Row, re.Err)
			continue
		}
		fmt.Fprintf(os.Stderr, "%v\n", e)
	}
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `festival-import loads a schedule sheet (9 or 12 columns) into the events table.

Either every row is inserted or none is. Rejected rows are listed on stderr.
Database settings default to the server's environment variables (DB_DRIVER,
DB_HOST, DB_PORT, DB_USER, DB_PASS, DB_NAME, SQLITE_PATH).

Usage:
  festival-import [flags] <sheet.csv | ->

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
