package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL variant for the few statements that differ
// between the production MySQL and the embedded SQLite database.
type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

// Open connects to the database selected by driver. For sqlite, name is
// the database file and the other arguments are ignored.
func Open(driver, user, pass, host, port, name string) (*sql.DB, Dialect, error) {
	switch Dialect(driver) {
	case SQLite:
		db, err := OpenSQLite(name)
		return db, SQLite, err
	case MySQL:
		db, err := OpenMySQL(user, pass, host, port, name)
		return db, MySQL, err
	}
	return nil, "", fmt.Errorf("unsupported driver %q", driver)
}

// OpenMySQL connects to MySQL and verifies the connection.
func OpenMySQL(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// timestamps are ISO-8601 text, so no parseTime; clientFoundRows makes
	// RowsAffected count matched rows like SQLite does
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&loc=UTC&clientFoundRows=true",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := ping(db); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenSQLite opens an embedded database file (":memory:" for a private
// in-memory database). A single connection is kept so that every
// transaction is serialized and the in-memory database is shared.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	if err := ping(db); err != nil {
		return nil, err
	}
	return db, nil
}

func ping(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	return nil
}
