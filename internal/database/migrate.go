package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Timestamps are ISO-8601 text with an explicit +09:00 offset; the fixed
// offset keeps lexical and chronological order aligned.

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS festival_groups (
		id VARCHAR(16) NOT NULL PRIMARY KEY,
		groupname VARCHAR(200) NOT NULL,
		title VARCHAR(200) NULL,
		description TEXT NULL,
		type VARCHAR(16) NOT NULL,
		enable_vote BOOLEAN NOT NULL DEFAULT TRUE,
		twitter_url VARCHAR(255) NULL,
		instagram_url VARCHAR(255) NULL,
		stream_url VARCHAR(255) NULL,
		public_thumbnail_image_url VARCHAR(255) NULL,
		public_page_content_url VARCHAR(255) NULL,
		private_page_content_url VARCHAR(255) NULL,
		floor INT NULL,
		place VARCHAR(255) NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS tags (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		tagname VARCHAR(200) NOT NULL,
		UNIQUE KEY uq_tags_tagname (tagname)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS grouptags (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		group_id VARCHAR(16) NOT NULL,
		tag_id VARCHAR(36) NOT NULL,
		UNIQUE KEY uq_grouptags_pair (group_id, tag_id),
		FOREIGN KEY (group_id) REFERENCES festival_groups(id),
		FOREIGN KEY (tag_id) REFERENCES tags(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS grouplinks (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		group_id VARCHAR(16) NOT NULL,
		name VARCHAR(100) NOT NULL,
		linktext VARCHAR(1024) NOT NULL,
		FOREIGN KEY (group_id) REFERENCES festival_groups(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS groupowners (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		group_id VARCHAR(16) NOT NULL,
		user_id VARCHAR(255) NOT NULL,
		note VARCHAR(255) NOT NULL DEFAULT '',
		UNIQUE KEY uq_groupowners_pair (group_id, user_id),
		FOREIGN KEY (group_id) REFERENCES festival_groups(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS events (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		group_id VARCHAR(16) NOT NULL,
		eventname VARCHAR(200) NOT NULL,
		lottery BOOLEAN NOT NULL DEFAULT FALSE,
		target VARCHAR(32) NOT NULL,
		ticket_stock INT NOT NULL,
		starts_at VARCHAR(40) NOT NULL,
		ends_at VARCHAR(40) NOT NULL,
		sell_starts VARCHAR(40) NOT NULL,
		sell_ends VARCHAR(40) NOT NULL,
		issue_seq BIGINT NOT NULL DEFAULT 0,
		KEY idx_events_group (group_id),
		FOREIGN KEY (group_id) REFERENCES festival_groups(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		created_at VARCHAR(40) NOT NULL,
		group_id VARCHAR(16) NOT NULL,
		event_id VARCHAR(36) NOT NULL,
		owner_id VARCHAR(255) NOT NULL,
		person INT NOT NULL,
		status VARCHAR(16) NOT NULL,
		is_family_ticket BOOLEAN NOT NULL DEFAULT FALSE,
		KEY idx_tickets_event_status (event_id, status),
		KEY idx_tickets_owner_status (owner_id, status),
		FOREIGN KEY (group_id) REFERENCES festival_groups(id),
		FOREIGN KEY (event_id) REFERENCES events(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS votes (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		group_id VARCHAR(16) NOT NULL,
		user_id VARCHAR(255) NOT NULL,
		UNIQUE KEY uq_votes_user_group (user_id, group_id),
		FOREIGN KEY (group_id) REFERENCES festival_groups(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS ticket_holders (
		user_id VARCHAR(255) NOT NULL PRIMARY KEY,
		seq BIGINT NOT NULL DEFAULT 0
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS news (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		title VARCHAR(200) NOT NULL,
		timestamp VARCHAR(40) NOT NULL,
		author VARCHAR(50) NOT NULL,
		detail VARCHAR(500) NULL,
		KEY idx_news_timestamp (timestamp)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS hebe_boards (
		board VARCHAR(16) NOT NULL PRIMARY KEY,
		group_id VARCHAR(16) NOT NULL,
		FOREIGN KEY (group_id) REFERENCES festival_groups(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS festival_groups (
		id TEXT NOT NULL PRIMARY KEY,
		groupname TEXT NOT NULL,
		title TEXT NULL,
		description TEXT NULL,
		type TEXT NOT NULL,
		enable_vote BOOLEAN NOT NULL DEFAULT 1,
		twitter_url TEXT NULL,
		instagram_url TEXT NULL,
		stream_url TEXT NULL,
		public_thumbnail_image_url TEXT NULL,
		public_page_content_url TEXT NULL,
		private_page_content_url TEXT NULL,
		floor INTEGER NULL,
		place TEXT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tags (
		id TEXT NOT NULL PRIMARY KEY,
		tagname TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS grouptags (
		id TEXT NOT NULL PRIMARY KEY,
		group_id TEXT NOT NULL REFERENCES festival_groups(id),
		tag_id TEXT NOT NULL REFERENCES tags(id),
		UNIQUE (group_id, tag_id)
	)`,
	`CREATE TABLE IF NOT EXISTS grouplinks (
		id TEXT NOT NULL PRIMARY KEY,
		group_id TEXT NOT NULL REFERENCES festival_groups(id),
		name TEXT NOT NULL,
		linktext TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS groupowners (
		id TEXT NOT NULL PRIMARY KEY,
		group_id TEXT NOT NULL REFERENCES festival_groups(id),
		user_id TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		UNIQUE (group_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT NOT NULL PRIMARY KEY,
		group_id TEXT NOT NULL REFERENCES festival_groups(id),
		eventname TEXT NOT NULL,
		lottery BOOLEAN NOT NULL DEFAULT 0,
		target TEXT NOT NULL,
		ticket_stock INTEGER NOT NULL,
		starts_at TEXT NOT NULL,
		ends_at TEXT NOT NULL,
		sell_starts TEXT NOT NULL,
		sell_ends TEXT NOT NULL,
		issue_seq INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_group ON events (group_id)`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id TEXT NOT NULL PRIMARY KEY,
		created_at TEXT NOT NULL,
		group_id TEXT NOT NULL REFERENCES festival_groups(id),
		event_id TEXT NOT NULL REFERENCES events(id),
		owner_id TEXT NOT NULL,
		person INTEGER NOT NULL,
		status TEXT NOT NULL,
		is_family_ticket BOOLEAN NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_event_status ON tickets (event_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_owner_status ON tickets (owner_id, status)`,
	`CREATE TABLE IF NOT EXISTS votes (
		id TEXT NOT NULL PRIMARY KEY,
		group_id TEXT NOT NULL REFERENCES festival_groups(id),
		user_id TEXT NOT NULL,
		UNIQUE (user_id, group_id)
	)`,
	`CREATE TABLE IF NOT EXISTS ticket_holders (
		user_id TEXT NOT NULL PRIMARY KEY,
		seq INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS news (
		id TEXT NOT NULL PRIMARY KEY,
		title TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		author TEXT NOT NULL,
		detail TEXT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_news_timestamp ON news (timestamp)`,
	`CREATE TABLE IF NOT EXISTS hebe_boards (
		board TEXT NOT NULL PRIMARY KEY,
		group_id TEXT NOT NULL REFERENCES festival_groups(id)
	)`,
}

// Migrate creates every table that does not exist yet.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	schema := mysqlSchema
	if d == SQLite {
		schema = sqliteSchema
	}
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}
