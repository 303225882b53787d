package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect names accepted by Open.
const (
	SQLite   = "sqlite"
	MySQL    = "mysql"
	Postgres = "postgres"
)

type dialect struct {
	name   string
	driver string
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
}

func lookupDialect(name string) (dialect, error) {
	switch strings.ToLower(name) {
	case SQLite, "sqlite3":
		return dialect{name: SQLite, driver: "sqlite"}, nil
	case MySQL:
		return dialect{name: MySQL, driver: "mysql"}, nil
	case Postgres, "postgresql", "pgx":
		return dialect{name: Postgres, driver: "pgx", numbered: true}, nil
	}
	return dialect{}, fmt.Errorf("sqlstore: unknown dialect %q", name)
}

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(q string) string {
	if !d.numbered {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// schema is portable across the three engines: ids are bounded VARCHARs so
// MySQL accepts them as keys, and times are unix nanoseconds. A free dock
// stores a NULL truck, so the unique key on current_truck_id only binds
// occupied docks: a truck holds at most one.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS docks (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		type VARCHAR(16) NOT NULL,
		status VARCHAR(16) NOT NULL,
		current_truck_id VARCHAR(128) NULL UNIQUE,
		assigned_at BIGINT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		truck_id VARCHAR(128) NOT NULL,
		supplier VARCHAR(255) NOT NULL,
		dock_id VARCHAR(64) NOT NULL DEFAULT '',
		scheduled_time BIGINT NOT NULL,
		status VARCHAR(16) NOT NULL,
		type VARCHAR(16) NOT NULL,
		actual_arrival_time BIGINT NULL,
		loading_start_time BIGINT NULL,
		loading_end_time BIGINT NULL,
		departure_time BIGINT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS queue_entries (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		truck_id VARCHAR(128) NOT NULL,
		arrival_time BIGINT NOT NULL,
		appointment_id VARCHAR(64) NOT NULL UNIQUE,
		type VARCHAR(16) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS assignments (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		truck_id VARCHAR(128) NOT NULL,
		dock_id VARCHAR(64) NOT NULL,
		appointment_id VARCHAR(64) NOT NULL,
		assigned_at BIGINT NOT NULL,
		departed_at BIGINT NULL
	)`,
}
