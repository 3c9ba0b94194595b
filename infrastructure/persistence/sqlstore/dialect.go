package sqlstore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect captures what differs between the supported SQL engines
type Dialect struct {
	// Name is the storage driver name from configuration
	Name string
	// DriverName is the database/sql driver
	DriverName string
	// Schema qualifies table names; empty means the default schema
	Schema string

	idColumn string
	numbered bool
	maxConns int
	prepare  func(dsn string) string
}

// SQLite returns the dialect for modernc.org/sqlite
func SQLite() Dialect {
	return Dialect{
		Name:       "sqlite",
		DriverName: "sqlite",
		idColumn:   "INTEGER PRIMARY KEY AUTOINCREMENT",
		// One connection serialises writers and keeps :memory: databases shared.
		maxConns: 1,
		prepare:  sqliteDSN,
	}
}

// Postgres returns the dialect for lib/pq. Tables live in schema when set.
func Postgres(schema string) Dialect {
	return Dialect{
		Name:       "postgres",
		DriverName: "postgres",
		Schema:     schema,
		idColumn:   "BIGSERIAL PRIMARY KEY",
		numbered:   true,
	}
}

// sqliteDSN applies per-connection pragmas through the driver's _pragma parameter
func sqliteDSN(dsn string) string {
	pragmas := []string{
		"_pragma=journal_mode(WAL)",
		"_pragma=busy_timeout(5000)",
		"_pragma=synchronous(NORMAL)",
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(pragmas, "&")
}

// table returns the quoted, schema-qualified name of a table
func (d Dialect) table(name string) string {
	if d.Schema == "" {
		return pq.QuoteIdentifier(name)
	}
	return pq.QuoteIdentifier(d.Schema) + "." + pq.QuoteIdentifier(name)
}

// rebind rewrites ? placeholders to $n for engines that number them
func (d Dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
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

func (d Dialect) schemaStatements(usersTable, entriesTable string) []string {
	var stmts []string
	if d.Schema != "" {
		stmts = append(stmts, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pq.QuoteIdentifier(d.Schema)))
	}
	users := d.table(usersTable)
	entries := d.table(entriesTable)
	index := pq.QuoteIdentifier(entriesTable + "_user_date_idx")

	stmts = append(stmts,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			user_id    TEXT PRIMARY KEY,
			created_at TEXT NOT NULL
		)`, users),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id         %s,
			user_id    TEXT NOT NULL REFERENCES %s (user_id),
			entry_date TEXT NOT NULL,
			text       TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`, entries, d.idColumn, users),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (user_id, entry_date, id)", index, entries),
	)
	return stmts
}
