// Package sqlstore stores diaries in a relational database through
// database/sql. SQLite suits a single self-hosted process; PostgreSQL suits
// several replicas sharing one database.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/maxsergeev/YD-Project-2/application/ports"
	"github.com/maxsergeev/YD-Project-2/domain/core/valueobjects"
	pkgerrors "github.com/maxsergeev/YD-Project-2/pkg/errors"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// EntryStore implements ports.EntryStore on a SQL database.
// Users live in <table>, entries in <table>_entries ordered by id.
type EntryStore struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
	now     func() time.Time

	insertUser  string
	insertEntry string
	selectDay   string
}

// Open connects, applies the schema and returns a ready store
func Open(ctx context.Context, dialect Dialect, dsn, table string, logger *zap.Logger) (*EntryStore, error) {
	if dialect.prepare != nil {
		dsn = dialect.prepare(dsn)
	}
	db, err := openDB(dialect.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", dialect.Name, err)
	}
	if dialect.maxConns > 0 {
		db.SetMaxOpenConns(dialect.maxConns)
	}

	s := New(db, dialect, table, logger)
	if err := s.migrate(ctx, table); err != nil {
		db.Close()
		return nil, pkgerrors.NewStorageUnavailableError("migrate", err)
	}

	logger.Info("SQL entry store ready",
		zap.String("driver", dialect.Name),
		zap.String("table", table),
	)
	return s, nil
}

// New wraps an already opened database. The schema must exist.
func New(db *sql.DB, dialect Dialect, table string, logger *zap.Logger) *EntryStore {
	users := dialect.table(table)
	entries := dialect.table(table + "_entries")

	insertUser := fmt.Sprintf("INSERT INTO %s (user_id, created_at) VALUES (?, ?) ON CONFLICT (user_id) DO NOTHING", users)
	insertEntry := fmt.Sprintf("INSERT INTO %s (user_id, entry_date, text, created_at) VALUES (?, ?, ?, ?)", entries)
	selectDay := fmt.Sprintf("SELECT text FROM %s WHERE user_id = ? AND entry_date = ? ORDER BY id", entries)

	return &EntryStore{
		db:          db,
		dialect:     dialect,
		logger:      logger,
		now:         time.Now,
		insertUser:  dialect.rebind(insertUser),
		insertEntry: dialect.rebind(insertEntry),
		selectDay:   dialect.rebind(selectDay),
	}
}

func (s *EntryStore) migrate(ctx context.Context, table string) error {
	for _, stmt := range s.dialect.schemaStatements(table, table+"_entries") {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlstore: schema: %w", err)
		}
	}
	return nil
}

// AppendEntry implements ports.EntryStore. The user row and the entry row are
// written in one transaction; the user insert affecting a row means the diary
// did not exist before.
func (s *EntryStore) AppendEntry(ctx context.Context, userID valueobjects.UserID, date valueobjects.DiaryDate, text string) (ports.AppendResult, error) {
	now := s.now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ports.AppendResult{}, pkgerrors.NewStorageUnavailableError("append_entry", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, s.insertUser, userID.String(), now)
	if err != nil {
		return ports.AppendResult{}, pkgerrors.NewStorageUnavailableError("append_entry", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return ports.AppendResult{}, pkgerrors.NewStorageUnavailableError("append_entry", err)
	}

	if _, err := tx.ExecContext(ctx, s.insertEntry, userID.String(), date.String(), text, now); err != nil {
		return ports.AppendResult{}, pkgerrors.NewStorageUnavailableError("append_entry", err)
	}

	if err := tx.Commit(); err != nil {
		return ports.AppendResult{}, pkgerrors.NewStorageUnavailableError("append_entry", err)
	}
	return ports.AppendResult{CreatedNewUser: affected > 0}, nil
}

// GetEntries implements ports.EntryStore
func (s *EntryStore) GetEntries(ctx context.Context, userID valueobjects.UserID, date valueobjects.DiaryDate) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.selectDay, userID.String(), date.String())
	if err != nil {
		return nil, pkgerrors.NewStorageUnavailableError("get_entries", err)
	}
	defer rows.Close()

	entries := []string{}
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, pkgerrors.NewStorageUnavailableError("get_entries", err)
		}
		entries = append(entries, text)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewStorageUnavailableError("get_entries", err)
	}
	return entries, nil
}

// Ping implements ports.EntryStore
func (s *EntryStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return pkgerrors.NewStorageUnavailableError("ping", err)
	}
	return nil
}

// Close implements ports.EntryStore
func (s *EntryStore) Close() error {
	return s.db.Close()
}

var _ ports.EntryStore = (*EntryStore)(nil)
