package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	trackerDB "github.com/nexlate/tracker/db"
	"github.com/nexlate/tracker/models"
	"go.uber.org/zap"
)

var (
	ErrNotFound = errors.New("entry not found")
	ErrExists   = errors.New("entry already exists")
)

// Store persists late entries keyed by their day/month/year date.
type Store interface {
	// All returns entries in insertion order, or reversed when newestFirst.
	// A negative limit means no limit.
	All(ctx context.Context, limit int, newestFirst bool) (models.EntryList, error)
	Get(ctx context.Context, date string) (*models.LateEntry, error)
	Create(ctx context.Context, entry models.LateEntry) error
	// Update replaces the given fields and moves the entry to the end of
	// the insertion order.
	Update(ctx context.Context, date string, minutesLate *int, excuse *string) (*models.LateEntry, error)
	Delete(ctx context.Context, date string) error
}

const (
	// migration queries
	createLatesTableSQL = `
  CREATE TABLE IF NOT EXISTS lates (
  date TEXT NOT NULL PRIMARY KEY,
  minutes_late INTEGER NOT NULL,
  excuse TEXT DEFAULT NULL
  )`

	// postgres has no rowid, so insertion order gets its own column
	createLatesTablePostgresSQL = `
  CREATE TABLE IF NOT EXISTS lates (
  seq BIGSERIAL,
  date TEXT NOT NULL PRIMARY KEY,
  minutes_late INTEGER NOT NULL,
  excuse TEXT DEFAULT NULL
  )`

	// entry queries
	selectAllLatesSQL = `SELECT date, minutes_late, excuse FROM lates ORDER BY %s %s`
	selectLateSQL     = `SELECT date, minutes_late, excuse FROM lates WHERE date = ?`
	insertLateSQL     = `INSERT INTO lates (date, minutes_late, excuse) VALUES (?, ?, ?)`
	deleteLateSQL     = `DELETE FROM lates WHERE date = ?`
)

type dialect struct {
	schema  string
	orderBy string
}

var dialects = map[string]dialect{
	"sqlite3":  {schema: createLatesTableSQL, orderBy: "rowid"},
	"postgres": {schema: createLatesTablePostgresSQL, orderBy: "seq"},
}

type SQLStore struct {
	db      *sql.DB
	driver  string
	dialect dialect
	logger  *zap.Logger
}

// Open connects to the database, checks the connection and runs migrations.
func Open(driver, dsn string, logger *zap.Logger) (*SQLStore, error) {
	if driver == "sqlite3" {
		// ensure directory exists
		if err := os.MkdirAll(filepath.Dir(dsn), os.ModePerm); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store, err := NewSQLStore(db, driver, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// NewSQLStore wraps an open database. It does not run migrations.
func NewSQLStore(db *sql.DB, driver string, logger *zap.Logger) (*SQLStore, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	return &SQLStore{db: db, driver: driver, dialect: d, logger: logger}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := trackerDB.LogAndExec(ctx, s.db, s.logger, s.dialect.schema); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

func (s *SQLStore) q(query string) string {
	return trackerDB.Rebind(s.driver, query)
}

func (s *SQLStore) All(ctx context.Context, limit int, newestFirst bool) (models.EntryList, error) {
	direction := "ASC"
	if newestFirst {
		direction = "DESC"
	}
	query := fmt.Sprintf(selectAllLatesSQL, s.dialect.orderBy, direction)

	var args []interface{}
	if limit >= 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := trackerDB.LogAndQuery(ctx, s.db, s.logger, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := models.EntryList{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

func (s *SQLStore) Get(ctx context.Context, date string) (*models.LateEntry, error) {
	return s.get(ctx, s.db, date)
}

func (s *SQLStore) get(ctx context.Context, q trackerDB.Queryer, date string) (*models.LateEntry, error) {
	row := trackerDB.LogAndQueryRow(ctx, q, s.logger, s.q(selectLateSQL), date)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *SQLStore) Create(ctx context.Context, entry models.LateEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := s.get(ctx, tx, entry.Date); err == nil {
		return ErrExists
	} else if err != ErrNotFound {
		return err
	}

	if _, err := trackerDB.LogAndExec(ctx, tx, s.logger, s.q(insertLateSQL), entry.Date, entry.MinutesLate, nullString(entry.Excuse)); err != nil {
		return fmt.Errorf("error inserting entry: %w", err)
	}

	return tx.Commit()
}

func (s *SQLStore) Update(ctx context.Context, date string, minutesLate *int, excuse *string) (*models.LateEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	entry, err := s.get(ctx, tx, date)
	if err != nil {
		return nil, err
	}

	if minutesLate != nil {
		entry.MinutesLate = *minutesLate
	}
	if excuse != nil {
		entry.Excuse = excuse
	}

	// delete and re-insert, so the edited entry counts as the newest
	if _, err := trackerDB.LogAndExec(ctx, tx, s.logger, s.q(deleteLateSQL), date); err != nil {
		return nil, fmt.Errorf("error deleting entry: %w", err)
	}
	if _, err := trackerDB.LogAndExec(ctx, tx, s.logger, s.q(insertLateSQL), entry.Date, entry.MinutesLate, nullString(entry.Excuse)); err != nil {
		return nil, fmt.Errorf("error inserting entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *SQLStore) Delete(ctx context.Context, date string) error {
	res, err := trackerDB.LogAndExec(ctx, s.db, s.logger, s.q(deleteLateSQL), date)
	if err != nil {
		return fmt.Errorf("error deleting entry: %w", err)
	}

	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (*models.LateEntry, error) {
	var (
		entry  models.LateEntry
		excuse sql.NullString
	)
	if err := row.Scan(&entry.Date, &entry.MinutesLate, &excuse); err != nil {
		return nil, err
	}
	if excuse.Valid {
		entry.Excuse = &excuse.String
	}
	return &entry, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

var (
	_ Store = (*SQLStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
