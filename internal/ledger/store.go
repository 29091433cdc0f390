// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger persists one record per reported day. Records are created
// by the national bulletin and later merged with the provincial one; the
// store never loses a value it already holds unless a new value for the
// same indicator replaces it.
package ledger

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"

	"github.com/pdiddy/ncov-ledger/pkg/types"
)

const (
	dbFile     = "ledger.db"
	dateLayout = "2006-01-02"
)

// ErrNotFound is returned by Get when no record exists for the date.
var ErrNotFound = eris.New("record not found")

// Store is the persistence contract of the engine.
type Store interface {
	// Get returns the record for date, or ErrNotFound.
	Get(ctx context.Context, date time.Time) (*types.Record, error)

	// Upsert creates the record for rec.Date or merges rec into it.
	// Present values overwrite stored ones, absent values keep what is
	// stored and non-empty provenance replaces the stored provenance.
	Upsert(ctx context.Context, rec *types.Record) error

	// List returns every record ordered by ascending date.
	List(ctx context.Context) ([]types.Record, error)

	// References returns every national and provincial document reference
	// already recorded.
	References(ctx context.Context) (map[string]bool, error)
}

// SQLiteStore keeps the ledger in a single SQLite table with one nullable
// column per stored indicator.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens or creates the ledger database at cfg.Dir/ledger.db
// and creates the schema if it does not exist.
func NewSQLiteStore(cfg types.DataConfig) (*SQLiteStore, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "creating data directory %s", cfg.Dir)
	}
	return Open(filepath.Join(cfg.Dir, dbFile))
}

// Open opens the ledger database at path.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, eris.Wrap(err, "opening database")
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "creating schema")
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createSchema() error {
	var cols strings.Builder
	for _, ind := range types.Indicators() {
		cols.WriteString("\t\t\t")
		cols.WriteString(string(ind))
		cols.WriteString(" INTEGER,\n")
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS records (
			date TEXT PRIMARY KEY,
` + cols.String() + `			source_ref TEXT UNIQUE,
			source_title TEXT,
			source_text TEXT,
			provincial_ref TEXT UNIQUE,
			provincial_text TEXT,
			updated_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return eris.Wrap(err, "executing schema statement")
		}
	}
	return nil
}

// provenance columns follow the indicator columns in every query.
var provenance = []string{
	"source_ref", "source_title", "source_text", "provincial_ref", "provincial_text",
}

func columns() []string {
	inds := types.Indicators()
	out := make([]string, 0, len(inds)+len(provenance)+2)
	out = append(out, "date")
	for _, ind := range inds {
		out = append(out, string(ind))
	}
	out = append(out, provenance...)
	return append(out, "updated_at")
}

var (
	selectColumns = strings.Join(columns(), ", ")
	upsertQuery   = buildUpsert()
)

func buildUpsert() string {
	cols := columns()
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	sets := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		if c == "updated_at" {
			sets = append(sets, "updated_at=excluded.updated_at")
			continue
		}
		sets = append(sets, c+"=COALESCE(excluded."+c+", "+c+")")
	}

	return `INSERT INTO records (` + strings.Join(cols, ", ") + `)
		 VALUES (` + marks + `)
		 ON CONFLICT(date) DO UPDATE SET
			` + strings.Join(sets, ",\n\t\t\t")
}

// Get returns the record for date.
func (s *SQLiteStore) Get(ctx context.Context, date time.Time) (*types.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM records WHERE date = ?`,
		types.Day(date).Format(dateLayout),
	)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "reading record %s", date.Format(dateLayout))
	}
	return rec, nil
}

// Upsert writes rec in one transaction.
func (s *SQLiteStore) Upsert(ctx context.Context, rec *types.Record) error {
	if rec.Date.IsZero() {
		return eris.New("record has no date")
	}
	rec.UpdatedAt = s.now().UTC()

	inds := types.Indicators()
	args := make([]any, 0, len(inds)+len(provenance)+2)
	args = append(args, types.Day(rec.Date).Format(dateLayout))
	for _, ind := range inds {
		if v, ok := rec.Values.Get(ind); ok {
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
	}
	for _, p := range []string{
		rec.SourceRef, rec.SourceTitle, rec.SourceText, rec.ProvincialRef, rec.ProvincialText,
	} {
		args = append(args, nullString(p))
	}
	args = append(args, rec.UpdatedAt.Format(time.RFC3339Nano))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, upsertQuery, args...); err != nil {
		return eris.Wrapf(err, "upserting record %s", rec.Date.Format(dateLayout))
	}
	return tx.Commit()
}

// List returns all records by ascending date.
func (s *SQLiteStore) List(ctx context.Context) ([]types.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM records ORDER BY date`)
	if err != nil {
		return nil, eris.Wrap(err, "listing records")
	}
	defer rows.Close()

	var out []types.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "scanning record")
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// References returns the national and provincial references on file.
func (s *SQLiteStore) References(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source_ref, provincial_ref FROM records`)
	if err != nil {
		return nil, eris.Wrap(err, "listing references")
	}
	defer rows.Close()

	refs := make(map[string]bool)
	for rows.Next() {
		var src, prov sql.NullString
		if err := rows.Scan(&src, &prov); err != nil {
			return nil, eris.Wrap(err, "scanning references")
		}
		if src.Valid {
			refs[src.String] = true
		}
		if prov.Valid {
			refs[prov.String] = true
		}
	}
	return refs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*types.Record, error) {
	inds := types.Indicators()
	var (
		date, updated string
		values        = make([]sql.NullInt64, len(inds))
		prov          = make([]sql.NullString, len(provenance))
	)

	dest := make([]any, 0, len(inds)+len(provenance)+2)
	dest = append(dest, &date)
	for i := range values {
		dest = append(dest, &values[i])
	}
	for i := range prov {
		dest = append(dest, &prov[i])
	}
	dest = append(dest, &updated)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, eris.Wrapf(err, "parsing date %q", date)
	}
	rec := &types.Record{
		Date:           day,
		Values:         types.Counts{},
		SourceRef:      prov[0].String,
		SourceTitle:    prov[1].String,
		SourceText:     prov[2].String,
		ProvincialRef:  prov[3].String,
		ProvincialText: prov[4].String,
	}
	for i, ind := range inds {
		if values[i].Valid {
			rec.Values.Set(ind, int(values[i].Int64))
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		rec.UpdatedAt = t
	}
	return rec, nil
}

// nullString stores empty provenance as NULL so that the UNIQUE
// constraints apply only to real references.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
