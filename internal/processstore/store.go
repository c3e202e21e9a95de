package processstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/hochfrequenz/process-eta/internal/domain"
)

// Store provides SQLite-backed persistence of historical process records
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// :memory: databases are per connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

const upsertSQL = `
	INSERT INTO processes (id, owner_id, type, priority, status, start_time, end_time, steps, retries, automated, metadata, import_batch, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		owner_id = excluded.owner_id,
		type = excluded.type,
		priority = excluded.priority,
		status = excluded.status,
		start_time = excluded.start_time,
		end_time = excluded.end_time,
		steps = excluded.steps,
		retries = excluded.retries,
		automated = excluded.automated,
		metadata = excluded.metadata,
		import_batch = excluded.import_batch
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// UpsertProcess inserts or updates a single process record
func (s *Store) UpsertProcess(ctx context.Context, p *domain.Process) error {
	return s.upsert(ctx, s.db, p, "")
}

// UpsertProcesses writes all records in one transaction and returns the
// import batch ID stamped on them
func (s *Store) UpsertProcesses(ctx context.Context, ps []*domain.Process) (string, error) {
	batch := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, p := range ps {
		if err := s.upsert(ctx, tx, p, batch); err != nil {
			return "", fmt.Errorf("upserting %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return batch, nil
}

func (s *Store) upsert(ctx context.Context, db execer, p *domain.Process, batch string) error {
	steps := p.StepsCompleted
	if steps == nil {
		steps = []string{}
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return err
	}

	metadata := p.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, upsertSQL,
		p.ID,
		p.OwnerID,
		p.Type,
		string(p.Priority),
		string(p.Status),
		formatTime(p.StartTime),
		nullTime(p.EndTime),
		string(stepsJSON),
		p.Retries,
		p.Automated,
		string(metaJSON),
		nullIfEmpty(batch),
		formatTime(s.now()),
	)
	return err
}

// ErrNotFound is returned by GetProcess for unknown IDs
var ErrNotFound = errors.New("process not found")

// GetProcess retrieves a process by ID
func (s *Store) GetProcess(ctx context.Context, id string) (*domain.Process, error) {
	row := s.db.QueryRowContext(ctx, selectSQL+` WHERE id = ?`, id)
	p, err := scanProcess(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("process %s: %w", id, ErrNotFound)
	}
	return p, err
}

// ListOptions specifies filters for listing processes
type ListOptions struct {
	Status domain.Status
	Type   string
	Owner  string
}

const selectSQL = `SELECT id, owner_id, type, priority, status, start_time, end_time, steps, retries, automated, metadata FROM processes`

// ListProcesses returns processes matching the given options, oldest start first
func (s *Store) ListProcesses(ctx context.Context, opts ListOptions) ([]*domain.Process, error) {
	query := selectSQL + ` WHERE 1=1`
	var args []any

	if opts.Status != "" {
		query += " AND status = ?"
		args = append(args, string(opts.Status))
	}
	if opts.Type != "" {
		query += " AND type = ?"
		args = append(args, opts.Type)
	}
	if opts.Owner != "" {
		query += " AND owner_id = ?"
		args = append(args, opts.Owner)
	}

	query += " ORDER BY start_time, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var processes []*domain.Process
	for rows.Next() {
		p, err := scanProcess(rows)
		if err != nil {
			return nil, err
		}
		processes = append(processes, p)
	}

	return processes, rows.Err()
}

// CountByStatus returns the number of records per status
func (s *Store) CountByStatus(ctx context.Context) (map[domain.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM processes GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[domain.Status(status)] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProcess(row scanner) (*domain.Process, error) {
	var p domain.Process
	var priority, status, start, stepsJSON, metaJSON string
	var end sql.NullString

	err := row.Scan(&p.ID, &p.OwnerID, &p.Type, &priority, &status, &start, &end, &stepsJSON, &p.Retries, &p.Automated, &metaJSON)
	if err != nil {
		return nil, err
	}

	p.Priority = domain.Priority(priority)
	p.Status = domain.Status(status)

	if p.StartTime, err = time.Parse(time.RFC3339Nano, start); err != nil {
		return nil, fmt.Errorf("process %s: start_time: %w", p.ID, err)
	}
	if end.Valid {
		if p.EndTime, err = time.Parse(time.RFC3339Nano, end.String); err != nil {
			return nil, fmt.Errorf("process %s: end_time: %w", p.ID, err)
		}
	}

	if err := json.Unmarshal([]byte(stepsJSON), &p.StepsCompleted); err != nil {
		return nil, fmt.Errorf("process %s: steps: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &p.Metadata); err != nil {
		return nil, fmt.Errorf("process %s: metadata: %w", p.ID, err)
	}

	return &p, nil
}

// timeLayout is fixed width so that text ordering matches time ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
