package runs

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mmrzaf/mockstream/internal/domain"
)

// tsLayout has fixed width so stored timestamps sort as text.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	dbPath string
	db     *sql.DB
}

func NewSQLiteRepository(dbPath string) *SQLiteRepository {
	return &SQLiteRepository{dbPath: dbPath}
}

func (r *SQLiteRepository) Init() error {
	if r.dbPath == "" {
		return fmt.Errorf("runs db path is required")
	}
	if r.dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(r.dbPath), 0o755); err != nil {
			return fmt.Errorf("create runs db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", r.dbPath)
	if err != nil {
		return err
	}
	r.db = db

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		schema_name TEXT NOT NULL,
		schema_hash TEXT NOT NULL,
		config_hash TEXT NOT NULL,
		sink TEXT NOT NULL,
		topic_template TEXT NOT NULL,
		seed INTEGER NOT NULL,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		completed_at TEXT,
		stats TEXT,
		error TEXT
	)`

	if _, err = r.db.Exec(createTableSQL); err != nil {
		return err
	}
	_, err = r.db.Exec(`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC)`)
	return err
}

func (r *SQLiteRepository) DB() *sql.DB { return r.db }

func (r *SQLiteRepository) Create(run *domain.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	var completedAt interface{}
	if run.CompletedAt != nil {
		completedAt = run.CompletedAt.UTC().Format(tsLayout)
	}

	query := `
		INSERT INTO runs (
			id, schema_name, schema_hash, config_hash, sink, topic_template,
			seed, status, started_at, completed_at, stats, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		run.ID, run.SchemaName, run.SchemaHash, run.ConfigHash, run.Sink, run.TopicTemplate,
		run.Seed, run.Status, run.StartedAt.UTC().Format(tsLayout), completedAt,
		statsValue(run.Stats), run.Error,
	)
	return err
}

func (r *SQLiteRepository) Update(run *domain.Run) error {
	var completedAt interface{}
	if run.CompletedAt != nil {
		completedAt = run.CompletedAt.UTC().Format(tsLayout)
	}

	query := `
		UPDATE runs SET
			status = ?, completed_at = ?, stats = ?, error = ?
		WHERE id = ?
	`

	res, err := r.db.Exec(query, run.Status, completedAt, statsValue(run.Stats), run.Error, run.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, run.ID)
	}
	return nil
}

func (r *SQLiteRepository) scan(row rowScanner) (*domain.Run, error) {
	var startedAtStr string
	var completedAtStr sql.NullString
	return scanRun(row, &startedAtStr, &completedAtStr, func(run *domain.Run) error {
		t, err := time.Parse(time.RFC3339Nano, startedAtStr)
		if err != nil {
			return fmt.Errorf("run %s: started_at: %w", run.ID, err)
		}
		run.StartedAt = t
		if completedAtStr.Valid {
			t, err := time.Parse(time.RFC3339Nano, completedAtStr.String)
			if err != nil {
				return fmt.Errorf("run %s: completed_at: %w", run.ID, err)
			}
			run.CompletedAt = &t
		}
		return nil
	})
}

func (r *SQLiteRepository) Get(id string) (*domain.Run, error) {
	return r.scan(r.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
}

func (r *SQLiteRepository) List(limit int, status string) ([]*domain.Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	args := make([]interface{}, 0)
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.Run, 0)
	for rows.Next() {
		run, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}

	return out, rows.Err()
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
