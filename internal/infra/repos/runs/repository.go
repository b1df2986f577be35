package runs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/mmrzaf/mockstream/internal/domain"
)

var ErrNotFound = errors.New("run not found")

// Repository stores run metadata for production runs.
type Repository interface {
	Init() error
	Create(run *domain.Run) error
	Update(run *domain.Run) error
	Get(id string) (*domain.Run, error)
	List(limit int, status string) ([]*domain.Run, error)
	Close() error
}

// New picks the postgres store for postgres URLs and sqlite for anything
// else, which is treated as a file path.
func New(dsn string) Repository {
	dsn = strings.TrimSpace(dsn)
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return NewPostgresRepository(dsn)
	}
	return NewSQLiteRepository(dsn)
}

const defaultListLimit = 50

const runColumns = `id, schema_name, schema_hash, config_hash, sink, topic_template,
	seed, status, started_at, completed_at, stats, error`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRun reads one row of runColumns. Timestamps are scanned by the caller
// supplied function since the drivers differ in how they return them.
func scanRun(row rowScanner, started, completed any, finish func(run *domain.Run) error) (*domain.Run, error) {
	var run domain.Run
	var statsStr sql.NullString
	var errStr sql.NullString

	if err := row.Scan(
		&run.ID, &run.SchemaName, &run.SchemaHash, &run.ConfigHash, &run.Sink, &run.TopicTemplate,
		&run.Seed, &run.Status, started, completed, &statsStr, &errStr,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if statsStr.Valid && statsStr.String != "" && statsStr.String != "null" {
		run.Stats = json.RawMessage(statsStr.String)
	}
	if errStr.Valid {
		run.Error = errStr.String
	}
	if err := finish(&run); err != nil {
		return nil, err
	}
	return &run, nil
}

func statsValue(stats json.RawMessage) any {
	if len(stats) == 0 {
		return nil
	}
	return string(stats)
}
