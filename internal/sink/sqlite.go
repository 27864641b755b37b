package sink

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"github.com/procwatt/procwatt/internal/errors"
	"github.com/procwatt/procwatt/internal/logger"
	"github.com/procwatt/procwatt/internal/series"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultDirPerm = 0o755
	defaultDBPath  = "/var/lib/procwattd/history.db"
)

// HistoryConfig configures the sqlite history sink.
type HistoryConfig struct {
	DBPath  string
	Enabled bool
}

func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		DBPath:  defaultDBPath,
		Enabled: false,
	}
}

func (c HistoryConfig) Validate() error {
	errFactory := errors.New()
	if c.Enabled && c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	return nil
}

// History persists emitted series for later inspection.
type History interface {
	Publish(ctx context.Context, batch []series.Series) error
	Close() error
}

type sqliteHistory struct {
	db *sql.DB
	mu sync.Mutex
}

// No-op implementation used when history is disabled
type noopHistory struct{}

// NewHistory opens (or creates) the history database. When history is
// disabled it returns a no-op sink so callers need no conditionals.
func NewHistory(cfg HistoryConfig) (History, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !cfg.Enabled {
		logger.Debug().Msg("History sink disabled, using no-op sink")
		return &noopHistory{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal=WAL")
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug().Str("db_path", cfg.DBPath).Msg("History sink initialized")

	return &sqliteHistory{db: db}, nil
}

func initSchema(db *sql.DB) error {
	errFactory := errors.New()

	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS series (
            id        INTEGER PRIMARY KEY AUTOINCREMENT,
            timestamp INTEGER NOT NULL,
            pid       TEXT NOT NULL,
            name      TEXT NOT NULL,
            watts     REAL NOT NULL,
            joules    REAL NOT NULL
        );
        CREATE INDEX IF NOT EXISTS series_timestamp ON series (timestamp)
    `)
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	return nil
}

func (h *sqliteHistory) Publish(ctx context.Context, batch []series.Series) error {
	errFactory := errors.New()

	h.mu.Lock()
	defer h.mu.Unlock()

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	for _, s := range batch {
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO series (timestamp, pid, name, watts, joules)
            VALUES (?, ?, ?, ?, ?)
        `,
			s.At.Unix(),
			s.Labels.PID,
			s.Labels.Name,
			s.Watts,
			s.Joules,
		); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logger.Debug().Err(rbErr).Msg("Failed to rollback transaction")
			}
			return errFactory.Wrap(ErrStorageAccess, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (h *sqliteHistory) Close() error {
	errFactory := errors.New()

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.db.Close(); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}
	return nil
}

func (*noopHistory) Publish(_ context.Context, _ []series.Series) error {
	return nil
}

func (*noopHistory) Close() error {
	return nil
}
