package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/tommyz7/airbnb-analytics/models"
)

// SQLiteStore holds operational data: the command queue the scheduler
// polls and a local mirror of sweep run history. Domain data lives in
// Postgres.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT NOT NULL,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS sweep_runs (
		id INTEGER PRIMARY KEY,
		location TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		listings_found INTEGER DEFAULT 0,
		apartments_new INTEGER DEFAULT 0,
		snapshots_written INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0,
		error_message TEXT
	);

	CREATE TABLE IF NOT EXISTS sweep_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		level TEXT,
		message TEXT,
		location TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_runs_location ON sweep_runs(location, started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// Commands
// =============================================================================

func (s *SQLiteStore) EnqueueCommand(cmd models.CommandType, params *models.CommandParams) error {
	var raw []byte
	if params != nil {
		var err error
		raw, err = json.Marshal(params)
		if err != nil {
			return err
		}
	}

	_, err := s.db.Exec(`INSERT INTO commands (command, params) VALUES (?, ?)`, string(cmd), raw)
	return err
}

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, COALESCE(params, '{}'), created_at
		FROM commands
		WHERE processed_at IS NULL
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var commandStr string
		if err := rows.Scan(&cmd.ID, &commandStr, &cmd.Params, &cmd.CreatedAt); err != nil {
			return nil, err
		}
		cmd.Command = models.CommandType(commandStr)
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func (s *SQLiteStore) ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	params := &models.CommandParams{}
	if len(cmd.Params) == 0 {
		return params, nil
	}
	if err := json.Unmarshal(cmd.Params, params); err != nil {
		return nil, err
	}
	return params, nil
}

// =============================================================================
// Runs
// =============================================================================

func (s *SQLiteStore) CreateRun(run *models.SweepRun) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO sweep_runs (location, started_at, status)
		VALUES (?, ?, ?)`,
		run.Location, run.StartedAt, string(run.Status))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.SweepRun) error {
	_, err := s.db.Exec(`
		UPDATE sweep_runs SET
			finished_at = ?, status = ?, listings_found = ?, apartments_new = ?,
			snapshots_written = ?, errors_count = ?, error_message = ?
		WHERE id = ?`,
		run.FinishedAt, string(run.Status), run.ListingsFound, run.ApartmentsNew,
		run.SnapshotsWritten, run.ErrorsCount, run.ErrorMessage, run.ID)
	return err
}

// GetLastRunTime returns the most recent sweep start for a location.
// An empty location matches any run; no runs yield the zero time.
func (s *SQLiteStore) GetLastRunTime(location string) (time.Time, error) {
	var last time.Time
	err := s.db.QueryRow(`
		SELECT started_at FROM sweep_runs
		WHERE ? = '' OR location = ?
		ORDER BY started_at DESC LIMIT 1`,
		location, location).Scan(&last)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return last, nil
}

// =============================================================================
// Logs
// =============================================================================

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, location string) error {
	_, err := s.db.Exec(`
		INSERT INTO sweep_logs (run_id, level, message, location)
		VALUES (?, ?, ?, ?)`,
		runID, string(level), message, location)
	return err
}
