package storage

import (
	"database/sql"
	"fmt"
	"time"

	"flatsync/models"

	_ "github.com/mattn/go-sqlite3"
)

// OpsStore is the local operational database: crawl run history, run-scoped
// logs and the command queue the scheduler polls. Kept in sqlite so the
// crawler stays observable even when Postgres is unreachable.
type OpsStore struct {
	db *sql.DB
}

func NewOpsStore(path string) (*OpsStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &OpsStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *OpsStore) Close() error {
	return s.db.Close()
}

func (s *OpsStore) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		status TEXT NOT NULL DEFAULT 'running',
		codes_discovered INTEGER DEFAULT 0,
		details_ok INTEGER DEFAULT 0,
		details_failed INTEGER DEFAULT 0,
		inserted INTEGER DEFAULT 0,
		updated INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0,
		deleted INTEGER DEFAULT 0,
		error_message TEXT
	);

	CREATE TABLE IF NOT EXISTS crawl_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER,
		timestamp DATETIME NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES crawl_runs(id)
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		command TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		processed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_crawl_logs_run ON crawl_logs(run_id);
	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// Crawl runs
// =============================================================================

func (s *OpsStore) CreateRun(run *models.CrawlRun) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO crawl_runs (started_at, status) VALUES (?, ?)`,
		run.StartedAt, run.Status,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *OpsStore) UpdateRun(run *models.CrawlRun) error {
	_, err := s.db.Exec(`
		UPDATE crawl_runs SET
			finished_at = ?, status = ?, codes_discovered = ?,
			details_ok = ?, details_failed = ?,
			inserted = ?, updated = ?, skipped = ?, deleted = ?,
			error_message = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.CodesDiscovered,
		run.DetailsOK, run.DetailsFailed,
		run.Inserted, run.Updated, run.Skipped, run.Deleted,
		nullableString(run.ErrorMessage), run.ID,
	)
	return err
}

func (s *OpsStore) RecentRuns(limit int) ([]models.CrawlRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, status, codes_discovered,
			details_ok, details_failed, inserted, updated, skipped, deleted,
			COALESCE(error_message, '')
		FROM crawl_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.CrawlRun
	for rows.Next() {
		var r models.CrawlRun
		if err := rows.Scan(
			&r.ID, &r.StartedAt, &r.FinishedAt, &r.Status, &r.CodesDiscovered,
			&r.DetailsOK, &r.DetailsFailed, &r.Inserted, &r.Updated, &r.Skipped, &r.Deleted,
			&r.ErrorMessage,
		); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *OpsStore) GetLastRunTime() (*time.Time, error) {
	var t sql.NullTime
	err := s.db.QueryRow(
		`SELECT started_at FROM crawl_runs WHERE status = 'completed' ORDER BY id DESC LIMIT 1`,
	).Scan(&t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !t.Valid {
		return nil, nil
	}
	return &t.Time, nil
}

// =============================================================================
// Run logs
// =============================================================================

// Log records an ops-level event. Write failures are swallowed on purpose;
// logging must never break a crawl.
func (s *OpsStore) Log(runID *int64, level models.LogLevel, message string) {
	s.db.Exec(
		`INSERT INTO crawl_logs (run_id, timestamp, level, message) VALUES (?, ?, ?, ?)`,
		runID, time.Now().UTC(), level, message,
	)
}

func (s *OpsStore) RunLogs(runID int64, limit int) ([]models.CrawlLog, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, level, message
		FROM crawl_logs WHERE run_id = ? ORDER BY id LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.CrawlLog
	for rows.Next() {
		var l models.CrawlLog
		if err := rows.Scan(&l.ID, &l.RunID, &l.Timestamp, &l.Level, &l.Message); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// =============================================================================
// Command queue
// =============================================================================

func (s *OpsStore) EnqueueCommand(cmd models.CommandType) error {
	_, err := s.db.Exec(
		`INSERT INTO commands (command, created_at) VALUES (?, ?)`,
		cmd, time.Now().UTC(),
	)
	return err
}

func (s *OpsStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var c models.Command
		if err := rows.Scan(&c.ID, &c.Command, &c.CreatedAt, &c.ProcessedAt); err != nil {
			return nil, err
		}
		cmds = append(cmds, c)
	}
	return cmds, rows.Err()
}

func (s *OpsStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(
		`UPDATE commands SET processed_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	return err
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
