package state

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	feature_file  TEXT NOT NULL,
	config_json   TEXT,
	status        TEXT NOT NULL,
	started_at    TEXT NOT NULL,
	finished_at   TEXT
);

CREATE TABLE IF NOT EXISTS grammar_versions (
	version_id    TEXT PRIMARY KEY,
	parent_id     TEXT,
	run_id        TEXT NOT NULL,
	constraints   TEXT NOT NULL,
	weights       BLOB NOT NULL,
	objective     REAL NOT NULL,
	status        TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES grammar_versions(version_id),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS stage_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	stage         TEXT NOT NULL,
	outcome       TEXT NOT NULL,
	detail        TEXT,
	elapsed_ms    INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS active_grammar (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES grammar_versions(version_id)
);
`

// #endregion schema

// #region store-struct
// Store is the SQLite run ledger.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// pragmas are per connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for the stage logger.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region runs
// BeginRun records a new run in the "running" state.
func (s *Store) BeginRun(featureFile, configJSON string) (Run, error) {
	run := Run{
		RunID:       uuid.New().String(),
		FeatureFile: featureFile,
		ConfigJSON:  configJSON,
		Status:      "running",
		StartedAt:   time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, feature_file, config_json, status, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		run.RunID, run.FeatureFile, nullIfEmpty(run.ConfigJSON), run.Status,
		run.StartedAt.Format(timeFormat),
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// FinishRun stamps a run with its final status.
func (s *Store) FinishRun(runID, status string) error {
	res, err := s.db.Exec(
		`UPDATE runs SET status = ?, finished_at = ? WHERE run_id = ?`,
		status, time.Now().UTC().Format(timeFormat), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: run %s not found", runID)
	}
	return nil
}

// GetRun reads one run.
func (s *Store) GetRun(runID string) (Run, error) {
	var run Run
	var configJSON, finished sql.NullString
	var started string
	err := s.db.QueryRow(
		`SELECT run_id, feature_file, config_json, status, started_at, finished_at
		 FROM runs WHERE run_id = ?`, runID,
	).Scan(&run.RunID, &run.FeatureFile, &configJSON, &run.Status, &started, &finished)
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	run.ConfigJSON = configJSON.String
	run.StartedAt, _ = time.Parse(timeFormat, started)
	if finished.Valid {
		run.FinishedAt, _ = time.Parse(timeFormat, finished.String)
	}
	return run, nil
}

// #endregion runs

// #region commit-grammar
// CommitGrammar inserts a grammar version and makes it active atomically.
// An empty VersionID is filled with a fresh UUID; an empty ParentID is filled
// with the currently active version, if any.
func (s *Store) CommitGrammar(rec GrammarVersion) (GrammarVersion, error) {
	if len(rec.Constraints) != len(rec.Weights) {
		return GrammarVersion{}, fmt.Errorf("commit grammar: %d constraints, %d weights", len(rec.Constraints), len(rec.Weights))
	}
	if rec.VersionID == "" {
		rec.VersionID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	consJSON, err := json.Marshal(rec.Constraints)
	if err != nil {
		return GrammarVersion{}, fmt.Errorf("marshal constraints: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return GrammarVersion{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if rec.ParentID == "" {
		var active string
		err := tx.QueryRow(`SELECT version_id FROM active_grammar WHERE id = 1`).Scan(&active)
		switch {
		case err == nil:
			rec.ParentID = active
		case !errors.Is(err, sql.ErrNoRows):
			return GrammarVersion{}, fmt.Errorf("get active: %w", err)
		}
	}

	_, err = tx.Exec(
		`INSERT INTO grammar_versions (version_id, parent_id, run_id, constraints, weights, objective, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.VersionID, nullIfEmpty(rec.ParentID), rec.RunID, string(consJSON),
		encodeWeights(rec.Weights), rec.Objective, rec.Status,
		rec.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return GrammarVersion{}, fmt.Errorf("insert version: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO active_grammar (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
		rec.VersionID,
	)
	if err != nil {
		return GrammarVersion{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return GrammarVersion{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// #endregion commit-grammar

// #region get
// GetActive reads the active grammar version.
func (s *Store) GetActive() (GrammarVersion, error) {
	var versionID string
	err := s.db.QueryRow(`SELECT version_id FROM active_grammar WHERE id = 1`).Scan(&versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return GrammarVersion{}, ErrNoActive
	}
	if err != nil {
		return GrammarVersion{}, fmt.Errorf("get active: %w", err)
	}
	return s.GetVersion(versionID)
}

// GetVersion retrieves a grammar version by ID.
func (s *Store) GetVersion(id string) (GrammarVersion, error) {
	row := s.db.QueryRow(
		`SELECT version_id, parent_id, run_id, constraints, weights, objective, status, created_at
		 FROM grammar_versions WHERE version_id = ?`, id,
	)
	rec, err := scanVersion(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return GrammarVersion{}, fmt.Errorf("%w: %s", ErrVersionNotFound, id)
	}
	if err != nil {
		return GrammarVersion{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return rec, nil
}

// #endregion get

// #region rollback
// Rollback sets the active pointer to a previous version.
func (s *Store) Rollback(targetVersionID string) error {
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM grammar_versions WHERE version_id = ?`, targetVersionID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrVersionNotFound, targetVersionID)
	}

	_, err = s.db.Exec(`UPDATE active_grammar SET version_id = ? WHERE id = 1`, targetVersionID)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// #endregion rollback

// #region list-versions
// ListVersions returns the most recent grammar versions, newest first.
func (s *Store) ListVersions(limit int) ([]GrammarVersion, error) {
	rows, err := s.db.Query(
		`SELECT version_id, parent_id, run_id, constraints, weights, objective, status, created_at
		 FROM grammar_versions ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var records []GrammarVersion
	for rows.Next() {
		rec, err := scanVersion(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanVersion(scan func(dest ...any) error) (GrammarVersion, error) {
	var rec GrammarVersion
	var parentID sql.NullString
	var consJSON, createdStr string
	var blob []byte

	if err := scan(&rec.VersionID, &parentID, &rec.RunID, &consJSON, &blob, &rec.Objective, &rec.Status, &createdStr); err != nil {
		return GrammarVersion{}, err
	}
	if parentID.Valid {
		rec.ParentID = parentID.String
	}
	if err := json.Unmarshal([]byte(consJSON), &rec.Constraints); err != nil {
		return GrammarVersion{}, fmt.Errorf("unmarshal constraints: %w", err)
	}
	rec.Weights = decodeWeights(blob)
	rec.CreatedAt, _ = time.Parse(timeFormat, createdStr)
	return rec, nil
}

// #endregion list-versions

// #region weight-encoding
func encodeWeights(w []float64) []byte {
	buf := make([]byte, len(w)*8)
	for i, f := range w {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeWeights(b []byte) []float64 {
	w := make([]float64, len(b)/8)
	for i := range w {
		w[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return w
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion weight-encoding
