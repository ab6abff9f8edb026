package logging

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

// #region log-stage
// LogStage writes a stage entry to the stage_log table.
func LogStage(db *sql.DB, entry StageEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO stage_log (run_id, stage, outcome, detail, elapsed_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Stage,
		entry.Outcome,
		nullIfEmpty(entry.Detail),
		entry.Elapsed.Milliseconds(),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log stage: %w", err)
	}
	return nil
}

// ListStages returns the stage entries of a run in insertion order.
func ListStages(db *sql.DB, runID string) ([]StageEntry, error) {
	rows, err := db.Query(
		`SELECT run_id, stage, outcome, detail, elapsed_ms, created_at
		 FROM stage_log WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var out []StageEntry
	for rows.Next() {
		var e StageEntry
		var detail sql.NullString
		var elapsedMS int64
		var created string
		if err := rows.Scan(&e.RunID, &e.Stage, &e.Outcome, &detail, &elapsedMS, &created); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		e.Detail = detail.String
		e.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion log-stage

// #region reporter
// NewReporter writes to logger (log.Default() when nil). db may be nil, in
// which case stage boundaries are only printed.
func NewReporter(logger *log.Logger, db *sql.DB, runID string) *Reporter {
	if logger == nil {
		logger = log.Default()
	}
	now := time.Now()
	return &Reporter{logger: logger, db: db, runID: runID, start: now, since: now}
}

// Logger returns the underlying logger.
func (r *Reporter) Logger() *log.Logger { return r.logger }

// Stage prints a banner and starts timing a new stage.
func (r *Reporter) Stage(name string) {
	r.stage = name
	r.since = time.Now()
	r.logger.Printf("**** %s ****", name)
}

// Status prints a progress line prefixed by the seconds since the reporter
// was created.
func (r *Reporter) Status(format string, args ...interface{}) {
	r.logger.Printf("%.1fs\t%s", time.Since(r.start).Seconds(), fmt.Sprintf(format, args...))
}

// Done closes the current stage with an outcome. A ledger write failure is
// reported and returned.
func (r *Reporter) Done(outcome, detail string) error {
	elapsed := time.Since(r.since)
	if detail != "" {
		r.Status("%s %s: %s", r.stage, outcome, detail)
	} else {
		r.Status("%s %s", r.stage, outcome)
	}
	if r.db == nil {
		return nil
	}
	err := LogStage(r.db, StageEntry{
		RunID:   r.runID,
		Stage:   r.stage,
		Outcome: outcome,
		Detail:  detail,
		Elapsed: elapsed,
	})
	if err != nil {
		r.logger.Printf("WARNING: %v", err)
	}
	return err
}

// #endregion reporter

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
