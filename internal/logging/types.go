package logging

import (
	"database/sql"
	"log"
	"time"
)

// #region outcomes
// Stage outcomes recorded in stage_log.
const (
	OutcomeDone    = "done"
	OutcomeReused  = "reused"  // loaded from a checkpoint file
	OutcomeSkipped = "skipped" // not requested
	OutcomeFailed  = "failed"
)

// #endregion outcomes

// #region stage-entry
// StageEntry is a single row in the stage_log table.
type StageEntry struct {
	RunID     string
	Stage     string
	Outcome   string
	Detail    string
	Elapsed   time.Duration
	CreatedAt time.Time
}

// #endregion stage-entry

// #region reporter
// Reporter prints stage banners and status lines to a logger and, when a
// ledger is attached, records stage boundaries in it.
type Reporter struct {
	logger *log.Logger
	db     *sql.DB
	runID  string
	start  time.Time
	stage  string
	since  time.Time
}

// #endregion reporter
