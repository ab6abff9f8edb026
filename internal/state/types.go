package state

import (
	"errors"
	"time"
)

// #region errors
var (
	// ErrVersionNotFound is returned for unknown grammar version IDs.
	ErrVersionNotFound = errors.New("grammar version not found")

	// ErrNoActive is returned when no grammar has been committed yet.
	ErrNoActive = errors.New("no active grammar")
)

// #endregion errors

// timeFormat is fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// #region run
// Run is one invocation of the learner.
type Run struct {
	RunID       string
	FeatureFile string
	ConfigJSON  string
	Status      string // "running" | "done" | "failed"
	StartedAt   time.Time
	FinishedAt  time.Time
}

// #endregion run

// #region grammar-version
// GrammarVersion is a fitted grammar stored in the ledger. Weights are
// parallel to Constraints.
type GrammarVersion struct {
	VersionID   string
	ParentID    string
	RunID       string
	Constraints []string
	Weights     []float64
	Objective   float64
	Status      string // optimiser status
	CreatedAt   time.Time
}

// #endregion grammar-version
