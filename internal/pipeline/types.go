package pipeline

import (
	"errors"

	"github.com/danielpatrickdp/phoment/internal/corpus"
	"github.com/danielpatrickdp/phoment/internal/eval"
	"github.com/danielpatrickdp/phoment/internal/grammar"
	"github.com/danielpatrickdp/phoment/internal/optimize"
	"github.com/danielpatrickdp/phoment/internal/selection"
)

// #region errors
// ErrConfig is returned when the requested combination of inputs cannot
// produce any output. Nothing is written when it is returned.
var ErrConfig = errors.New("invalid configuration")

// #endregion errors

// #region checkpoint-files
// Checkpoint file names inside the working directory.
const (
	AllFormsFile          = "allForms.txt"
	ConstraintsFile       = "constraints.txt"
	ViolationsFile        = "violations.txt"
	DiscriminativityFile  = "discriminativity.txt"
	ActiveConstraintsFile = "active_constraints.txt"
	GrammarFile           = "grammar.txt"
	NaturalClassesFile    = "natural_classes.txt"
)

// #endregion checkpoint-files

// #region config
// Config holds every option of a learning run. Empty paths mean "not given".
type Config struct {
	FeatureFile string `json:"feature_file"`
	WorkDir     string `json:"work_dir"`
	DBPath      string `json:"db_path,omitempty"` // run ledger; empty disables it

	// lexicon: AllForms wins over TrainCounts
	AllForms    string                 `json:"all_forms,omitempty"`
	TrainCounts string                 `json:"train_counts,omitempty"`
	Contrast    corpus.ContrastOptions `json:"contrast"`

	// constraints: Constraints, then Enumerate, then Grammar
	Constraints string `json:"constraints,omitempty"`
	Enumerate   bool   `json:"enumerate,omitempty"`
	MaxFeatures int    `json:"max_features"`

	// violations
	Violations string `json:"violations,omitempty"`
	Evaluate   bool   `json:"evaluate,omitempty"`

	// discriminativity
	Discriminativity string `json:"discriminativity,omitempty"`
	Score            bool   `json:"score,omitempty"`

	Selection selection.Options `json:"selection"`
	Prior     optimize.Prior    `json:"prior"`
	Settings  optimize.Settings `json:"settings"`
	Eval      eval.EvalConfig   `json:"eval"`

	// Grammar is a fitted grammar used as constraint source and for testing.
	Grammar string `json:"grammar,omitempty"`
	Test    string `json:"test,omitempty"`
}

// DefaultConfig returns the learner's default settings.
func DefaultConfig() Config {
	return Config{
		WorkDir:     "output",
		Contrast:    corpus.DefaultContrastOptions(),
		MaxFeatures: 2,
		Selection:   selection.DefaultOptions(),
		Prior:       optimize.DefaultPrior(),
		Settings:    optimize.DefaultSettings(),
		Eval:        eval.DefaultEvalConfig(),
	}
}

// #endregion config

// #region outcome
// Outcome collects what a run produced. Fields are nil or empty for stages
// that did not run.
type Outcome struct {
	RunID            string
	Lexicon          *corpus.Lexicon
	Constraints      []string
	Discriminativity []float64
	Active           []selection.Record
	Fit              *optimize.Result
	Eval             *eval.EvalResult
	Grammar          *grammar.Grammar
	GrammarPath      string
	VersionID        string
}

// #endregion outcome
