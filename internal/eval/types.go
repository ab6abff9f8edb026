package eval

import (
	"github.com/danielpatrickdp/phoment/internal/corpus"
	"github.com/danielpatrickdp/phoment/internal/grammar"
	"github.com/danielpatrickdp/phoment/internal/optimize"
	"github.com/danielpatrickdp/phoment/internal/violation"
)

// #region eval-config
// EvalConfig holds thresholds for post-fit validation.
type EvalConfig struct {
	Lower     float64 // weights below this fail
	Upper     float64 // weights above this fail
	Tolerance float64 // relative tolerance for recomputed quantities
}

// DefaultEvalConfig matches the optimiser's default bounds.
func DefaultEvalConfig() EvalConfig {
	s := optimize.DefaultSettings()
	return EvalConfig{
		Lower:     s.Lower,
		Upper:     s.Upper,
		Tolerance: 1e-9,
	}
}

// #endregion eval-config

// #region eval-input
// EvalInput is everything a fitted grammar is checked against. Scorer and
// Lexicon are optional; without them the harmony check is skipped.
type EvalInput struct {
	Grammar *grammar.Grammar
	Result  optimize.Result
	Matrix  *violation.Matrix
	Counts  []float64
	Prior   optimize.Prior
	Scorer  *grammar.Scorer
	Lexicon *corpus.Lexicon
}

// #endregion eval-input

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of post-fit validation.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// #endregion eval-result
