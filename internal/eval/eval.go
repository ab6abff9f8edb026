package eval

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/phoment/internal/optimize"
)

// #region eval-harness
// EvalHarness validates a fitted grammar before it is committed.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks that the weights are within bounds, that the objective is finite
// and reproduced from the grammar's own weights, and, when a scorer is given,
// that the grammar's harmony of every lexicon row equals the matrix product.
// Optimiser non-convergence is reported but never fails the run.
func (h *EvalHarness) Run(in EvalInput) EvalResult {
	var metrics []EvalMetric
	var failReasons []string
	check := func(name string, value float64, pass bool, reason string) {
		metrics = append(metrics, EvalMetric{Name: name, Value: value, Pass: pass})
		if !pass {
			failReasons = append(failReasons, reason)
		}
	}

	// 1. Bounds
	outside := 0
	for _, w := range in.Grammar.Weights {
		if w < h.config.Lower || w > h.config.Upper || math.IsNaN(w) {
			outside++
		}
	}
	check("weights_out_of_bounds", float64(outside), outside == 0,
		fmt.Sprintf("%d weights outside [%g, %g]", outside, h.config.Lower, h.config.Upper))

	// 2. Finite objective
	finite := !math.IsNaN(in.Result.F) && !math.IsInf(in.Result.F, 0)
	check("objective", in.Result.F, finite, fmt.Sprintf("objective %v is not finite", in.Result.F))

	// 3. Objective recomputed from the grammar's weights
	if in.Matrix != nil {
		f, _ := optimize.Objective(in.Grammar.Weights, in.Matrix, in.Counts, in.Prior)
		diff := relDiff(f, in.Result.F)
		check("objective_drift", diff, diff <= h.config.Tolerance,
			fmt.Sprintf("recomputed objective %g differs from %g", f, in.Result.F))
	}

	// 4. Grammar scoring agrees with the matrix
	if in.Matrix != nil && in.Scorer != nil && in.Lexicon != nil {
		rows, _ := in.Matrix.Dims()
		hm := make([]float64, rows)
		in.Matrix.MulVec(hm, in.Grammar.Weights)
		mismatched := 0
		for i, form := range in.Lexicon.Forms {
			if relDiff(in.Scorer.Score(form).Harmony, hm[i]) > h.config.Tolerance {
				mismatched++
			}
		}
		check("harmony_mismatches", float64(mismatched), mismatched == 0,
			fmt.Sprintf("%d rows score differently from the violation matrix", mismatched))
	}

	// 5. Convergence: informational
	metrics = append(metrics, EvalMetric{
		Name:  "converged",
		Value: float64(in.Result.Iterations),
		Pass:  in.Result.Status == optimize.Converged,
	})

	reason := "all checks passed"
	if len(failReasons) == 1 {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
	} else if len(failReasons) > 1 {
		reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
	}

	return EvalResult{
		Passed:  len(failReasons) == 0,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

// #region helpers
func relDiff(a, b float64) float64 {
	return math.Abs(a-b) / math.Max(math.Max(math.Abs(a), math.Abs(b)), 1)
}

// #endregion helpers
