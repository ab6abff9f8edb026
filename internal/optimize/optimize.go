package optimize

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/danielpatrickdp/phoment/internal/violation"
)

// #region objective
// Objective returns the negated regularised log-likelihood of counts under
// the log-linear model with weights w, and its gradient. The partition
// function runs over every row of m, so zero-count rows act as the negative
// sample universe.
func Objective(w []float64, m *violation.Matrix, counts []float64, prior Prior) (float64, []float64) {
	rows, cols := m.Dims()

	h := make([]float64, rows)
	m.MulVec(h, w)
	logZ := floats.LogSumExp(h)

	var logData float64
	for i, c := range counts {
		if c != 0 {
			logData += c * (h[i] - logZ)
		}
	}
	logPrior := prior.L1*floats.Sum(w) - prior.L2*floats.Dot(w, w)

	observed := make([]float64, cols)
	m.TMulVec(observed, counts)

	p := h
	for i := range p {
		p[i] = math.Exp(h[i] - logZ)
	}
	expected := make([]float64, cols)
	m.TMulVec(expected, p)
	floats.Scale(floats.Sum(counts), expected)

	grad := make([]float64, cols)
	for j := range grad {
		grad[j] = -(prior.L1 - 2*prior.L2*w[j] + observed[j] - expected[j])
	}
	return -(logPrior + logData), grad
}

// NewObjective binds m, counts and prior into a Func.
func NewObjective(m *violation.Matrix, counts []float64, prior Prior) Func {
	return func(w []float64) (float64, []float64) {
		return Objective(w, m, counts, prior)
	}
}

// #endregion objective

// #region fit
// FitOptions bundles the prior and optimiser settings.
type FitOptions struct {
	Prior    Prior
	Settings Settings
}

// DefaultFitOptions returns DefaultPrior and DefaultSettings.
func DefaultFitOptions() FitOptions {
	return FitOptions{Prior: DefaultPrior(), Settings: DefaultSettings()}
}

// Fit minimises Objective over m starting from the negated discriminativity
// scores, clipped to the bounds.
func Fit(m *violation.Matrix, counts, discrim []float64, opts FitOptions) (Result, error) {
	rows, cols := m.Dims()
	if len(counts) != rows {
		return Result{}, fmt.Errorf("%w: %d counts for %d rows", ErrDimension, len(counts), rows)
	}
	if len(discrim) != cols {
		return Result{}, fmt.Errorf("%w: %d scores for %d columns", ErrDimension, len(discrim), cols)
	}

	x0 := make([]float64, cols)
	for j, d := range discrim {
		x0[j] = -d
	}
	return Minimize(NewObjective(m, counts, opts.Prior), x0, opts.Settings)
}

// #endregion fit

// #region minimize
const (
	armijo       = 1e-4
	maxBacktrack = 40
)

// Minimize runs a bound-constrained limited-memory BFGS from x0. Search
// directions come from the two-loop recursion restricted to the free
// variables; steps are projected onto the box and accepted by backtracking
// until the Armijo condition holds. The run stops on a small relative
// reduction, a small projected gradient, the iteration limit, or a line
// search that cannot make progress from a steepest-descent direction.
func Minimize(fn Func, x0 []float64, s Settings) (Result, error) {
	if s.Lower > s.Upper {
		return Result{}, fmt.Errorf("%w: lower %g > upper %g", ErrBounds, s.Lower, s.Upper)
	}
	history := s.History
	if history < 1 {
		history = 1
	}

	x := append([]float64(nil), x0...)
	project(x, s.Lower, s.Upper)
	f, g := fn(x)
	res := Result{FuncEvals: 1}

	var sHist, yHist [][]float64
	finish := func(st Status) (Result, error) {
		res.X, res.F, res.Grad, res.Status = x, f, g, st
		return res, nil
	}

	for {
		if projectedGradNorm(x, g, s.Lower, s.Upper) <= s.PGTol {
			return finish(Converged)
		}
		if res.Iterations >= s.MaxIter {
			return finish(MaxIterations)
		}

		d := direction(x, g, sHist, yHist, s.Lower, s.Upper)
		if floats.Dot(g, d) >= 0 {
			sHist, yHist = nil, nil
			d = direction(x, g, nil, nil, s.Lower, s.Upper)
		}

		step := 1.0
		if len(sHist) == 0 {
			if n := floats.Norm(d, math.Inf(1)); n > 1 {
				step = 1 / n
			}
		}

		var (
			xn, gn []float64
			fNew   float64
			ok     bool
		)
		for k := 0; k < maxBacktrack; k++ {
			xn = make([]float64, len(x))
			floats.AddScaledTo(xn, x, step, d)
			project(xn, s.Lower, s.Upper)

			dec := 0.0
			for i := range xn {
				dec += g[i] * (xn[i] - x[i])
			}
			if dec >= 0 {
				break
			}
			fNew, gn = fn(xn)
			res.FuncEvals++
			if fNew <= f+armijo*dec {
				ok = true
				break
			}
			step /= 2
		}
		if !ok {
			if len(sHist) > 0 {
				sHist, yHist = nil, nil
				continue
			}
			return finish(LineSearchFailed)
		}

		sk := make([]float64, len(x))
		floats.SubTo(sk, xn, x)
		yk := make([]float64, len(x))
		floats.SubTo(yk, gn, g)
		if sy := floats.Dot(sk, yk); sy > machineEpsilon*floats.Dot(yk, yk) {
			sHist = append(sHist, sk)
			yHist = append(yHist, yk)
			if len(sHist) > history {
				sHist, yHist = sHist[1:], yHist[1:]
			}
		}

		fPrev := f
		x, f, g = xn, fNew, gn
		res.Iterations++

		scale := math.Max(math.Max(math.Abs(fPrev), math.Abs(f)), 1)
		if (fPrev-f)/scale <= s.Precision*machineEpsilon {
			return finish(Converged)
		}
	}
}

// direction returns the quasi-Newton descent direction with every coordinate
// that the gradient pushes against its bound held at zero.
func direction(x, g []float64, sHist, yHist [][]float64, lo, hi float64) []float64 {
	free := make([]bool, len(x))
	q := make([]float64, len(x))
	for i := range x {
		free[i] = !((x[i] <= lo && g[i] > 0) || (x[i] >= hi && g[i] < 0))
		if free[i] {
			q[i] = g[i]
		}
	}

	k := len(sHist)
	alpha := make([]float64, k)
	rho := make([]float64, k)
	for i := k - 1; i >= 0; i-- {
		rho[i] = 1 / floats.Dot(yHist[i], sHist[i])
		alpha[i] = rho[i] * floats.Dot(sHist[i], q)
		floats.AddScaled(q, -alpha[i], yHist[i])
	}
	if k > 0 {
		floats.Scale(floats.Dot(sHist[k-1], yHist[k-1])/floats.Dot(yHist[k-1], yHist[k-1]), q)
	}
	for i := 0; i < k; i++ {
		beta := rho[i] * floats.Dot(yHist[i], q)
		floats.AddScaled(q, alpha[i]-beta, sHist[i])
	}

	for i := range q {
		if free[i] {
			q[i] = -q[i]
		} else {
			q[i] = 0
		}
	}
	return q
}

func projectedGradNorm(x, g []float64, lo, hi float64) float64 {
	var n float64
	for i := range x {
		v := math.Abs(clip(x[i]-g[i], lo, hi) - x[i])
		if v > n {
			n = v
		}
	}
	return n
}

func project(x []float64, lo, hi float64) {
	for i := range x {
		x[i] = clip(x[i], lo, hi)
	}
}

func clip(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// #endregion minimize
