package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/danielpatrickdp/phoment/internal/constraint"
	"github.com/danielpatrickdp/phoment/internal/corpus"
	"github.com/danielpatrickdp/phoment/internal/eval"
	"github.com/danielpatrickdp/phoment/internal/features"
	"github.com/danielpatrickdp/phoment/internal/grammar"
	"github.com/danielpatrickdp/phoment/internal/logging"
	"github.com/danielpatrickdp/phoment/internal/optimize"
	"github.com/danielpatrickdp/phoment/internal/selection"
	"github.com/danielpatrickdp/phoment/internal/state"
	"github.com/danielpatrickdp/phoment/internal/violation"
)

// #region validate
func (c Config) hasLexicon() bool {
	return c.AllForms != "" || c.TrainCounts != ""
}

func (c Config) canFit() bool {
	return c.hasLexicon() &&
		(c.Evaluate || c.Violations != "") &&
		(c.Evaluate || c.Score || c.Discriminativity != "")
}

// Validate rejects option combinations that cannot produce anything.
func (c Config) Validate() error {
	switch {
	case c.FeatureFile == "":
		return fmt.Errorf("%w: no feature file", ErrConfig)
	case c.WorkDir == "":
		return fmt.Errorf("%w: no working directory", ErrConfig)
	case c.Constraints == "" && !c.Enumerate && c.Grammar == "":
		return fmt.Errorf("%w: no way to get constraints (need -constraints, -enumerate or -grammar)", ErrConfig)
	case c.Evaluate && !c.hasLexicon():
		return fmt.Errorf("%w: evaluating constraints needs -allforms or -train", ErrConfig)
	case c.Score && !c.hasLexicon():
		return fmt.Errorf("%w: scoring discriminativity needs -allforms or -train", ErrConfig)
	case c.Score && !c.Evaluate && c.Violations == "":
		return fmt.Errorf("%w: scoring discriminativity needs -violations or -evaluate", ErrConfig)
	case c.Test != "" && c.Grammar == "" && !c.canFit():
		return fmt.Errorf("%w: testing needs -grammar or enough inputs to fit one", ErrConfig)
	case c.Selection.MaxConstraints < 0:
		return fmt.Errorf("%w: negative -maxcons", ErrConfig)
	case c.Settings.Lower > c.Settings.Upper:
		return fmt.Errorf("%w: weight bounds [%g, %g]", ErrConfig, c.Settings.Lower, c.Settings.Upper)
	}
	return nil
}

// #endregion validate

// #region run
type runner struct {
	cfg      Config
	rep      *logging.Reporter
	store    *state.Store
	out      *Outcome
	feats    *features.FeatureSet
	reg      *constraint.Registry
	loaded   *grammar.Grammar
	violPath string
	matrix   *violation.Matrix
}

// Run executes every requested stage in order, writing checkpoint files to
// cfg.WorkDir and test results to testOut. Stages whose inputs are missing
// are skipped with a warning.
func Run(cfg Config, logger *log.Logger, testOut io.Writer) (*Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("create working directory: %w", err)
	}

	r := &runner{cfg: cfg, out: &Outcome{}}
	if cfg.DBPath != "" {
		store, err := state.NewStore(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		defer store.Close()

		cfgJSON, err := json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshal config: %w", err)
		}
		run, err := store.BeginRun(cfg.FeatureFile, string(cfgJSON))
		if err != nil {
			return nil, err
		}
		r.store = store
		r.out.RunID = run.RunID
		r.rep = logging.NewReporter(logger, store.DB(), run.RunID)
	} else {
		r.rep = logging.NewReporter(logger, nil, "")
	}

	err := r.run(testOut)
	if r.store != nil {
		status := "done"
		if err != nil {
			status = "failed"
		}
		if ferr := r.store.FinishRun(r.out.RunID, status); ferr != nil && err == nil {
			err = ferr
		}
	}
	return r.out, err
}

func (r *runner) run(testOut io.Writer) error {
	steps := []func() error{
		r.loadFeatures,
		r.loadLexicon,
		r.loadConstraints,
		r.loadViolations,
		r.loadDiscriminativity,
		r.selectActive,
		r.buildMatrix,
		r.fit,
		func() error { return r.test(testOut) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			r.done(logging.OutcomeFailed, err.Error())
			return err
		}
	}
	r.rep.Status("The code has finished.")
	return nil
}

// done closes the current stage; ledger failures are already logged by the
// reporter and do not stop the run.
func (r *runner) done(outcome, detail string) {
	_ = r.rep.Done(outcome, detail)
}

func (r *runner) path(name string) string {
	return filepath.Join(r.cfg.WorkDir, name)
}

// #endregion run

// #region stages
func (r *runner) loadFeatures() error {
	r.rep.Stage("Initializing FeatureSet and Registry")
	fs, err := features.Load(r.cfg.FeatureFile)
	if err != nil {
		return err
	}
	r.feats = fs
	r.reg = constraint.NewRegistry(fs, r.rep.Logger())

	path := r.path(NaturalClassesFile)
	r.rep.Status("Writing natural classes to %s", path)
	if err := writeFile(path, fs.SaveClasses); err != nil {
		return err
	}
	r.done(logging.OutcomeDone, fmt.Sprintf("%d segments, %d features, %s natural classes",
		len(fs.Segments()), len(fs.Features()), humanize.Comma(int64(len(fs.Classes())))))
	return nil
}

func (r *runner) loadLexicon() error {
	r.rep.Stage("Getting training and contrast set")
	outcome := logging.OutcomeDone
	switch {
	case r.cfg.AllForms != "":
		r.rep.Status("Reading training/contrast forms/counts from %s", r.cfg.AllForms)
		err := readFile(r.cfg.AllForms, func(rd io.Reader) error {
			lex, err := corpus.ReadAllForms(rd)
			r.out.Lexicon = lex
			return err
		})
		if err != nil {
			return err
		}
		outcome = logging.OutcomeReused

	case r.cfg.TrainCounts != "":
		r.rep.Status("Reading training forms from %s", r.cfg.TrainCounts)
		var train []corpus.Entry
		err := readFile(r.cfg.TrainCounts, func(rd io.Reader) error {
			var err error
			train, err = corpus.ReadTrainingCounts(rd)
			return err
		})
		if err != nil {
			return err
		}

		r.rep.Status("Generating unobserved string edit neighbors as contrast set")
		lex := corpus.BuildLexicon(train, r.feats.Segments(), r.cfg.Contrast)
		r.out.Lexicon = lex

		path := r.path(AllFormsFile)
		r.rep.Status("Writing train and contrast forms to %s", path)
		if err := writeFile(path, func(w io.Writer) error { return corpus.WriteAllForms(w, lex) }); err != nil {
			return err
		}

	default:
		r.rep.Status("No lexicon file passed. Cannot evaluate constraints or set weights")
		r.done(logging.OutcomeSkipped, "")
		return nil
	}

	lex := r.out.Lexicon
	r.done(outcome, fmt.Sprintf("%s training forms (%s tokens), %s contrast forms",
		humanize.Comma(int64(lex.NTraining)), humanize.Comma(int64(lex.Total())), humanize.Comma(int64(lex.NContrast()))))
	return nil
}

func (r *runner) loadConstraints() error {
	r.rep.Stage("Obtaining constraint strings")
	outcome := logging.OutcomeDone
	var cons []string
	switch {
	case r.cfg.Constraints != "":
		r.rep.Status("Loading constraint names from %s", r.cfg.Constraints)
		err := readFile(r.cfg.Constraints, func(rd io.Reader) error {
			var err error
			cons, err = constraint.ReadList(rd)
			return err
		})
		if err != nil {
			return err
		}
		outcome = logging.OutcomeReused

	case r.cfg.Enumerate:
		r.rep.Status("Enumerating constraints over classes stated with at most %d feature values", r.cfg.MaxFeatures)
		cons = constraint.Enumerate(r.feats, r.cfg.MaxFeatures)
		path := r.path(ConstraintsFile)
		r.rep.Status("Writing constraints to %s", path)
		if err := writeFile(path, func(w io.Writer) error { return constraint.WriteList(w, cons) }); err != nil {
			return err
		}

	default:
		g, err := r.grammarFile()
		if err != nil {
			return err
		}
		cons = append([]string(nil), g.Constraints...)
		outcome = logging.OutcomeReused
	}

	r.out.Constraints = cons
	r.done(outcome, fmt.Sprintf("%s constraints", humanize.Comma(int64(len(cons)))))
	return nil
}

func (r *runner) loadViolations() error {
	r.rep.Stage("Ensuring that violations file is accessible")
	switch {
	case r.cfg.Evaluate:
		cons, err := r.reg.InterpretAll(r.out.Constraints)
		if err != nil {
			return err
		}

		path := r.path(ViolationsFile)
		r.rep.Status("Evaluating constraints and storing violations to %s", path)
		every := max(1, len(cons)/20)
		var res violation.Result
		err = writeFile(path, func(w io.Writer) error {
			tw := violation.NewTripleWriter(w)
			var err error
			res, err = violation.Evaluate(r.out.Lexicon, cons, tw, func(done int) {
				if done%every == 0 || done == len(cons) {
					r.rep.Status("evaluated %s of %s constraints", humanize.Comma(int64(done)), humanize.Comma(int64(len(cons))))
				}
			})
			if err != nil {
				return err
			}
			return tw.Flush()
		})
		if err != nil {
			return err
		}
		r.violPath = path
		r.out.Discriminativity = res.Discriminativity

		if err := r.writeDiscriminativity(); err != nil {
			return err
		}
		r.done(logging.OutcomeDone, fmt.Sprintf("%s nonzero violations", humanize.Comma(int64(res.NonZero))))

	case r.cfg.Violations != "":
		r.violPath = r.cfg.Violations
		r.rep.Status("Violations are stored in %s", r.violPath)
		r.done(logging.OutcomeReused, r.violPath)

	default:
		r.rep.Status("WARNING: You have not indicated a way to get the violations")
		r.done(logging.OutcomeSkipped, "")
	}
	return nil
}

func (r *runner) loadDiscriminativity() error {
	r.rep.Stage("Getting constraint discriminativities")
	switch {
	case r.out.Discriminativity != nil:
		r.rep.Status("Discriminativities were calculated during constraint evaluation")
		r.done(logging.OutcomeDone, "")

	case r.cfg.Discriminativity != "":
		r.rep.Status("Reading constraint discriminativities from %s", r.cfg.Discriminativity)
		err := readFile(r.cfg.Discriminativity, func(rd io.Reader) error {
			scores, err := violation.ReadDiscriminativity(rd, r.out.Constraints)
			r.out.Discriminativity = scores
			return err
		})
		if err != nil {
			return err
		}
		r.done(logging.OutcomeReused, r.cfg.Discriminativity)

	case r.cfg.Score:
		r.rep.Status("Calculating constraint discriminativity from %s", r.violPath)
		err := readFile(r.violPath, func(rd io.Reader) error {
			scores, err := violation.ScoreTriples(rd, r.out.Lexicon, len(r.out.Constraints))
			r.out.Discriminativity = scores
			return err
		})
		if err != nil {
			return err
		}
		if err := r.writeDiscriminativity(); err != nil {
			return err
		}
		r.done(logging.OutcomeDone, "")

	default:
		r.rep.Status("WARNING: No constraint discriminativities to get")
		r.done(logging.OutcomeSkipped, "")
	}
	return nil
}

func (r *runner) writeDiscriminativity() error {
	path := r.path(DiscriminativityFile)
	r.rep.Status("Writing constraint discriminativities to %s", path)
	return writeFile(path, func(w io.Writer) error {
		return violation.WriteDiscriminativity(w, r.out.Constraints, r.out.Discriminativity)
	})
}

func (r *runner) selectActive() error {
	r.rep.Stage("Selecting active constraints")
	if r.out.Discriminativity == nil {
		r.rep.Status("WARNING: No constraints to select")
		r.done(logging.OutcomeSkipped, "")
		return nil
	}

	active, err := selection.Select(r.out.Constraints, r.out.Discriminativity, r.cfg.Selection)
	if err != nil {
		return err
	}
	r.out.Active = active

	path := r.path(ActiveConstraintsFile)
	r.rep.Status("Writing active constraints to %s", path)
	if err := writeFile(path, func(w io.Writer) error { return selection.WriteActive(w, active) }); err != nil {
		return err
	}
	r.done(logging.OutcomeDone, fmt.Sprintf("%s active constraints", humanize.Comma(int64(len(active)))))
	return nil
}

func (r *runner) buildMatrix() error {
	r.rep.Stage("Reading sparse violation matrix in from file")
	if len(r.out.Active) == 0 || r.violPath == "" || r.out.Lexicon == nil {
		r.rep.Status("WARNING: No active constraints, skipping")
		r.done(logging.OutcomeSkipped, "")
		return nil
	}

	columns := selection.ColumnMap(r.out.Active)
	err := readFile(r.violPath, func(rd io.Reader) error {
		m, err := violation.LoadMatrix(rd, r.out.Lexicon.Len(), columns)
		r.matrix = m
		return err
	})
	if err != nil {
		return err
	}
	rows, cols := r.matrix.Dims()
	r.done(logging.OutcomeDone, fmt.Sprintf("%s x %s matrix, %s nonzero entries",
		humanize.Comma(int64(rows)), humanize.Comma(int64(cols)), humanize.Comma(int64(r.matrix.NNZ()))))
	return nil
}

func (r *runner) fit() error {
	r.rep.Stage("Weight-setting step")
	if r.matrix == nil {
		r.done(logging.OutcomeSkipped, "")
		return nil
	}

	counts := r.out.Lexicon.FloatCounts()
	r.rep.Status("Optimizing objective function with bounded L-BFGS")
	res, err := optimize.Fit(r.matrix, counts, selection.Scores(r.out.Active), optimize.FitOptions{
		Prior:    r.cfg.Prior,
		Settings: r.cfg.Settings,
	})
	if err != nil {
		return err
	}
	r.out.Fit = &res
	r.rep.Status("optimizer %s after %d iterations (%d evaluations), objective %g",
		res.Status, res.Iterations, res.FuncEvals, res.F)
	if res.Status != optimize.Converged {
		r.rep.Status("WARNING: optimizer did not converge; keeping the last iterate")
	}

	g, err := grammar.New(selection.Strings(r.out.Active), res.X)
	if err != nil {
		return err
	}
	path := r.path(GrammarFile)
	r.rep.Status("Writing learned weights to %s", path)
	if err := g.Save(path); err != nil {
		return err
	}
	r.out.Grammar = g
	r.out.GrammarPath = path

	r.rep.Status("Running objective function for trained grammar")
	loaded, err := grammar.Load(path)
	if err != nil {
		return err
	}
	scorer, err := loaded.Compile(r.reg)
	if err != nil {
		return err
	}
	evalCfg := r.cfg.Eval
	evalCfg.Lower, evalCfg.Upper = r.cfg.Settings.Lower, r.cfg.Settings.Upper
	ev := eval.NewEvalHarness(evalCfg).Run(eval.EvalInput{
		Grammar: loaded,
		Result:  res,
		Matrix:  r.matrix,
		Counts:  counts,
		Prior:   r.cfg.Prior,
		Scorer:  scorer,
		Lexicon: r.out.Lexicon,
	})
	r.out.Eval = &ev
	for _, m := range ev.Metrics {
		r.rep.Status("check %s=%g pass=%v", m.Name, m.Value, m.Pass)
	}
	if !ev.Passed {
		r.rep.Status("WARNING: %s; grammar not committed to the ledger", ev.Reason)
		r.done(logging.OutcomeFailed, ev.Reason)
		return nil
	}

	if r.store != nil {
		v, err := r.store.CommitGrammar(state.GrammarVersion{
			RunID:       r.out.RunID,
			Constraints: loaded.Constraints,
			Weights:     loaded.Weights,
			Objective:   res.F,
			Status:      res.Status.String(),
		})
		if err != nil {
			return err
		}
		r.out.VersionID = v.VersionID
		r.rep.Status("Committed grammar version %s", v.VersionID)
	}
	r.done(logging.OutcomeDone, fmt.Sprintf("objective %g, %s", res.F, res.Status))
	return nil
}

func (r *runner) test(w io.Writer) error {
	r.rep.Stage("Testing codeblock")
	if r.cfg.Test == "" {
		r.done(logging.OutcomeSkipped, "")
		return nil
	}

	g := r.out.Grammar
	if r.cfg.Grammar != "" {
		loaded, err := r.grammarFile()
		if err != nil {
			return err
		}
		g = loaded
	}
	if g == nil {
		return fmt.Errorf("%w: no grammar to test with", ErrConfig)
	}

	n, err := scoreForms(r.reg, g, r.cfg.Test, w)
	if err != nil {
		return err
	}
	r.done(logging.OutcomeDone, fmt.Sprintf("%s test forms", humanize.Comma(int64(n))))
	return nil
}

func (r *runner) grammarFile() (*grammar.Grammar, error) {
	if r.loaded == nil {
		r.rep.Status("Loading grammar from %s", r.cfg.Grammar)
		g, err := grammar.Load(r.cfg.Grammar)
		if err != nil {
			return nil, err
		}
		r.loaded = g
	}
	return r.loaded, nil
}

// #endregion stages

// #region test
// TestGrammar scores every form of testFile with the grammar in grammarFile
// and writes one result line per form to w.
func TestGrammar(featureFile, grammarFile, testFile string, w io.Writer, logger *log.Logger) error {
	fs, err := features.Load(featureFile)
	if err != nil {
		return err
	}
	g, err := grammar.Load(grammarFile)
	if err != nil {
		return err
	}
	_, err = scoreForms(constraint.NewRegistry(fs, logger), g, testFile, w)
	return err
}

func scoreForms(reg *constraint.Registry, g *grammar.Grammar, testFile string, w io.Writer) (int, error) {
	scorer, err := g.Compile(reg)
	if err != nil {
		return 0, err
	}
	var forms []string
	err = readFile(testFile, func(rd io.Reader) error {
		var err error
		forms, err = corpus.ReadForms(rd)
		return err
	})
	if err != nil {
		return 0, err
	}
	if err := grammar.WriteTestResults(w, scorer, forms); err != nil {
		return 0, err
	}
	return len(forms), nil
}

// #endregion test

// #region files
func readFile(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if err := fn(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// #endregion files
