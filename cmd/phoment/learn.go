package main

import (
	"bufio"
	"os"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"

	"github.com/danielpatrickdp/phoment/internal/pipeline"
)

// #region learn
func learnCmd() *commander.Command {
	cfg := pipeline.DefaultConfig()
	var noLedger bool

	cmd := &commander.Command{
		UsageLine: "learn <featureFile> [options]",
		Short:     "learn a weighted n-gram grammar and score test forms",
		Long: `
learn a maximum-entropy phonotactic grammar

	$ phoment learn features.txt -train words.txt -enumerate -evaluate -maxcons 100 -test test.txt

Checkpoint files (allForms.txt, constraints.txt, violations.txt,
discriminativity.txt, active_constraints.txt, grammar.txt) are written to
-workdir and can be passed back in with -allforms, -constraints, -violations,
-discrim and -grammar to skip stages on a later run. Test results go to stdout.
`,
		Flag: *flag.NewFlagSet("learn", flag.ExitOnError),
	}
	cmd.Flag.StringVar(&cfg.WorkDir, "workdir", defaultWorkDir(), "Working directory for checkpoint files")
	cmd.Flag.StringVar(&cfg.DBPath, "db", "", "Run ledger (default <workdir>/ledger.db)")
	cmd.Flag.BoolVar(&noLedger, "noledger", false, "Do not record the run in a ledger")

	cmd.Flag.StringVar(&cfg.AllForms, "allforms", "", "Training and contrast forms with counts")
	cmd.Flag.StringVar(&cfg.TrainCounts, "train", "", "Training forms with optional counts")
	cmd.Flag.Float64Var(&cfg.Contrast.Keep, "keep", cfg.Contrast.Keep, "Probability of keeping each contrast neighbour")
	cmd.Flag.Int64Var(&cfg.Contrast.Seed, "seed", cfg.Contrast.Seed, "Random seed for contrast sampling")

	cmd.Flag.StringVar(&cfg.Constraints, "constraints", "", "Constraint list file")
	cmd.Flag.BoolVar(&cfg.Enumerate, "enumerate", false, "Enumerate constraints from the natural classes")
	cmd.Flag.IntVar(&cfg.MaxFeatures, "maxfeats", cfg.MaxFeatures, "Max feature values per enumerated class (0 = all)")

	cmd.Flag.StringVar(&cfg.Violations, "violations", "", "Stored violation triples")
	cmd.Flag.BoolVar(&cfg.Evaluate, "evaluate", false, "Evaluate constraints on training and contrast forms")
	cmd.Flag.StringVar(&cfg.Discriminativity, "discrim", "", "Stored discriminativity scores")
	cmd.Flag.BoolVar(&cfg.Score, "score", false, "Calculate discriminativity from the violations file")

	cmd.Flag.IntVar(&cfg.Selection.MaxConstraints, "maxcons", 0, "Maximum number of active constraints (0 = all)")
	cmd.Flag.Float64Var(&cfg.Selection.Threshold, "thresh", cfg.Selection.Threshold, "Ignore constraints at or below this discriminativity")

	cmd.Flag.Float64Var(&cfg.Prior.L1, "l1", cfg.Prior.L1, "Multiplier for the L1 regularizer")
	cmd.Flag.Float64Var(&cfg.Prior.L2, "l2", cfg.Prior.L2, "Multiplier for the L2 regularizer")
	cmd.Flag.Float64Var(&cfg.Settings.Precision, "precision", cfg.Settings.Precision, "Optimizer precision factor (multiple of machine epsilon)")
	cmd.Flag.IntVar(&cfg.Settings.MaxIter, "maxiter", cfg.Settings.MaxIter, "Optimizer iteration limit")

	cmd.Flag.StringVar(&cfg.Grammar, "grammar", "", "Stored grammar to load for testing")
	cmd.Flag.StringVar(&cfg.Test, "test", "", "Test forms to score")

	cmd.Run = func(cmd *commander.Command, args []string) error {
		featureFile, err := featureArg(cmd, args)
		if err != nil {
			return err
		}
		cfg.FeatureFile = featureFile
		switch {
		case noLedger:
			cfg.DBPath = ""
		case cfg.DBPath == "":
			cfg.DBPath = defaultDB(cfg.WorkDir)
		}

		out := bufio.NewWriter(os.Stdout)
		defer out.Flush()
		_, err = pipeline.Run(cfg, stderrLogger(), out)
		return err
	}
	return cmd
}

// #endregion learn
