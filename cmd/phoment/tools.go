package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"

	"github.com/danielpatrickdp/phoment/internal/corpus"
	"github.com/danielpatrickdp/phoment/internal/features"
	"github.com/danielpatrickdp/phoment/internal/pipeline"
)

// #region classes
func classesCmd() *commander.Command {
	cmd := &commander.Command{
		UsageLine: "classes <featureFile> [-out file]",
		Short:     "list the natural classes of a feature table",
		Flag:      *flag.NewFlagSet("classes", flag.ExitOnError),
	}
	cmd.Flag.String("out", "", "Output file (default stdout)")

	cmd.Run = func(cmd *commander.Command, args []string) error {
		featureFile, err := featureArg(cmd, args)
		if err != nil {
			return err
		}
		fs, err := features.Load(featureFile)
		if err != nil {
			return err
		}
		return withOutput(cmd.Flag.Lookup("out").Value.String(), fs.SaveClasses)
	}
	return cmd
}

// #endregion classes

// #region neighbors
func neighborsCmd() *commander.Command {
	opts := corpus.DefaultContrastOptions()
	cmd := &commander.Command{
		UsageLine: "neighbors <featureFile> -train file [-out file]",
		Short:     "build the training and contrast set without fitting",
		Long: `
write training forms followed by a sample of their unattested one-edit
neighbours, in the allForms.txt format accepted by "learn -allforms"
`,
		Flag: *flag.NewFlagSet("neighbors", flag.ExitOnError),
	}
	cmd.Flag.String("train", "", "Training forms with optional counts")
	cmd.Flag.String("out", "", "Output file (default stdout)")
	cmd.Flag.Float64Var(&opts.Keep, "keep", opts.Keep, "Probability of keeping each contrast neighbour")
	cmd.Flag.Int64Var(&opts.Seed, "seed", opts.Seed, "Random seed for contrast sampling")

	cmd.Run = func(cmd *commander.Command, args []string) error {
		featureFile, err := featureArg(cmd, args)
		if err != nil {
			return err
		}
		if err := verifyFlags(cmd, []string{"train"}); err != nil {
			return err
		}
		fs, err := features.Load(featureFile)
		if err != nil {
			return err
		}

		trainFile := cmd.Flag.Lookup("train").Value.String()
		f, err := os.Open(trainFile)
		if err != nil {
			return fmt.Errorf("open %s: %w", trainFile, err)
		}
		train, err := corpus.ReadTrainingCounts(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("read %s: %w", trainFile, err)
		}

		lex := corpus.BuildLexicon(train, fs.Segments(), opts)
		stderrLogger().Printf("%d training forms, %d contrast forms", lex.NTraining, lex.NContrast())
		return withOutput(cmd.Flag.Lookup("out").Value.String(), func(w io.Writer) error {
			return corpus.WriteAllForms(w, lex)
		})
	}
	return cmd
}

// #endregion neighbors

// #region test
func testCmd() *commander.Command {
	cmd := &commander.Command{
		UsageLine: "test <featureFile> -grammar file -test file",
		Short:     "score test forms with a stored grammar",
		Flag:      *flag.NewFlagSet("test", flag.ExitOnError),
	}
	cmd.Flag.String("grammar", "", "Stored grammar file")
	cmd.Flag.String("test", "", "Test forms to score")

	cmd.Run = func(cmd *commander.Command, args []string) error {
		featureFile, err := featureArg(cmd, args)
		if err != nil {
			return err
		}
		if err := verifyFlags(cmd, []string{"grammar", "test"}); err != nil {
			return err
		}
		out := bufio.NewWriter(os.Stdout)
		defer out.Flush()
		return pipeline.TestGrammar(
			featureFile,
			cmd.Flag.Lookup("grammar").Value.String(),
			cmd.Flag.Lookup("test").Value.String(),
			out, stderrLogger())
	}
	return cmd
}

// #endregion test

// #region output
// withOutput runs fn against path, or buffered stdout when path is empty.
func withOutput(path string, fn func(io.Writer) error) error {
	if path == "" {
		out := bufio.NewWriter(os.Stdout)
		if err := fn(out); err != nil {
			return err
		}
		return out.Flush()
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// #endregion output
