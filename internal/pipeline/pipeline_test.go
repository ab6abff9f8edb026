package pipeline

import (
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/phoment/internal/logging"
	"github.com/danielpatrickdp/phoment/internal/state"
)

// #region helpers
const featureTable = `	syl cons voice
p	-+-
t	-+-
k	-+-
b	-++
d	-++
a	+-+
i	+-+
`

const trainCounts = "p a\t3\nt a\t2\nk a t a\t1\nb a d a\t1\nt i k i\n"

const testForms = "p a\nt t a\na p\nb i\n"

type inputs struct {
	dir, features, train, test string
}

func writeInputs(t *testing.T) inputs {
	t.Helper()
	dir := t.TempDir()
	in := inputs{
		dir:      dir,
		features: filepath.Join(dir, "features.txt"),
		train:    filepath.Join(dir, "train.txt"),
		test:     filepath.Join(dir, "test.txt"),
	}
	require.NoError(t, os.WriteFile(in.features, []byte(featureTable), 0o644))
	require.NoError(t, os.WriteFile(in.train, []byte(trainCounts), 0o644))
	require.NoError(t, os.WriteFile(in.test, []byte(testForms), 0o644))
	return in
}

func learnConfig(in inputs, workDir string) Config {
	cfg := DefaultConfig()
	cfg.FeatureFile = in.features
	cfg.WorkDir = filepath.Join(in.dir, workDir)
	cfg.TrainCounts = in.train
	cfg.Contrast.Keep = 1
	cfg.Enumerate = true
	cfg.Evaluate = true
	cfg.Selection.MaxConstraints = 10
	cfg.Test = in.test
	return cfg
}

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

// #endregion helpers

// #region run-tests
func TestRunFullPipeline(t *testing.T) {
	in := writeInputs(t)
	cfg := learnConfig(in, "out")
	cfg.DBPath = filepath.Join(in.dir, "ledger.db")

	var logs, results bytes.Buffer
	out, err := Run(cfg, log.New(&logs, "", 0), &results)
	require.NoError(t, err)

	for _, name := range []string{
		AllFormsFile, ConstraintsFile, ViolationsFile, DiscriminativityFile,
		ActiveConstraintsFile, GrammarFile, NaturalClassesFile,
	} {
		assert.FileExists(t, filepath.Join(cfg.WorkDir, name))
	}
	assert.Contains(t, logs.String(), "**** Weight-setting step ****")

	require.NotNil(t, out.Fit)
	require.NotNil(t, out.Grammar)
	require.NotEmpty(t, out.Active)
	assert.LessOrEqual(t, len(out.Active), 10)
	for _, w := range out.Grammar.Weights {
		assert.GreaterOrEqual(t, w, -25.0)
		assert.LessOrEqual(t, w, 0.0)
	}
	require.NotNil(t, out.Eval)
	assert.True(t, out.Eval.Passed, out.Eval.Reason)

	lines := strings.Split(strings.TrimRight(results.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	for _, line := range lines {
		assert.Len(t, strings.Split(line, "\t"), len(out.Active)+2)
	}
	assert.True(t, strings.HasPrefix(lines[1], "t t a\t"))

	store, err := state.NewStore(cfg.DBPath)
	require.NoError(t, err)
	defer store.Close()

	active, err := store.GetActive()
	require.NoError(t, err)
	assert.Equal(t, out.VersionID, active.VersionID)
	assert.Equal(t, out.Grammar.Weights, active.Weights)

	run, err := store.GetRun(out.RunID)
	require.NoError(t, err)
	assert.Equal(t, "done", run.Status)

	stages, err := logging.ListStages(store.DB(), out.RunID)
	require.NoError(t, err)
	assert.Len(t, stages, 9)
}

func TestRunFromCheckpointsReproducesGrammar(t *testing.T) {
	in := writeInputs(t)
	first, err := Run(learnConfig(in, "first"), quiet(), io.Discard)
	require.NoError(t, err)

	workDir := filepath.Join(in.dir, "first")
	cfg := DefaultConfig()
	cfg.FeatureFile = in.features
	cfg.WorkDir = filepath.Join(in.dir, "second")
	cfg.AllForms = filepath.Join(workDir, AllFormsFile)
	cfg.Constraints = filepath.Join(workDir, ConstraintsFile)
	cfg.Violations = filepath.Join(workDir, ViolationsFile)
	cfg.Discriminativity = filepath.Join(workDir, DiscriminativityFile)
	cfg.Selection.MaxConstraints = 10

	second, err := Run(cfg, quiet(), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, first.Lexicon, second.Lexicon)
	assert.Equal(t, first.Active, second.Active)
	assert.Equal(t, first.Grammar, second.Grammar)
}

func TestRunScoreFromViolations(t *testing.T) {
	in := writeInputs(t)
	first, err := Run(learnConfig(in, "first"), quiet(), io.Discard)
	require.NoError(t, err)

	workDir := filepath.Join(in.dir, "first")
	cfg := DefaultConfig()
	cfg.FeatureFile = in.features
	cfg.WorkDir = filepath.Join(in.dir, "scored")
	cfg.AllForms = filepath.Join(workDir, AllFormsFile)
	cfg.Constraints = filepath.Join(workDir, ConstraintsFile)
	cfg.Violations = filepath.Join(workDir, ViolationsFile)
	cfg.Score = true

	scored, err := Run(cfg, quiet(), io.Discard)
	require.NoError(t, err)
	assert.InDeltaSlice(t, first.Discriminativity, scored.Discriminativity, 1e-12)
	assert.FileExists(t, filepath.Join(cfg.WorkDir, DiscriminativityFile))
}

func TestRunTestsStoredGrammar(t *testing.T) {
	in := writeInputs(t)
	var want bytes.Buffer
	first, err := Run(learnConfig(in, "first"), quiet(), &want)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.FeatureFile = in.features
	cfg.WorkDir = filepath.Join(in.dir, "tested")
	cfg.Grammar = first.GrammarPath
	cfg.Test = in.test

	var got bytes.Buffer
	out, err := Run(cfg, quiet(), &got)
	require.NoError(t, err)
	assert.Nil(t, out.Fit)
	assert.Equal(t, want.String(), got.String())

	var direct bytes.Buffer
	require.NoError(t, TestGrammar(in.features, first.GrammarPath, in.test, &direct, quiet()))
	assert.Equal(t, want.String(), direct.String())
}

func TestRunWithoutLexiconSkipsFitting(t *testing.T) {
	in := writeInputs(t)
	cfg := DefaultConfig()
	cfg.FeatureFile = in.features
	cfg.WorkDir = filepath.Join(in.dir, "enum")
	cfg.Enumerate = true

	var logs bytes.Buffer
	out, err := Run(cfg, log.New(&logs, "", 0), io.Discard)
	require.NoError(t, err)
	assert.NotEmpty(t, out.Constraints)
	assert.Nil(t, out.Lexicon)
	assert.Nil(t, out.Grammar)
	assert.Contains(t, logs.String(), "No lexicon file passed")
	assert.NoFileExists(t, filepath.Join(cfg.WorkDir, GrammarFile))
}

func TestRunMalformedInputFails(t *testing.T) {
	in := writeInputs(t)
	bad := filepath.Join(in.dir, "bad.txt")
	require.NoError(t, os.WriteFile(bad, []byte("p a\tmany\n"), 0o644))

	cfg := learnConfig(in, "bad")
	cfg.TrainCounts = bad
	cfg.DBPath = filepath.Join(in.dir, "ledger.db")

	out, err := Run(cfg, quiet(), io.Discard)
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(cfg.WorkDir, GrammarFile))

	store, err := state.NewStore(cfg.DBPath)
	require.NoError(t, err)
	defer store.Close()
	run, err := store.GetRun(out.RunID)
	require.NoError(t, err)
	assert.Equal(t, "failed", run.Status)
}

// #endregion run-tests

// #region config-tests
func TestValidate(t *testing.T) {
	in := writeInputs(t)
	cases := map[string]func(*Config){
		"no feature file":    func(c *Config) { c.FeatureFile = "" },
		"no constraints":     func(c *Config) { c.Enumerate = false },
		"evaluate no lex":    func(c *Config) { c.TrainCounts = "" },
		"score no lex":       func(c *Config) { c.TrainCounts = ""; c.Evaluate = false; c.Score = true; c.Test = "" },
		"score no viols":     func(c *Config) { c.Evaluate = false; c.Score = true; c.Test = "" },
		"test without model": func(c *Config) { c.Evaluate = false },
		"negative maxcons":   func(c *Config) { c.Selection.MaxConstraints = -1 },
	}
	for name, mutate := range cases {
		cfg := learnConfig(in, "cfg")
		mutate(&cfg)
		_, err := Run(cfg, quiet(), io.Discard)
		assert.ErrorIs(t, err, ErrConfig, name)
	}
	assert.NoDirExists(t, filepath.Join(in.dir, "cfg"))

	require.NoError(t, learnConfig(in, "cfg").Validate())
}

// #endregion config-tests
