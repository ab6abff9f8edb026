package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/gonuts/commander"

	"github.com/danielpatrickdp/phoment/internal/pipeline"
)

// #region main
var root = &commander.Command{
	UsageLine: "phoment <command> [arguments]",
	Short:     "maximum-entropy phonotactic grammar learner",
}

func init() {
	root.Subcommands = []*commander.Command{
		learnCmd(),
		classesCmd(),
		neighborsCmd(),
		testCmd(),
		versionsCmd(),
		rollbackCmd(),
		exportCmd(),
	}
}

func main() {
	err := root.Dispatch(os.Args[1:])
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "**err**: %v\n", err)
	if errors.Is(err, pipeline.ErrConfig) {
		os.Exit(2)
	}
	os.Exit(1)
}

// #endregion main

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultWorkDir() string {
	return envOr("PHOMENT_WORKDIR", "output")
}

// defaultDB is the ledger path used when -db is not given.
func defaultDB(workDir string) string {
	return envOr("PHOMENT_DB", filepath.Join(workDir, "ledger.db"))
}

func verifyFlags(cmd *commander.Command, required []string) error {
	for _, name := range required {
		f := cmd.Flag.Lookup(name)
		if f == nil || f.Value.String() == "" {
			cmd.Usage()
			return fmt.Errorf("%w: required flag -%s not set", pipeline.ErrConfig, name)
		}
	}
	return nil
}

func featureArg(cmd *commander.Command, args []string) (string, error) {
	if len(args) != 1 {
		cmd.Usage()
		return "", fmt.Errorf("%w: %s needs exactly one feature file", pipeline.ErrConfig, cmd.Name())
	}
	return args[0], nil
}

func stderrLogger() *log.Logger {
	return log.New(os.Stderr, "", 0)
}

// #endregion helpers
