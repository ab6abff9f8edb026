package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"

	"github.com/danielpatrickdp/phoment/internal/grammar"
	"github.com/danielpatrickdp/phoment/internal/logging"
	"github.com/danielpatrickdp/phoment/internal/state"
)

const timeLayout = "2006-01-02T15:04:05Z"

func ledgerFlags(cmd *commander.Command) {
	cmd.Flag.String("db", defaultDB(defaultWorkDir()), "Run ledger written by learn")
}

func openLedger(cmd *commander.Command) (*state.Store, error) {
	path := cmd.Flag.Lookup("db").Value.String()
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return state.NewStore(path)
}

// #region versions
func versionsCmd() *commander.Command {
	cmd := &commander.Command{
		UsageLine: "versions [-db ledger.db] [-last N] [-version id] [-json]",
		Short:     "list committed grammar versions",
		Flag:      *flag.NewFlagSet("versions", flag.ExitOnError),
	}
	ledgerFlags(cmd)
	last := cmd.Flag.Int("last", 20, "Show N most recent versions")
	version := cmd.Flag.String("version", "", "Show a single version in detail")
	jsonOut := cmd.Flag.Bool("json", false, "Output as JSON instead of a table")

	cmd.Run = func(cmd *commander.Command, args []string) error {
		store, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		if *version != "" {
			return runDetailMode(os.Stdout, store, *version, *jsonOut)
		}
		return runListMode(os.Stdout, store, *last, *jsonOut)
	}
	return cmd
}

type listRow struct {
	VersionID   string  `json:"version_id"`
	Active      bool    `json:"active"`
	RunID       string  `json:"run_id"`
	Constraints int     `json:"constraints"`
	Objective   float64 `json:"objective"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
}

func runListMode(w io.Writer, store *state.Store, last int, jsonOut bool) error {
	versions, err := store.ListVersions(last)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Fprintln(os.Stderr, "no versions found")
		return nil
	}
	activeID := ""
	if active, err := store.GetActive(); err == nil {
		activeID = active.VersionID
	}

	// store returns newest first, print chronologically
	rows := make([]listRow, len(versions))
	for i, v := range versions {
		rows[len(versions)-1-i] = listRow{
			VersionID:   v.VersionID,
			Active:      v.VersionID == activeID,
			RunID:       v.RunID,
			Constraints: len(v.Constraints),
			Objective:   v.Objective,
			Status:      v.Status,
			CreatedAt:   v.CreatedAt.Format(timeLayout),
		}
	}

	if jsonOut {
		return printJSON(w, rows)
	}
	printListTable(w, rows)
	return nil
}

func printListTable(w io.Writer, rows []listRow) {
	fmt.Fprintf(w, "%-10s  %-8s  %5s  %14s  %-18s  %s\n",
		"Version", "Run", "Cons", "Objective", "Status", "Time")
	fmt.Fprintf(w, "%-10s+-%-8s+-%5s+-%14s+-%-18s+-%s\n",
		"----------", "--------", "-----", "--------------", "------------------", "--------------------")
	for _, r := range rows {
		vid := shortID(r.VersionID)
		if r.Active {
			vid += " *"
		}
		fmt.Fprintf(w, "%-10s  %-8s  %5d  %14.4f  %-18s  %s\n",
			vid, shortID(r.RunID), r.Constraints, r.Objective, r.Status, r.CreatedAt)
	}
}

type detailOutput struct {
	VersionID string         `json:"version_id"`
	ParentID  string         `json:"parent_id"`
	RunID     string         `json:"run_id"`
	CreatedAt string         `json:"created_at"`
	Objective float64        `json:"objective"`
	Status    string         `json:"status"`
	Weights   []weightRow    `json:"weights"`
	Stages    []stageSummary `json:"stages,omitempty"`
}

type weightRow struct {
	Constraint string  `json:"constraint"`
	Weight     float64 `json:"weight"`
}

type stageSummary struct {
	Stage   string  `json:"stage"`
	Outcome string  `json:"outcome"`
	Detail  string  `json:"detail,omitempty"`
	Seconds float64 `json:"seconds"`
}

func runDetailMode(w io.Writer, store *state.Store, versionID string, jsonOut bool) error {
	v, err := store.GetVersion(versionID)
	if err != nil {
		return err
	}
	stages, err := logging.ListStages(store.DB(), v.RunID)
	if err != nil {
		return err
	}

	out := detailOutput{
		VersionID: v.VersionID,
		ParentID:  v.ParentID,
		RunID:     v.RunID,
		CreatedAt: v.CreatedAt.Format(timeLayout),
		Objective: v.Objective,
		Status:    v.Status,
	}
	for j, c := range v.Constraints {
		out.Weights = append(out.Weights, weightRow{Constraint: c, Weight: v.Weights[j]})
	}
	for _, s := range stages {
		out.Stages = append(out.Stages, stageSummary{
			Stage: s.Stage, Outcome: s.Outcome, Detail: s.Detail, Seconds: s.Elapsed.Seconds(),
		})
	}

	if jsonOut {
		return printJSON(w, out)
	}

	fmt.Fprintf(w, "Version:    %s\n", out.VersionID)
	fmt.Fprintf(w, "Parent:     %s\n", out.ParentID)
	fmt.Fprintf(w, "Run:        %s\n", out.RunID)
	fmt.Fprintf(w, "Created:    %s\n", out.CreatedAt)
	fmt.Fprintf(w, "Objective:  %.4f\n", out.Objective)
	fmt.Fprintf(w, "Status:     %s\n", out.Status)

	fmt.Fprintf(w, "\nWeights:\n")
	for _, r := range out.Weights {
		fmt.Fprintf(w, "  %-40s %s\n", r.Constraint, strconv.FormatFloat(r.Weight, 'g', -1, 64))
	}
	if len(out.Stages) > 0 {
		fmt.Fprintf(w, "\nStages:\n")
		for _, s := range out.Stages {
			fmt.Fprintf(w, "  %-45s %-8s %7.1fs  %s\n", s.Stage, s.Outcome, s.Seconds, s.Detail)
		}
	}
	return nil
}

// #endregion versions

// #region rollback
func rollbackCmd() *commander.Command {
	cmd := &commander.Command{
		UsageLine: "rollback -version id [-db ledger.db]",
		Short:     "make an earlier grammar version active",
		Flag:      *flag.NewFlagSet("rollback", flag.ExitOnError),
	}
	ledgerFlags(cmd)
	cmd.Flag.String("version", "", "Version to make active")

	cmd.Run = func(cmd *commander.Command, args []string) error {
		if err := verifyFlags(cmd, []string{"version"}); err != nil {
			return err
		}
		store, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		id := cmd.Flag.Lookup("version").Value.String()
		if err := store.Rollback(id); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "active grammar is now %s\n", shortID(id))
		return nil
	}
	return cmd
}

// #endregion rollback

// #region export
func exportCmd() *commander.Command {
	cmd := &commander.Command{
		UsageLine: "export -out grammar.txt [-db ledger.db] [-version id]",
		Short:     "write a ledger grammar to a grammar file",
		Long: `
write the active grammar (or -version) in the grammar file format accepted
by "learn -grammar" and "test -grammar"
`,
		Flag: *flag.NewFlagSet("export", flag.ExitOnError),
	}
	ledgerFlags(cmd)
	cmd.Flag.String("version", "", "Version to export (default active)")
	cmd.Flag.String("out", "", "Grammar file to write")

	cmd.Run = func(cmd *commander.Command, args []string) error {
		if err := verifyFlags(cmd, []string{"out"}); err != nil {
			return err
		}
		store, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer store.Close()
		return exportGrammar(store, cmd.Flag.Lookup("version").Value.String(), cmd.Flag.Lookup("out").Value.String())
	}
	return cmd
}

func exportGrammar(store *state.Store, versionID, path string) error {
	var (
		v   state.GrammarVersion
		err error
	)
	if versionID == "" {
		v, err = store.GetActive()
	} else {
		v, err = store.GetVersion(versionID)
	}
	if err != nil {
		return err
	}
	g, err := grammar.New(v.Constraints, v.Weights)
	if err != nil {
		return err
	}
	return g.Save(path)
}

// #endregion export

// #region output
func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
