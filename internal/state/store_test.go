package state

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func beginRun(t *testing.T, s *Store) Run {
	t.Helper()
	run, err := s.BeginRun("features.txt", `{"l1":1}`)
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	return run
}

func TestBeginAndFinishRun(t *testing.T) {
	s := tempDB(t)
	run := beginRun(t, s)
	if run.RunID == "" {
		t.Fatal("expected non-empty run ID")
	}
	if run.Status != "running" {
		t.Fatalf("expected running, got %s", run.Status)
	}

	if err := s.FinishRun(run.RunID, "done"); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	got, err := s.GetRun(run.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != "done" {
		t.Fatalf("expected done, got %s", got.Status)
	}
	if got.FinishedAt.IsZero() {
		t.Fatal("expected finished_at to be set")
	}
	if got.ConfigJSON != `{"l1":1}` {
		t.Fatalf("config round trip: %s", got.ConfigJSON)
	}

	if err := s.FinishRun("missing", "done"); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestGetActiveEmpty(t *testing.T) {
	s := tempDB(t)
	_, err := s.GetActive()
	if !errors.Is(err, ErrNoActive) {
		t.Fatalf("expected ErrNoActive, got %v", err)
	}
}

func TestCommitGrammarRoundTrip(t *testing.T) {
	s := tempDB(t)
	run := beginRun(t, s)

	weights := []float64{-1.0 / 3.0, -25, 0, math.SmallestNonzeroFloat64 * -1}
	v1, err := s.CommitGrammar(GrammarVersion{
		RunID:       run.RunID,
		Constraints: []string{"Ngram:[+syl]", "Ngram:^[-syl] [-syl]", "Ngram:a", "Ngram:[]"},
		Weights:     weights,
		Objective:   12.5,
		Status:      "converged",
	})
	if err != nil {
		t.Fatalf("CommitGrammar: %v", err)
	}
	if v1.VersionID == "" {
		t.Fatal("expected generated version ID")
	}
	if v1.ParentID != "" {
		t.Fatalf("expected no parent, got %s", v1.ParentID)
	}

	cur, err := s.GetActive()
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if cur.VersionID != v1.VersionID {
		t.Fatalf("expected %s, got %s", v1.VersionID, cur.VersionID)
	}
	for i, w := range weights {
		if cur.Weights[i] != w {
			t.Fatalf("weight %d: expected %v, got %v", i, w, cur.Weights[i])
		}
	}
	if cur.Constraints[1] != "Ngram:^[-syl] [-syl]" {
		t.Fatalf("constraint round trip: %q", cur.Constraints[1])
	}
	if cur.Objective != 12.5 || cur.Status != "converged" || cur.RunID != run.RunID {
		t.Fatalf("unexpected fields: %+v", cur)
	}
}

func TestCommitAndRollback(t *testing.T) {
	s := tempDB(t)
	run := beginRun(t, s)

	v1, err := s.CommitGrammar(GrammarVersion{
		RunID:       run.RunID,
		Constraints: []string{"Ngram:a"},
		Weights:     []float64{-1},
		Status:      "converged",
	})
	if err != nil {
		t.Fatalf("CommitGrammar v1: %v", err)
	}
	v2, err := s.CommitGrammar(GrammarVersion{
		VersionID:   "v2-test",
		RunID:       run.RunID,
		Constraints: []string{"Ngram:a"},
		Weights:     []float64{-1.5},
		Status:      "max_iterations",
	})
	if err != nil {
		t.Fatalf("CommitGrammar v2: %v", err)
	}
	if v2.ParentID != v1.VersionID {
		t.Fatalf("expected parent %s, got %s", v1.VersionID, v2.ParentID)
	}

	cur, _ := s.GetActive()
	if cur.VersionID != "v2-test" {
		t.Fatalf("expected v2-test, got %s", cur.VersionID)
	}
	if cur.Weights[0] != -1.5 {
		t.Fatalf("expected -1.5, got %f", cur.Weights[0])
	}

	if err := s.Rollback(v1.VersionID); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	cur, _ = s.GetActive()
	if cur.VersionID != v1.VersionID {
		t.Fatalf("expected %s after rollback, got %s", v1.VersionID, cur.VersionID)
	}
}

func TestRollbackNonExistent(t *testing.T) {
	s := tempDB(t)
	err := s.Rollback("nonexistent-id")
	if !errors.Is(err, ErrVersionNotFound) {
		t.Fatalf("expected ErrVersionNotFound, got %v", err)
	}
}

func TestGetVersionNonExistent(t *testing.T) {
	s := tempDB(t)
	_, err := s.GetVersion("nonexistent-id")
	if !errors.Is(err, ErrVersionNotFound) {
		t.Fatalf("expected ErrVersionNotFound, got %v", err)
	}
}

func TestCommitGrammarLengthMismatch(t *testing.T) {
	s := tempDB(t)
	run := beginRun(t, s)
	_, err := s.CommitGrammar(GrammarVersion{
		RunID:       run.RunID,
		Constraints: []string{"Ngram:a", "Ngram:b"},
		Weights:     []float64{-1},
	})
	if err == nil {
		t.Fatal("expected error for mismatched lengths")
	}
}

func TestCommitGrammarUnknownRun(t *testing.T) {
	s := tempDB(t)
	_, err := s.CommitGrammar(GrammarVersion{
		RunID:       "no-such-run",
		Constraints: []string{"Ngram:a"},
		Weights:     []float64{-1},
	})
	if err == nil {
		t.Fatal("expected foreign key error for unknown run")
	}
	if _, err := s.GetActive(); !errors.Is(err, ErrNoActive) {
		t.Fatalf("failed commit must not move the active pointer, got %v", err)
	}
}

func TestListVersions(t *testing.T) {
	s := tempDB(t)
	run := beginRun(t, s)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"v1", "v2", "v3"} {
		_, err := s.CommitGrammar(GrammarVersion{
			VersionID:   id,
			RunID:       run.RunID,
			Constraints: []string{"Ngram:a"},
			Weights:     []float64{float64(-i)},
			Status:      "converged",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("CommitGrammar %s: %v", id, err)
		}
	}

	versions, err := s.ListVersions(2)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(versions))
	}
	if versions[0].VersionID != "v3" || versions[1].VersionID != "v2" {
		t.Fatalf("expected newest first, got %s, %s", versions[0].VersionID, versions[1].VersionID)
	}
	if versions[0].ParentID != "v2" {
		t.Fatalf("expected parent v2, got %s", versions[0].ParentID)
	}
}

func TestWeightEncodingRoundTrip(t *testing.T) {
	w := []float64{0, -0.1, -25, math.Inf(-1)}
	got := decodeWeights(encodeWeights(w))
	if len(got) != len(w) {
		t.Fatalf("length: expected %d, got %d", len(w), len(got))
	}
	for i := range w {
		if got[i] != w[i] {
			t.Fatalf("index %d: expected %v, got %v", i, w[i], got[i])
		}
	}
}
