package grammar

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/phoment/internal/constraint"
	"github.com/danielpatrickdp/phoment/internal/corpus"
)

// #region construct
// New pairs constraints with weights.
func New(conStrs []string, weights []float64) (*Grammar, error) {
	if len(conStrs) != len(weights) {
		return nil, fmt.Errorf("%w: %d constraints, %d weights", ErrLengthMismatch, len(conStrs), len(weights))
	}
	return &Grammar{
		Constraints: append([]string(nil), conStrs...),
		Weights:     append([]float64(nil), weights...),
	}, nil
}

// #endregion construct

// #region io
// Write writes "constraint<TAB>weight" lines. Weights use the shortest
// representation that parses back to the same float64.
func (g *Grammar) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for j, c := range g.Constraints {
		if _, err := fmt.Fprintf(bw, "%s\t%s\n", c, strconv.FormatFloat(g.Weights[j], 'g', -1, 64)); err != nil {
			return fmt.Errorf("write grammar: %w", err)
		}
	}
	return bw.Flush()
}

// Save writes the grammar to path through a temporary file in the same
// directory, so an interrupted save never leaves a partial grammar.
func (g *Grammar) Save(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".grammar-*")
	if err != nil {
		return fmt.Errorf("save grammar: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := g.Write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save grammar: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save grammar: %w", err)
	}
	return nil
}

// Read parses "constraint<TAB>weight" lines, skipping blank lines.
func Read(r io.Reader) (*Grammar, error) {
	g := &Grammar{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		con, weight, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("%w: line %d: missing weight", ErrMalformedGrammar, lineNo)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(weight), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedGrammar, lineNo, err)
		}
		g.Constraints = append(g.Constraints, con)
		g.Weights = append(g.Weights, w)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan grammar: %w", err)
	}
	return g, nil
}

// Load reads a grammar file.
func Load(path string) (*Grammar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open grammar: %w", err)
	}
	defer f.Close()
	g, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// #endregion io

// #region score
// Compile interprets every constraint of g with reg.
func (g *Grammar) Compile(reg *constraint.Registry) (*Scorer, error) {
	cons, err := reg.InterpretAll(g.Constraints)
	if err != nil {
		return nil, err
	}
	return &Scorer{constraints: cons, weights: g.Weights}, nil
}

// Score returns the violation profile and harmony Σ w_j·v_j of form.
func (s *Scorer) Score(form string) Score {
	word := corpus.Split(corpus.Normalize(form))
	sc := Score{Violations: make([]int, len(s.constraints))}
	for j, c := range s.constraints {
		v := c.Violations(word)
		sc.Violations[j] = v
		sc.Harmony += s.weights[j] * float64(v)
	}
	return sc
}

// WriteTestResults writes "form<TAB>v1<TAB>...<TAB>harmony" for each form.
func WriteTestResults(w io.Writer, s *Scorer, forms []string) error {
	bw := bufio.NewWriter(w)
	for _, form := range forms {
		sc := s.Score(form)
		var sb strings.Builder
		sb.WriteString(form)
		for _, v := range sc.Violations {
			sb.WriteByte('\t')
			sb.WriteString(strconv.Itoa(v))
		}
		if _, err := fmt.Fprintf(bw, "%s\t%f\n", sb.String(), sc.Harmony); err != nil {
			return fmt.Errorf("write test results: %w", err)
		}
	}
	return bw.Flush()
}

// #endregion score
