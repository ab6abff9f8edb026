package constraint

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/danielpatrickdp/phoment/internal/features"
)

// #region registry
// Registry turns constraint strings into Constraints against one FeatureSet.
type Registry struct {
	feats  *features.FeatureSet
	logger *log.Logger
}

// NewRegistry creates a registry. A nil logger falls back to log.Default().
func NewRegistry(feats *features.FeatureSet, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{feats: feats, logger: logger}
}

// Interpret compiles a "<family>:<pattern>" string. Strings of an unknown
// family yield a constraint that is never violated, with a warning.
func (r *Registry) Interpret(conStr string) (Constraint, error) {
	family, pattern, ok := strings.Cut(conStr, ":")
	if !ok {
		return nil, fmt.Errorf("%w: %q has no family", ErrMalformedConstraint, conStr)
	}
	switch family {
	case FamilyNgram:
		return r.compileNgram(conStr, pattern)
	default:
		r.logger.Printf("WARNING: registry cannot interpret %s; returning constant function (0)", conStr)
		return zero{str: conStr}, nil
	}
}

// InterpretAll compiles every string, stopping at the first error.
func (r *Registry) InterpretAll(conStrs []string) ([]Constraint, error) {
	out := make([]Constraint, len(conStrs))
	for i, s := range conStrs {
		c, err := r.Interpret(s)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// #endregion registry

// #region enumerate
// Enumerate builds candidate n-gram constraints from the natural classes of fs
// that are described with at most maxFeatures feature values (maxFeatures <= 0
// means no limit): every class as a unigram, word-initially and word-finally,
// then every ordered pair of classes as a bigram in the same three positions.
func Enumerate(fs *features.FeatureSet, maxFeatures int) []string {
	var descs []string
	for _, c := range fs.Classes() {
		if maxFeatures > 0 && len(c.Featspec) > maxFeatures {
			continue
		}
		descs = append(descs, fs.FeatspecString(c.Featspec))
	}

	seen := make(map[string]bool)
	var out []string
	add := func(pattern string, args ...interface{}) {
		s := FamilyNgram + ":" + fmt.Sprintf(pattern, args...)
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	add("[]")
	for _, d := range descs {
		add("[%s]", d)
		add("^[%s]", d)
		add("[%s]$", d)
	}
	for _, l := range descs {
		for _, r := range descs {
			add("[%s] [%s]", l, r)
			add("^[%s] [%s]", l, r)
			add("[%s] [%s]$", l, r)
		}
	}
	return out
}

// #endregion enumerate

// #region list-io
// ReadList reads one constraint string per line, keeping the first
// tab-separated field and skipping blank lines.
func ReadList(r io.Reader) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		field, _, _ := strings.Cut(line, "\t")
		out = append(out, field)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read constraint list: %w", err)
	}
	return out, nil
}

// WriteList writes one constraint string per line.
func WriteList(w io.Writer, conStrs []string) error {
	bw := bufio.NewWriter(w)
	for _, s := range conStrs {
		if _, err := fmt.Fprintln(bw, s); err != nil {
			return fmt.Errorf("write constraint list: %w", err)
		}
	}
	return bw.Flush()
}

// #endregion list-io
