package corpus

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// #region forms
// Split returns the segments of a space-delimited form.
func Split(form string) []string {
	return strings.Fields(form)
}

// Normalize returns form in NFC with segments joined by single spaces.
func Normalize(form string) string {
	return strings.Join(strings.Fields(norm.NFC.String(form)), " ")
}

// #endregion forms

// #region read
// ReadTrainingCounts reads "form<TAB>count" lines; a missing count means 1.
// Entries are returned sorted by form.
func ReadTrainingCounts(r io.Reader) ([]Entry, error) {
	seen := make(map[string]bool)
	var out []Entry
	err := scanRows(r, func(lineNo int, form, count string, hasCount bool) error {
		ct := 1
		if hasCount {
			n, err := strconv.Atoi(count)
			if err != nil || n < 1 {
				return fmt.Errorf("%w: line %d: bad count %q", ErrMalformedWordFile, lineNo, count)
			}
			ct = n
		}
		if seen[form] {
			return fmt.Errorf("%w: line %d: duplicate form %q", ErrMalformedWordFile, lineNo, form)
		}
		seen[form] = true
		out = append(out, Entry{Form: form, Count: ct})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Form < out[j].Form })
	return out, nil
}

// ReadAllForms reads a training+contrast file whose rows carry explicit
// counts. Positive-count rows must precede zero-count rows.
func ReadAllForms(r io.Reader) (*Lexicon, error) {
	lex := &Lexicon{}
	seen := make(map[string]bool)
	err := scanRows(r, func(lineNo int, form, count string, hasCount bool) error {
		if !hasCount {
			return fmt.Errorf("%w: line %d: missing count", ErrMalformedWordFile, lineNo)
		}
		n, err := strconv.Atoi(count)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: line %d: bad count %q", ErrMalformedWordFile, lineNo, count)
		}
		if n > 0 && lex.NTraining != len(lex.Forms) {
			return fmt.Errorf("%w: line %d: training form %q after contrast forms", ErrMalformedWordFile, lineNo, form)
		}
		if seen[form] {
			return fmt.Errorf("%w: line %d: duplicate form %q", ErrMalformedWordFile, lineNo, form)
		}
		seen[form] = true
		lex.Forms = append(lex.Forms, form)
		lex.Counts = append(lex.Counts, n)
		if n > 0 {
			lex.NTraining++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lex, nil
}

// ReadForms reads the first field of every non-blank line, e.g. a test file.
func ReadForms(r io.Reader) ([]string, error) {
	var out []string
	err := scanRows(r, func(_ int, form, _ string, _ bool) error {
		out = append(out, form)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func scanRows(r io.Reader, fn func(lineNo int, form, count string, hasCount bool) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		form := Normalize(parts[0])
		count := ""
		if len(parts) > 1 {
			count = strings.TrimSpace(parts[1])
		}
		if err := fn(lineNo, form, count, count != ""); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan word file: %w", err)
	}
	return nil
}

// #endregion read

// #region write
// WriteAllForms writes "form<TAB>count" for every row in order.
func WriteAllForms(w io.Writer, lex *Lexicon) error {
	bw := bufio.NewWriter(w)
	for i, f := range lex.Forms {
		if _, err := fmt.Fprintf(bw, "%s\t%d\n", f, lex.Counts[i]); err != nil {
			return fmt.Errorf("write forms: %w", err)
		}
	}
	return bw.Flush()
}

// #endregion write

// #region contrast
const boundary = "#"

// Neighbors returns the sorted deletion, substitution and insertion
// neighbours of the training forms, minus the empty form and minus every
// neighbour whose boundary-padded trigrams all occur in training.
func Neighbors(train []Entry, segments []string) []string {
	trigrams := make(map[string]bool)
	neighbors := make(map[string][]string)

	for _, e := range train {
		parsed := Split(e.Form)
		for _, tri := range blocks(parsed, 3) {
			trigrams[tri] = true
		}
		for i := range parsed {
			del := splice(parsed[:i], nil, parsed[i+1:])
			neighbors[strings.Join(del, " ")] = del
			for _, seg := range segments {
				sub := splice(parsed[:i], []string{seg}, parsed[i+1:])
				neighbors[strings.Join(sub, " ")] = sub
				ins := splice(parsed[:i], []string{seg}, parsed[i:])
				neighbors[strings.Join(ins, " ")] = ins
			}
		}
	}
	delete(neighbors, "")

	var out []string
	for form, segs := range neighbors {
		allSeen := true
		for _, tri := range blocks(segs, 3) {
			if !trigrams[tri] {
				allSeen = false
				break
			}
		}
		if !allSeen {
			out = append(out, form)
		}
	}
	sort.Strings(out)
	return out
}

// BuildLexicon orders the training forms lexicographically and appends a
// random sample of their unattested neighbours as contrast forms.
func BuildLexicon(train []Entry, segments []string, opts ContrastOptions) *Lexicon {
	sorted := append([]Entry(nil), train...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Form < sorted[j].Form })

	lex := &Lexicon{NTraining: len(sorted)}
	attested := make(map[string]bool, len(sorted))
	for _, e := range sorted {
		lex.Forms = append(lex.Forms, e.Form)
		lex.Counts = append(lex.Counts, e.Count)
		attested[e.Form] = true
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	for _, nb := range Neighbors(sorted, segments) {
		if rng.Float64() < opts.Keep && !attested[nb] {
			lex.Forms = append(lex.Forms, nb)
			lex.Counts = append(lex.Counts, 0)
		}
	}
	return lex
}

func blocks(parsed []string, n int) []string {
	whole := make([]string, 0, len(parsed)+2)
	whole = append(whole, boundary)
	whole = append(whole, parsed...)
	whole = append(whole, boundary)

	var out []string
	for i := 0; i+n <= len(whole); i++ {
		out = append(out, strings.Join(whole[i:i+n], "\x00"))
	}
	return out
}

func splice(head, mid, tail []string) []string {
	out := make([]string, 0, len(head)+len(mid)+len(tail))
	out = append(out, head...)
	out = append(out, mid...)
	return append(out, tail...)
}

// #endregion contrast
