package features

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// #region featureset
// FeatureSet relates segments, features and natural classes. It is built once
// from a feature table and is read-only afterwards.
type FeatureSet struct {
	features     []string
	featureIndex map[string]int
	segments     []string
	values       map[string]string
	extensions   map[Spec]map[string]struct{}

	classes    []NaturalClass
	classIndex map[string]int
}

// #endregion featureset

// #region load
// Load reads a feature table from path and enumerates its natural classes.
func Load(path string) (*FeatureSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feature table: %w", err)
	}
	defer f.Close()

	fs, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read feature table %s: %w", path, err)
	}
	return fs, nil
}

// Read parses a feature table. The first non-blank line lists feature names;
// each following line holds a segment and one value per feature, either as a
// single token ("+-0") or as whitespace-separated characters ("+ - 0").
func Read(r io.Reader) (*FeatureSet, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		names  []string
		rows   = map[string]string{}
		lineNo int
	)
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if names == nil {
			names = fields
			continue
		}

		seg := norm.NFC.String(fields[0])
		vals := strings.Join(fields[1:], "")
		for _, c := range vals {
			if c != '+' && c != '-' && c != '0' {
				return nil, &LineError{Line: lineNo, Err: fmt.Errorf("%w: value %q for segment %s", ErrMalformedFeatureTable, c, seg)}
			}
		}
		if len(vals) != len(names) {
			return nil, &LineError{Line: lineNo, Err: fmt.Errorf("%w: segment %s has %d values, header has %d features",
				ErrMalformedFeatureTable, seg, len(vals), len(names))}
		}
		if _, dup := rows[seg]; dup {
			return nil, &LineError{Line: lineNo, Err: fmt.Errorf("%w: duplicate segment %s", ErrMalformedFeatureTable, seg)}
		}
		rows[seg] = vals
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if names == nil {
		return nil, fmt.Errorf("%w: missing header row", ErrMalformedFeatureTable)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no segments", ErrMalformedFeatureTable)
	}
	return New(names, rows)
}

// New builds a FeatureSet from feature names and a segment -> values map and
// enumerates its natural classes.
func New(names []string, rows map[string]string) (*FeatureSet, error) {
	fs := &FeatureSet{
		features:     append([]string(nil), names...),
		featureIndex: make(map[string]int, len(names)),
		values:       make(map[string]string, len(rows)),
		extensions:   make(map[Spec]map[string]struct{}),
		classIndex:   make(map[string]int),
	}
	for i, name := range names {
		if _, dup := fs.featureIndex[name]; dup {
			return nil, fmt.Errorf("%w: duplicate feature %s", ErrMalformedFeatureTable, name)
		}
		fs.featureIndex[name] = i
	}

	for seg, vals := range rows {
		if len(vals) != len(names) {
			return nil, fmt.Errorf("%w: segment %s has %d values, header has %d features",
				ErrMalformedFeatureTable, seg, len(vals), len(names))
		}
		fs.segments = append(fs.segments, seg)
		fs.values[seg] = vals
		for i := 0; i < len(vals); i++ {
			if vals[i] == '0' {
				continue
			}
			key := Spec{Index: i, Polarity: vals[i]}
			if fs.extensions[key] == nil {
				fs.extensions[key] = make(map[string]struct{})
			}
			fs.extensions[key][seg] = struct{}{}
		}
	}
	sort.Strings(fs.segments)

	fs.enumerate()
	return fs, nil
}

// #endregion load

// #region enumerate
// enumerate searches featspecs breadth first. A featspec whose class is empty
// or was already produced by an earlier featspec is pruned; every other
// featspec is stored and extended with one more feature of higher index.
func (fs *FeatureSet) enumerate() {
	fs.addClass(fs.segments, Featspec{})

	var next []Featspec
	for i := range fs.features {
		next = append(next, Featspec{{Index: i, Polarity: '+'}})
	}
	for i := range fs.features {
		next = append(next, Featspec{{Index: i, Polarity: '-'}})
	}

	for len(next) > 0 {
		frontier := next
		next = nil
		for _, spec := range frontier {
			class := fs.Classify(spec)
			if len(class) == 0 {
				continue
			}
			if _, seen := fs.classIndex[classKey(class)]; seen {
				continue
			}
			fs.addClass(class, spec)
			next = append(next, fs.upperTriangle(spec)...)
		}
	}
}

// upperTriangle returns spec extended by every (k,'+') and then every (k,'-')
// with k greater than the last index of spec.
func (fs *FeatureSet) upperTriangle(spec Featspec) []Featspec {
	last := spec[len(spec)-1].Index
	out := make([]Featspec, 0, 2*(len(fs.features)-last-1))
	for _, pol := range []byte{'+', '-'} {
		for k := last + 1; k < len(fs.features); k++ {
			ext := make(Featspec, len(spec), len(spec)+1)
			copy(ext, spec)
			out = append(out, append(ext, Spec{Index: k, Polarity: pol}))
		}
	}
	return out
}

func (fs *FeatureSet) addClass(segs []string, spec Featspec) {
	fs.classIndex[classKey(segs)] = len(fs.classes)
	fs.classes = append(fs.classes, NaturalClass{
		Segments: append([]string(nil), segs...),
		Featspec: spec,
	})
}

func classKey(segs []string) string {
	return strings.Join(segs, "\x00")
}

// #endregion enumerate

// #region classify
// Classify returns the sorted segments that carry every value in spec. The
// result is empty when no segment satisfies all conjuncts.
func (fs *FeatureSet) Classify(spec Featspec) []string {
	out := []string{}
	for _, seg := range fs.segments {
		ok := true
		for _, s := range spec {
			if _, has := fs.extensions[s][seg]; !has {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, seg)
		}
	}
	return out
}

// #endregion classify

// #region strings
// FeatspecString renders spec as comma-joined "<polarity><feature>" items.
func (fs *FeatureSet) FeatspecString(spec Featspec) string {
	parts := make([]string, len(spec))
	for i, s := range spec {
		parts[i] = string(s.Polarity) + fs.features[s.Index]
	}
	return strings.Join(parts, ",")
}

// ParseFeatspec is the inverse of FeatspecString. Items may appear in any
// order; the result is in increasing feature index order.
func (fs *FeatureSet) ParseFeatspec(s string) (Featspec, error) {
	spec := Featspec{}
	if strings.TrimSpace(s) == "" {
		return spec, nil
	}
	seen := make(map[int]bool)
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if len(item) < 2 || (item[0] != '+' && item[0] != '-') {
			return nil, fmt.Errorf("%w: %q", ErrMalformedFeatspec, item)
		}
		idx, ok := fs.featureIndex[item[1:]]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFeature, item[1:])
		}
		if seen[idx] {
			return nil, fmt.Errorf("%w: feature %s given twice", ErrMalformedFeatspec, item[1:])
		}
		seen[idx] = true
		spec = append(spec, Spec{Index: idx, Polarity: item[0]})
	}
	sort.Slice(spec, func(i, j int) bool { return spec[i].Index < spec[j].Index })
	return spec, nil
}

// SegmentsOf resolves a feature descriptor string to its extension.
func (fs *FeatureSet) SegmentsOf(descriptor string) ([]string, error) {
	spec, err := fs.ParseFeatspec(descriptor)
	if err != nil {
		return nil, err
	}
	return fs.Classify(spec), nil
}

// FeatureString returns the descriptor of the enumerated class whose members
// are exactly segs.
func (fs *FeatureSet) FeatureString(segs []string) (string, error) {
	sorted := append([]string(nil), segs...)
	sort.Strings(sorted)
	idx, ok := fs.classIndex[classKey(sorted)]
	if !ok {
		return "", fmt.Errorf("%w: {%s}", ErrUnknownNaturalClass, strings.Join(sorted, " "))
	}
	return fs.FeatspecString(fs.classes[idx].Featspec), nil
}

// #endregion strings

// #region accessors
// Features returns the feature names in declaration order.
func (fs *FeatureSet) Features() []string {
	return append([]string(nil), fs.features...)
}

// Segments returns the segment inventory in lexicographic order.
func (fs *FeatureSet) Segments() []string {
	return append([]string(nil), fs.segments...)
}

// HasSegment reports whether seg is in the inventory.
func (fs *FeatureSet) HasSegment(seg string) bool {
	_, ok := fs.values[seg]
	return ok
}

// Classes returns the natural classes in enumeration order. The first class
// is always the whole inventory with the empty featspec.
func (fs *FeatureSet) Classes() []NaturalClass {
	return append([]NaturalClass(nil), fs.classes...)
}

// ClassesOf returns every natural class containing seg.
func (fs *FeatureSet) ClassesOf(seg string) []NaturalClass {
	var out []NaturalClass
	for _, c := range fs.classes {
		i := sort.SearchStrings(c.Segments, seg)
		if i < len(c.Segments) && c.Segments[i] == seg {
			out = append(out, c)
		}
	}
	return out
}

// #endregion accessors

// #region save
// SaveClasses writes one class per line: descriptor, a tab, then the
// space-separated segments.
func (fs *FeatureSet) SaveClasses(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, c := range fs.classes {
		if _, err := fmt.Fprintf(bw, "%s\t%s\n", fs.FeatspecString(c.Featspec), strings.Join(c.Segments, " ")); err != nil {
			return fmt.Errorf("write class: %w", err)
		}
	}
	return bw.Flush()
}

// #endregion save
