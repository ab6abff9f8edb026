package constraint

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// #region slot
// slot matches one position of a boundary-padded word: either a word edge or
// any member of a segment set.
type slot struct {
	boundary bool
	members  map[string]struct{}
}

func (s slot) matches(padded []string, pos int) bool {
	edge := pos == 0 || pos == len(padded)-1
	if s.boundary {
		return edge
	}
	if edge {
		return false
	}
	_, ok := s.members[padded[pos]]
	return ok
}

// #endregion slot

// #region ngram
// Ngram is a compiled contiguous n-gram constraint. The word is matched as
// "# s1 ... sn #"; a leading ^ and a trailing $ in the pattern match the two
// boundary positions.
//
// Matches are counted leftmost first and never overlap: after a match at
// position i of length n, scanning resumes at i+n.
type Ngram struct {
	str   string
	slots []slot
}

func (n *Ngram) String() string { return n.str }

// Violations returns the number of non-overlapping matches in word.
func (n *Ngram) Violations(word []string) int {
	padded := make([]string, 0, len(word)+2)
	padded = append(padded, "")
	padded = append(padded, word...)
	padded = append(padded, "")

	count := 0
	width := len(n.slots)
	for i := 0; i+width <= len(padded); {
		if n.matchAt(padded, i) {
			count++
			i += width
			continue
		}
		i++
	}
	return count
}

func (n *Ngram) matchAt(padded []string, start int) bool {
	for j, s := range n.slots {
		if !s.matches(padded, start+j) {
			return false
		}
	}
	return true
}

// #endregion ngram

// #region parse
// compileNgram turns a pattern such as "^[+cons] a [-voice]$" into slots.
func (r *Registry) compileNgram(conStr, pattern string) (*Ngram, error) {
	var slots []slot
	anchoredEnd := false
	rs := []rune(pattern)

	for i := 0; i < len(rs); {
		c := rs[i]
		switch {
		case unicode.IsSpace(c):
			i++
			continue
		case anchoredEnd:
			return nil, fmt.Errorf("%w: %s: $ must end the pattern", ErrMalformedConstraint, conStr)
		case c == '^':
			if len(slots) > 0 {
				return nil, fmt.Errorf("%w: %s: ^ must start the pattern", ErrMalformedConstraint, conStr)
			}
			slots = append(slots, slot{boundary: true})
			i++
		case c == '$':
			slots = append(slots, slot{boundary: true})
			anchoredEnd = true
			i++
		case c == ']':
			return nil, fmt.Errorf("%w: %s: unbalanced ]", ErrMalformedConstraint, conStr)
		case c == '[':
			end := i + 1
			for end < len(rs) && rs[end] != ']' && rs[end] != '[' {
				end++
			}
			if end >= len(rs) || rs[end] != ']' {
				return nil, fmt.Errorf("%w: %s: unbalanced [", ErrMalformedConstraint, conStr)
			}
			segs, err := r.feats.SegmentsOf(string(rs[i+1 : end]))
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrMalformedConstraint, conStr, err)
			}
			slots = append(slots, newSlot(segs))
			i = end + 1
		default:
			end := i
			for end < len(rs) && !unicode.IsSpace(rs[end]) && !strings.ContainsRune("[]^$", rs[end]) {
				end++
			}
			seg := norm.NFC.String(string(rs[i:end]))
			if !r.feats.HasSegment(seg) {
				return nil, fmt.Errorf("%w: %s: unknown segment %q", ErrMalformedConstraint, conStr, seg)
			}
			slots = append(slots, newSlot([]string{seg}))
			i = end
		}
	}

	if len(slots) == 0 {
		return nil, fmt.Errorf("%w: %s: empty pattern", ErrMalformedConstraint, conStr)
	}
	return &Ngram{str: conStr, slots: slots}, nil
}

func newSlot(segs []string) slot {
	s := slot{members: make(map[string]struct{}, len(segs))}
	for _, seg := range segs {
		s.members[seg] = struct{}{}
	}
	return s
}

// #endregion parse
