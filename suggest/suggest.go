// Package suggest builds query suggestions from previously seen search
// terms. A Suggester accumulates a vocabulary; corrections are ranked by
// Levenshtein distance and completions by how often a term was seen.
package suggest

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	lev "github.com/agnivade/levenshtein"
)

const (
	defaultMaxDistance = 2
	minTermLength      = 3
)

// Suggester is a thread-safe vocabulary of search terms
type Suggester struct {
	maxDistance int

	mu    sync.RWMutex
	terms map[string]int
}

// NewSuggester creates a suggester. maxDistance bounds the edit distance for
// corrections; values <= 0 pick a default.
func NewSuggester(maxDistance int) *Suggester {
	if maxDistance <= 0 {
		maxDistance = defaultMaxDistance
	}
	return &Suggester{
		maxDistance: maxDistance,
		terms:       make(map[string]int),
	}
}

// Learn adds terms to the vocabulary. Terms are lowercased; those shorter
// than three characters are ignored.
func (s *Suggester) Learn(terms ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if len(term) < minTermLength {
			continue
		}
		s.terms[term]++
	}
}

// Len returns the vocabulary size
func (s *Suggester) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.terms)
}

type candidate struct {
	term     string
	distance int
	count    int
}

// Suggest returns up to limit corrections for term, nearest first. The term
// itself is never suggested; ties on distance rank by how often the
// candidate was seen.
func (s *Suggester) Suggest(term string, limit int) []string {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" || limit <= 0 {
		return nil
	}

	s.mu.RLock()
	candidates := make([]candidate, 0, len(s.terms))
	for known, count := range s.terms {
		if known == term {
			continue
		}
		distance := lev.ComputeDistance(term, known)
		if distance > s.maxDistance {
			continue
		}
		candidates = append(candidates, candidate{term: known, distance: distance, count: count})
	}
	s.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		if candidates[i].count != candidates[j].count {
			return candidates[i].count > candidates[j].count
		}
		return candidates[i].term < candidates[j].term
	})

	return collectTerms(candidates, limit)
}

// Complete returns up to limit vocabulary terms starting with prefix, most
// frequently seen first
func (s *Suggester) Complete(prefix string, limit int) []string {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" || limit <= 0 {
		return nil
	}

	s.mu.RLock()
	candidates := make([]candidate, 0, 16)
	for known, count := range s.terms {
		if strings.HasPrefix(known, prefix) {
			candidates = append(candidates, candidate{term: known, count: count})
		}
	}
	s.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].count != candidates[j].count {
			return candidates[i].count > candidates[j].count
		}
		return candidates[i].term < candidates[j].term
	})

	return collectTerms(candidates, limit)
}

func collectTerms(candidates []candidate, limit int) []string {
	if len(candidates) == 0 {
		return nil
	}
	if limit > len(candidates) {
		limit = len(candidates)
	}
	out := make([]string, 0, limit)
	for _, c := range candidates[:limit] {
		out = append(out, c.term)
	}
	return out
}

// Tokenize splits free text into lowercase terms, dropping punctuation and
// terms shorter than three characters
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToLower(f)
		if len(f) < minTermLength {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}
