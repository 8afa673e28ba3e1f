// Package groups holds the thematic token groups shown on the dashboard.
package groups

import (
	"sort"
	"strings"

	"trend-scout/internal/domain"
)

// MaxTokensPerGroup bounds each group's token list; the oldest entries drop off.
const MaxTokensPerGroup = 25

// Store is the ordered collection of trend groups.
//
// Every mutation builds new group values and a new slice, so a slice returned by
// Groups is never modified afterwards and may be shared with readers.
// Store itself is not safe for concurrent mutation; the session owns it.
type Store struct {
	groups []domain.TrendGroup
}

// NewStore creates a store seeded with the given groups, sorted by score.
func NewStore(seed []domain.TrendGroup) *Store {
	gs := make([]domain.TrendGroup, len(seed))
	for i, g := range seed {
		g.Tokens = append([]domain.Token(nil), g.Tokens...)
		gs[i] = g
	}
	sortByScore(gs)
	return &Store{groups: gs}
}

// Groups returns the current snapshot, highest score first.
func (s *Store) Groups() []domain.TrendGroup {
	return s.groups
}

// Find returns the first copy of token id found in any group.
func (s *Store) Find(id string) (domain.Token, bool) {
	for _, g := range s.groups {
		for _, t := range g.Tokens {
			if t.ID == id {
				return t, true
			}
		}
	}
	return domain.Token{}, false
}

// Contains reports whether token id is present in any group.
func (s *Store) Contains(id string) bool {
	_, ok := s.Find(id)
	return ok
}

// AddToken prepends the token to each named group that does not already hold it.
// Each receiving group except the catch-all gets its score bumped by one.
// Returns false when no group changed.
func (s *Store) AddToken(token domain.Token, groupIDs []string) bool {
	want := make(map[string]bool, len(groupIDs))
	for _, id := range groupIDs {
		want[id] = true
	}

	changed := false
	next := make([]domain.TrendGroup, len(s.groups))
	for i, g := range s.groups {
		next[i] = g
		if !want[g.ID] || hasToken(g.Tokens, token.ID) {
			continue
		}

		n := len(g.Tokens) + 1
		if n > MaxTokensPerGroup {
			n = MaxTokensPerGroup
		}
		tokens := make([]domain.Token, 0, n)
		tokens = append(tokens, token)
		tokens = append(tokens, g.Tokens[:n-1]...)

		g.Tokens = tokens
		if g.ID != domain.GroupRecent {
			g.TrendScore++
		}
		next[i] = g
		changed = true
	}

	if !changed {
		return false
	}
	sortByScore(next)
	s.groups = next
	return true
}

// ApplyUpdates applies consolidated trade deltas to every copy of each affected token.
// When no token matches, the snapshot is left untouched and false is returned.
func (s *Store) ApplyUpdates(deltas map[string]domain.TradeDelta, solPrice float64) bool {
	if len(deltas) == 0 {
		return false
	}
	return s.rewrite(func(t domain.Token) (domain.Token, bool) {
		d, ok := deltas[t.ID]
		if !ok {
			return t, false
		}
		return t.ApplyTrade(d, solPrice), true
	})
}

// Patch replaces every copy of token id with fn's result.
func (s *Store) Patch(id string, fn func(domain.Token) domain.Token) bool {
	return s.rewrite(func(t domain.Token) (domain.Token, bool) {
		if t.ID != id {
			return t, false
		}
		return fn(t), true
	})
}

func (s *Store) rewrite(fn func(domain.Token) (domain.Token, bool)) bool {
	var next []domain.TrendGroup
	for i, g := range s.groups {
		var tokens []domain.Token
		for j, t := range g.Tokens {
			nt, ok := fn(t)
			if !ok {
				continue
			}
			if tokens == nil {
				tokens = append([]domain.Token(nil), g.Tokens...)
			}
			tokens[j] = nt
		}
		if tokens == nil {
			continue
		}
		if next == nil {
			next = append([]domain.TrendGroup(nil), s.groups...)
		}
		g.Tokens = tokens
		next[i] = g
	}
	if next == nil {
		return false
	}
	s.groups = next
	return true
}

// Search filters the snapshot by a case-insensitive substring of name, symbol or id.
// Groups without tokens are never returned; with a non-empty term, groups without
// matches are hidden as well.
func (s *Store) Search(term string) []domain.TrendGroup {
	return Filter(s.groups, term)
}

// Filter applies Search semantics to an arbitrary snapshot.
func Filter(groups []domain.TrendGroup, term string) []domain.TrendGroup {
	term = strings.ToLower(strings.TrimSpace(term))

	out := make([]domain.TrendGroup, 0, len(groups))
	for _, g := range groups {
		if len(g.Tokens) == 0 {
			continue
		}
		if term == "" {
			out = append(out, g)
			continue
		}
		var matched []domain.Token
		for _, t := range g.Tokens {
			if matches(t, term) {
				matched = append(matched, t)
			}
		}
		if len(matched) == 0 {
			continue
		}
		g.Tokens = matched
		out = append(out, g)
	}
	return out
}

func matches(t domain.Token, term string) bool {
	return strings.Contains(strings.ToLower(t.Name), term) ||
		strings.Contains(strings.ToLower(t.Symbol), term) ||
		strings.Contains(strings.ToLower(t.ID), term)
}

func hasToken(tokens []domain.Token, id string) bool {
	for _, t := range tokens {
		if t.ID == id {
			return true
		}
	}
	return false
}

func sortByScore(gs []domain.TrendGroup) {
	sort.SliceStable(gs, func(i, j int) bool {
		return gs[i].TrendScore > gs[j].TrendScore
	})
}
