// Package classify maps token names and symbols onto thematic trend groups.
package classify

import (
	"strings"

	"trend-scout/internal/domain"
)

// Theme is a keyword set bound to a group.
type Theme struct {
	GroupID        string   `yaml:"group"`
	Keywords       []string `yaml:"keywords"`        // matched against the lowercased name
	SymbolKeywords []string `yaml:"symbol_keywords"` // matched against the lowercased symbol
}

// DefaultThemes returns the built-in keyword lists.
func DefaultThemes() []Theme {
	return []Theme{
		{GroupID: domain.GroupClawMeta, Keywords: []string{"crab", "lobster", "claw", "shrimp", "sea", "ocean", "fish", "whale", "shark", "coral", "beach", "shell"}},
		{GroupID: domain.GroupAIMeta, Keywords: []string{"bot", "ai", "gpt", "agent", "brain", "neural", "compute", "data", "algo", "robot"}, SymbolKeywords: []string{"ai"}},
		{GroupID: domain.GroupPolitiFi, Keywords: []string{"trump", "boden", "maga", "usa", "biden", "kamala", "obama", "putin", "politics", "vote", "republic", "democrat"}},
		{GroupID: domain.GroupCats, Keywords: []string{"cat", "mew", "kitty", "kitten", "meow", "purr", "feline", "neko", "gato"}},
		{GroupID: domain.GroupDogMeta, Keywords: []string{"dog", "pup", "shib", "inu", "bark", "woof", "canine", "bonk", "floki", "doge"}},
		{GroupID: domain.GroupFrogMeta, Keywords: []string{"pepe", "frog", "toad", "apu", "croak", "pond", "amphibian", "kek"}},
		{GroupID: domain.GroupGaming, Keywords: []string{"game", "play", "bit", "pixel", "retro", "arcade", "win", "bet", "casino", "quest", "level", "npc"}},
		{GroupID: domain.GroupFood, Keywords: []string{"food", "eat", "drink", "beer", "pizza", "burger", "taco", "coffee", "tea", "snack", "cake", "sweet", "fruit"}},
	}
}

// Classifier assigns group ids by case-insensitive substring matching.
type Classifier struct {
	themes []Theme
}

// New creates a Classifier. Keywords are normalized to lowercase once.
// A nil or empty themes slice uses DefaultThemes.
func New(themes []Theme) *Classifier {
	if len(themes) == 0 {
		themes = DefaultThemes()
	}
	normalized := make([]Theme, 0, len(themes))
	for _, th := range themes {
		if th.GroupID == "" || th.GroupID == domain.GroupRecent {
			continue
		}
		normalized = append(normalized, Theme{
			GroupID:        th.GroupID,
			Keywords:       lowerAll(th.Keywords),
			SymbolKeywords: lowerAll(th.SymbolKeywords),
		})
	}
	return &Classifier{themes: normalized}
}

// Classify returns the catch-all group followed by every matching theme, in theme order.
func (c *Classifier) Classify(name, symbol string) []string {
	name = strings.ToLower(name)
	symbol = strings.ToLower(symbol)

	ids := []string{domain.GroupRecent}
	for _, th := range c.themes {
		if containsAny(name, th.Keywords) || containsAny(symbol, th.SymbolKeywords) {
			ids = append(ids, th.GroupID)
		}
	}
	return ids
}

func containsAny(text string, keywords []string) bool {
	if text == "" {
		return false
	}
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
