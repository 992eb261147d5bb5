// Package selectors implements the pure matching layer shared by the effect
// tracker and the timer manager: id/name selectors and entity relationship
// filters.
package selectors

import "strings"

// Selector matches by exact numeric id OR case-insensitive exact name.
// An empty selector matches nothing.
type Selector struct {
	IDs   []int64  `yaml:"ids"`
	Names []string `yaml:"names"`
}

// Ability, effect and entity selectors share the same matching rules; the
// distinct names keep definition records self-describing.
type (
	AbilitySelector = Selector
	EffectSelector  = Selector
	EntitySelector  = Selector
)

// IsEmpty reports whether the selector has no ids and no names.
func (s Selector) IsEmpty() bool {
	return len(s.IDs) == 0 && len(s.Names) == 0
}

// Matches reports whether the id or name matches the selector.
func (s Selector) Matches(id int64, name string) bool {
	for _, want := range s.IDs {
		if want == id {
			return true
		}
	}
	for _, want := range s.Names {
		if strings.EqualFold(want, name) {
			return true
		}
	}
	return false
}
