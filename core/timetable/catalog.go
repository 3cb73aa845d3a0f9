package timetable

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// breakCatalog answers "is this cell a break" for a list of catalog breaks.
type breakCatalog struct {
	byID  map[string]Break
	names map[string]struct{} // case folded
}

func newBreakCatalog(breaks []Break) breakCatalog {
	c := breakCatalog{
		byID:  make(map[string]Break, len(breaks)),
		names: make(map[string]struct{}, len(breaks)),
	}
	for _, b := range breaks {
		if b.ID != "" {
			c.byID[b.ID] = b
		}
		if name := foldName(b.Name); name != "" {
			c.names[name] = struct{}{}
		}
	}
	return c
}

// foldName normalises a break or subject name for case-insensitive comparison.
func foldName(s string) string {
	// a Caser keeps state, so it is not shared between goroutines
	return cases.Fold().String(strings.TrimSpace(s))
}

func (c breakCatalog) isBreak(a CellAssignment) bool {
	if a.IsBreak {
		return true
	}
	if _, ok := c.byID[a.BreakID]; ok && a.BreakID != "" {
		return true
	}
	_, ok := c.names[foldName(a.Subject)]
	return ok && a.Subject != ""
}

// label is the display name of a cell. Breaks referenced by id take the catalog name.
func (c breakCatalog) label(a CellAssignment) string {
	if b, ok := c.byID[a.BreakID]; ok && a.BreakID != "" && b.Name != "" {
		return b.Name
	}
	return a.Subject
}

// slotRanks maps a time slot id to its position in the day.
func slotRanks(slots []TimeSlot) map[string]int {
	ranks := make(map[string]int, len(slots))
	for i, s := range slots {
		if _, dup := ranks[s.ID]; !dup {
			ranks[s.ID] = i
		}
	}
	return ranks
}

// sortedKeys returns the keys of m in canonical order: grade, day, then slot position.
// Slots missing from ranks sort after the known ones, by id.
func sortedKeys[V any](m map[CellKey]V, ranks map[string]int) []CellKey {
	keys := make([]CellKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Grade != b.Grade {
			return a.Grade < b.Grade
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		ra, okA := ranks[a.TimeSlotID]
		rb, okB := ranks[b.TimeSlotID]
		switch {
		case okA && okB && ra != rb:
			return ra < rb
		case okA != okB:
			return okA
		}
		return a.TimeSlotID < b.TimeSlotID
	})
	return keys
}
