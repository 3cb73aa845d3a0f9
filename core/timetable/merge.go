package timetable

// MergeBreaks copies subjects and replicates every break cell, whatever its grade, under the
// same day and slot of grade. Cells are visited in canonical order, so when grades record
// different breaks at one day and slot, the greatest grade wins. An empty grade returns a copy.
func MergeBreaks(subjects map[CellKey]CellAssignment, breaks []Break, grade string) map[CellKey]CellAssignment {
	merged := make(map[CellKey]CellAssignment, len(subjects))
	for k, v := range subjects {
		merged[k] = v
	}
	if grade == "" {
		return merged
	}

	catalog := newBreakCatalog(breaks)
	for _, k := range sortedKeys(subjects, nil) {
		a := subjects[k]
		if !catalog.isBreak(a) {
			continue
		}
		merged[CellKey{Grade: grade, Day: k.Day, TimeSlotID: k.TimeSlotID}] = a
	}
	return merged
}

// FilterGrade returns the cells of one grade.
func FilterGrade(subjects map[CellKey]CellAssignment, grade string) map[CellKey]CellAssignment {
	filtered := make(map[CellKey]CellAssignment)
	for k, v := range subjects {
		if k.Grade == grade {
			filtered[k] = v
		}
	}
	return filtered
}
