package timetable

import "strings"

type (
	ConflictingClass struct {
		Grade   string  `json:"grade"`
		CellKey CellKey `json:"cellKey"`
		Subject string  `json:"subject"`
	}

	// Conflict is attached to a cell whose teacher is booked elsewhere at the same day and slot.
	Conflict struct {
		Teacher            string             `json:"teacher"`
		ConflictingClasses []ConflictingClass `json:"conflictingClasses"`
	}
)

type scheduleKey struct {
	teacher string
	day     Weekday
	slot    string
}

// DetectConflicts marks every lesson whose teacher teaches another class at the same day and
// slot. Break cells and cells without a teacher are ignored. Cells absent from the result
// have no conflict.
func DetectConflicts(subjects map[CellKey]CellAssignment, breaks []Break) map[CellKey]Conflict {
	catalog := newBreakCatalog(breaks)

	index := make(map[scheduleKey][]ConflictingClass)
	for _, k := range sortedKeys(subjects, nil) {
		a := subjects[k]
		teacher := strings.TrimSpace(a.Teacher)
		if teacher == "" || catalog.isBreak(a) {
			continue
		}
		sk := scheduleKey{teacher: teacher, day: k.Day, slot: k.TimeSlotID}
		index[sk] = append(index[sk], ConflictingClass{Grade: k.Grade, CellKey: k, Subject: a.Subject})
	}

	conflicts := make(map[CellKey]Conflict)
	for sk, classes := range index {
		if len(classes) < 2 {
			continue
		}
		for i, self := range classes {
			others := make([]ConflictingClass, 0, len(classes)-1)
			others = append(others, classes[:i]...)
			others = append(others, classes[i+1:]...)
			conflicts[self.CellKey] = Conflict{Teacher: sk.teacher, ConflictingClasses: others}
		}
	}
	return conflicts
}

// ConflictCount is the number of conflicting cells.
func ConflictCount(conflicts map[CellKey]Conflict) int { return len(conflicts) }

// TeacherConflictCount is the number of conflicting cells taught by teacher.
func TeacherConflictCount(conflicts map[CellKey]Conflict, teacher string) int {
	teacher = strings.TrimSpace(teacher)
	var n int
	for _, c := range conflicts {
		if c.Teacher == teacher {
			n++
		}
	}
	return n
}

// SortedConflictKeys lists the conflicting cells in canonical order.
func SortedConflictKeys(conflicts map[CellKey]Conflict) []CellKey {
	return sortedKeys(conflicts, nil)
}
