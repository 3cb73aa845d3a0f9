package timetable

import (
	"math"
	"strings"
)

// None is reported by the "most busy" statistics of an empty timetable.
const None = "None"

type (
	StatsInput struct {
		Subjects  map[CellKey]CellAssignment
		Breaks    []Break
		TimeSlots []TimeSlot
		Days      []Day
	}

	Stats struct {
		TotalLessons         int            `json:"totalLessons"`
		TotalBreaks          int            `json:"totalBreaks"`
		TeacherWorkload      map[string]int `json:"teacherWorkload"`
		SubjectDistribution  map[string]int `json:"subjectDistribution"`
		BreakDistribution    map[string]int `json:"breakDistribution"`
		DayDistribution      map[string]int `json:"dayDistribution"`
		TimeSlotUsage        map[string]int `json:"timeSlotUsage"`
		DoubleLessons        int            `json:"doubleLessons"`
		MostBusyTeacher      string         `json:"mostBusyTeacher"`
		MostBusyDay          string         `json:"mostBusyDay"`
		MostBusyTime         string         `json:"mostBusyTime"`
		AverageLessonsPerDay float64        `json:"averageLessonsPerDay"`
		CompletionPercentage int            `json:"completionPercentage"`
	}
)

// tally counts occurrences in the order keys were first seen.
type tally struct {
	counts map[string]int
	order  []string
}

func newTally() *tally { return &tally{counts: make(map[string]int)} }

func (t *tally) add(key string) {
	if _, seen := t.counts[key]; !seen {
		t.order = append(t.order, key)
	}
	t.counts[key]++
}

// busiest returns the key with the highest count. Ties go to the key seen first.
func (t *tally) busiest() string {
	top, topN := None, 0
	for _, key := range t.order {
		if n := t.counts[key]; n > topN {
			top, topN = key, n
		}
	}
	return top
}

// ComputeStats summarises the given cells in one pass over them in canonical order.
// Empty cells are skipped. Every other cell is either a break or a lesson.
func ComputeStats(in StatsInput) Stats {
	var (
		catalog  = newBreakCatalog(in.Breaks)
		ranks    = slotRanks(in.TimeSlots)
		teachers = newTally()
		subjects = newTally()
		breaks   = newTally()
		days     = newTally()
		times    = newTally()
		stats    Stats
	)

	for _, k := range sortedKeys(in.Subjects, ranks) {
		a := in.Subjects[k]
		if a.IsEmpty() {
			continue
		}

		if catalog.isBreak(a) {
			stats.TotalBreaks++
			breaks.add(catalog.label(a))
		} else {
			stats.TotalLessons++
			if teacher := strings.TrimSpace(a.Teacher); teacher != "" {
				teachers.add(teacher)
			}
			subjects.add(a.Subject)
			if isDoubleLesson(in, catalog, ranks, k, a) {
				stats.DoubleLessons++
			}
		}

		if d := int(k.Day); d >= 0 && d < len(in.Days) {
			days.add(in.Days[d].Name)
		}
		if r, ok := ranks[k.TimeSlotID]; ok {
			times.add(in.TimeSlots[r].Time)
		}
	}

	stats.TeacherWorkload = teachers.counts
	stats.SubjectDistribution = subjects.counts
	stats.BreakDistribution = breaks.counts
	stats.DayDistribution = days.counts
	stats.TimeSlotUsage = times.counts
	stats.MostBusyTeacher = teachers.busiest()
	stats.MostBusyDay = days.busiest()
	stats.MostBusyTime = times.busiest()

	if len(in.Days) > 0 {
		avg := float64(stats.TotalLessons) / float64(len(in.Days))
		stats.AverageLessonsPerDay = math.Round(avg*10) / 10
	}
	stats.CompletionPercentage = completion(stats.TotalLessons+stats.TotalBreaks, len(in.TimeSlots)*len(in.Days))
	return stats
}

// isDoubleLesson reports whether the next slot of the same grade on the same day holds the
// same subject with the same teacher. The last slot of a day has no successor.
func isDoubleLesson(in StatsInput, catalog breakCatalog, ranks map[string]int, k CellKey, a CellAssignment) bool {
	r, ok := ranks[k.TimeSlotID]
	if !ok || r+1 >= len(in.TimeSlots) {
		return false
	}
	next, ok := in.Subjects[CellKey{Grade: k.Grade, Day: k.Day, TimeSlotID: in.TimeSlots[r+1].ID}]
	if !ok || next.IsEmpty() || catalog.isBreak(next) {
		return false
	}
	return next.Subject == a.Subject && strings.TrimSpace(next.Teacher) == strings.TrimSpace(a.Teacher)
}

func completion(filled, capacity int) int {
	if capacity <= 0 {
		return 0
	}
	pct := int(math.Round(float64(filled) / float64(capacity) * 100))
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}
