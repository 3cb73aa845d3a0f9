package timetable

import (
	"strings"
	"time"
)

type ViewSource string

const (
	SourceDerived ViewSource = "derived"
	SourcePinned  ViewSource = "pinned"
)

type (
	Period struct {
		Grade      string `json:"grade"`
		Subject    string `json:"subject"`
		TimeSlotID string `json:"timeSlotId"`
		Time       string `json:"time"`
	}

	// TeacherSchedule is one teacher's week. Periods is indexed [day][slot]; a nil period is free.
	TeacherSchedule struct {
		Teacher           string         `json:"teacher"`
		Periods           [][]*Period    `json:"periods"`
		TotalClasses      int            `json:"totalClasses"`
		GradeDistribution map[string]int `json:"gradeDistribution"`
		TotalStudents     int            `json:"totalStudents"`
		ClassesPerDay     []int          `json:"classesPerDay"`
	}

	TeacherTimetable struct {
		Teachers    map[string]TeacherSchedule `json:"teachers"`
		LastUpdated time.Time                  `json:"lastUpdated"`
	}

	// TeacherView is the teacher timetable as served: either derived from the main state
	// or an override pinned by UpdateTeacherTimetable.
	TeacherView struct {
		Source    ViewSource       `json:"source"`
		Timetable TeacherTimetable `json:"timetable"`
	}
)

func newTeacherSchedule(teacher string, days, slots int) TeacherSchedule {
	periods := make([][]*Period, days)
	for d := range periods {
		periods[d] = make([]*Period, slots)
	}
	return TeacherSchedule{
		Teacher:           teacher,
		Periods:           periods,
		GradeDistribution: make(map[string]int),
		ClassesPerDay:     make([]int, days),
	}
}

// ProjectTeachers reshapes the main state into one schedule per teacher. Every catalog teacher
// gets a schedule, even when free all week. Lessons whose day or slot is outside the grid are
// skipped; when a teacher is double booked the first class in canonical order holds the period.
func ProjectTeachers(st State) TeacherTimetable {
	var (
		catalog = newBreakCatalog(st.Breaks)
		ranks   = slotRanks(st.TimeSlots)
		days    = len(st.Days)
		slots   = len(st.TimeSlots)
		out     = TeacherTimetable{
			Teachers:    make(map[string]TeacherSchedule, len(st.Teachers)),
			LastUpdated: st.LastUpdated,
		}
	)

	for name := range st.Teachers {
		out.Teachers[name] = newTeacherSchedule(name, days, slots)
	}

	for _, k := range sortedKeys(st.Subjects, ranks) {
		a := st.Subjects[k]
		teacher := strings.TrimSpace(a.Teacher)
		if teacher == "" || a.IsEmpty() || catalog.isBreak(a) {
			continue
		}
		d := int(k.Day)
		s, ok := ranks[k.TimeSlotID]
		if !ok || d < 0 || d >= days {
			continue
		}

		sched, ok := out.Teachers[teacher]
		if !ok {
			sched = newTeacherSchedule(teacher, days, slots)
		}
		if sched.Periods[d][s] == nil {
			sched.Periods[d][s] = &Period{
				Grade:      k.Grade,
				Subject:    a.Subject,
				TimeSlotID: k.TimeSlotID,
				Time:       st.TimeSlots[s].Time,
			}
		}
		sched.TotalClasses++
		sched.ClassesPerDay[d]++
		sched.GradeDistribution[k.Grade]++
		out.Teachers[teacher] = sched
	}

	for name, sched := range out.Teachers {
		var students int
		for grade := range sched.GradeDistribution {
			students += st.GradeSizes[grade]
		}
		sched.TotalStudents = students
		out.Teachers[name] = sched
	}
	return out
}
