package timetable

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ck(grade string, day Weekday, slot string) CellKey {
	return CellKey{Grade: grade, Day: day, TimeSlotID: slot}
}

func TestMergeBreaks(t *testing.T) {
	lunch := CellAssignment{Subject: "Lunch", IsBreak: true}
	subjects := map[CellKey]CellAssignment{ck("Grade 7", Tuesday, "1"): lunch}

	merged := MergeBreaks(subjects, nil, "Grade 8")
	want := map[CellKey]CellAssignment{
		ck("Grade 7", Tuesday, "1"): lunch,
		ck("Grade 8", Tuesday, "1"): lunch,
	}
	assert.Equal(t, want, merged)
	assert.Len(t, subjects, 1, "input is not modified")
}

func TestMergeBreaks_idempotent(t *testing.T) {
	st := seedState(t)
	for _, grade := range []string{"Grade 7", "Grade 8", "Grade 9", "Grade 12"} {
		once := MergeBreaks(st.Subjects, st.Breaks, grade)
		twice := MergeBreaks(once, st.Breaks, grade)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("MergeBreaks(%q) is not idempotent", grade)
		}
	}
}

func TestMergeBreaks_breakDetection(t *testing.T) {
	breaks := []Break{{ID: "lunch", Name: "Lunch"}, {ID: "short-break", Name: "Short Break"}}

	tests := []struct {
		name   string
		cell   CellAssignment
		merged bool
	}{
		{name: "flag", cell: CellAssignment{Subject: "Assembly", IsBreak: true}, merged: true},
		{name: "catalog id", cell: CellAssignment{Subject: "Food", BreakID: "lunch"}, merged: true},
		{name: "catalog name", cell: CellAssignment{Subject: "Lunch"}, merged: true},
		{name: "catalog name, other case", cell: CellAssignment{Subject: "  SHORT break "}, merged: true},
		{name: "unknown id", cell: CellAssignment{Subject: "Math", BreakID: "recess"}},
		{name: "lesson", cell: CellAssignment{Subject: "Math", Teacher: "Mr. Kibe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged := MergeBreaks(map[CellKey]CellAssignment{ck("Grade 7", Monday, "4"): tt.cell}, breaks, "Grade 8")
			got, ok := merged[ck("Grade 8", Monday, "4")]
			if ok != tt.merged {
				t.Fatalf("merged = %v, want %v", ok, tt.merged)
			}
			if ok && got != tt.cell {
				t.Errorf("merged cell = %+v, want %+v", got, tt.cell)
			}
		})
	}
}

func TestMergeBreaks_greatestGradeWins(t *testing.T) {
	subjects := map[CellKey]CellAssignment{
		ck("Grade 9", Monday, "4"): {Subject: "Games", IsBreak: true},
		ck("Grade 7", Monday, "4"): {Subject: "Short Break", IsBreak: true},
		ck("Grade 8", Monday, "4"): {Subject: "Assembly", IsBreak: true},
	}
	for i := 0; i < 20; i++ {
		merged := MergeBreaks(subjects, nil, "Grade 10")
		assert.Equal(t, "Games", merged[ck("Grade 10", Monday, "4")].Subject)
	}
}

func TestMergeBreaks_ownBreakOverwritesLesson(t *testing.T) {
	subjects := map[CellKey]CellAssignment{
		ck("Grade 7", Monday, "8"): {Subject: "Lunch", IsBreak: true},
		ck("Grade 8", Monday, "8"): {Subject: "Math", Teacher: "Mr. Kibe"},
	}
	merged := MergeBreaks(subjects, nil, "Grade 8")
	assert.Equal(t, "Lunch", merged[ck("Grade 8", Monday, "8")].Subject)
}

func TestMergeBreaks_noGrade(t *testing.T) {
	st := seedState(t)
	merged := MergeBreaks(st.Subjects, st.Breaks, "")
	assert.Equal(t, st.Subjects, merged)
}

func TestFilterGrade(t *testing.T) {
	st := seedState(t)
	assert.Len(t, FilterGrade(st.Subjects, "Grade 7"), 19)
	assert.Len(t, FilterGrade(st.Subjects, "Grade 8"), 5)
	assert.Len(t, FilterGrade(st.Subjects, "Grade 12"), 0)

	merged := FilterGrade(MergeBreaks(st.Subjects, st.Breaks, "Grade 8"), "Grade 8")
	assert.Len(t, merged, 15)
}
