package timetable

import (
	"reflect"
	"testing"
	"testing/fstest"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appfs "github.com/tobias-barakaa/newschool-sub008/fs"
)

// seedState loads the embedded seed fixture.
func seedState(t *testing.T) State {
	t.Helper()
	st, err := LoadFixture(appfs.FS, appfs.FixturePath)
	require.NoError(t, err)
	return st
}

func TestLoadFixture(t *testing.T) {
	st := seedState(t)

	assert.Len(t, st.Subjects, 28)
	assert.Len(t, st.Days, 5)
	assert.Len(t, st.TimeSlots, 8)
	assert.Len(t, st.Breaks, 2)
	assert.Len(t, st.Teachers, 5)
	assert.Equal(t, "Grade 7", st.SelectedGrade)
	assert.Equal(t, time.Date(2024, time.January, 8, 7, 0, 0, 0, time.UTC), st.LastUpdated)
	assert.Equal(t, []string{"Grade 7", "Grade 8", "Grade 9"}, st.Grades())

	assert.Equal(t, CellAssignment{
		Subject: "Lunch", IsBreak: true, BreakType: "lunch", BreakID: "lunch",
	}, st.Subjects[ck("Grade 7", Friday, "8")])
	assert.Equal(t, 2, ConflictCount(DetectConflicts(st.Subjects, st.Breaks)))

	_, err := LoadFixture(appfs.FS, "fixtures/missing.yaml")
	assert.Error(t, err)
}

func TestMarshalFixture(t *testing.T) {
	st := seedState(t)

	data, err := MarshalFixture(st)
	require.NoError(t, err)
	back, err := ParseFixture(data)
	require.NoError(t, err)
	if !reflect.DeepEqual(st, back) {
		t.Errorf("ParseFixture(MarshalFixture()) = %+v, want %+v", back, st)
	}

	again, err := MarshalFixture(back)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again), "output is stable")

	fsys := fstest.MapFS{"tt.yaml": {Data: data}}
	fromFS, err := LoadFixture(fsys, "tt.yaml")
	require.NoError(t, err)
	assert.Len(t, fromFS.Subjects, 28)
}

func TestParseFixture_errors(t *testing.T) {
	tests := []struct {
		name       string
		doc        string
		wantKeyErr bool
	}{
		{name: "not yaml", doc: "cells: ["},
		{name: "unknown field", doc: "selected_grade: Grade 7\nbell: loud\n"},
		{name: "day zero", doc: "cells:\n  - {grade: Grade 7, day: 0, slot: \"1\", subject: Math}\n", wantKeyErr: true},
		{name: "day eight", doc: "cells:\n  - {grade: Grade 7, day: 8, slot: \"1\", subject: Math}\n", wantKeyErr: true},
		{name: "no grade", doc: "cells:\n  - {day: 1, slot: \"1\", subject: Math}\n", wantKeyErr: true},
		{name: "dashed slot", doc: "cells:\n  - {grade: Grade 7, day: 1, slot: \"1-2\", subject: Math}\n", wantKeyErr: true},
		{
			name: "duplicate cell",
			doc: "cells:\n" +
				"  - {grade: Grade 7, day: 1, slot: \"1\", subject: Math}\n" +
				"  - {grade: Grade 7, day: 1, slot: \"1\", subject: Art}\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFixture([]byte(tt.doc))
			if err == nil {
				t.Fatal("ParseFixture() error = nil, want an error")
			}
			if got := errors.Is(err, ErrInvalidCellKey); got != tt.wantKeyErr {
				t.Errorf("errors.Is(err, ErrInvalidCellKey) = %v, want %v (err: %v)", got, tt.wantKeyErr, err)
			}
		})
	}
}

func TestParseFixture_minimal(t *testing.T) {
	st, err := ParseFixture([]byte("cells:\n  - {grade: Grade 7, day: 2, slot: \"3\", subject: Math, teacher: Mr. Kibe}\n"))
	require.NoError(t, err)
	assert.Equal(t, map[CellKey]CellAssignment{
		ck("Grade 7", Tuesday, "3"): {Subject: "Math", Teacher: "Mr. Kibe"},
	}, st.Subjects)
	assert.Nil(t, st.Teachers)
	assert.True(t, st.LastUpdated.IsZero())
}
