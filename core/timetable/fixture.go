package timetable

import (
	"bytes"
	"io/fs"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type (
	// fixtureDoc is the YAML layout of a seed fixture.
	fixtureDoc struct {
		SelectedGrade string                 `yaml:"selected_grade"`
		LastUpdated   time.Time              `yaml:"last_updated"`
		Days          []Day                  `yaml:"days"`
		TimeSlots     []TimeSlot             `yaml:"time_slots"`
		Breaks        []Break                `yaml:"breaks"`
		Teachers      map[string]TeacherInfo `yaml:"teachers"`
		GradeSizes    map[string]int         `yaml:"grade_sizes"`
		Cells         []fixtureCell          `yaml:"cells"`
	}

	fixtureCell struct {
		Grade     string `yaml:"grade"`
		Day       int    `yaml:"day"` // one-based
		Slot      string `yaml:"slot"`
		Subject   string `yaml:"subject,omitempty"`
		Teacher   string `yaml:"teacher,omitempty"`
		Break     bool   `yaml:"break,omitempty"`
		BreakType string `yaml:"break_type,omitempty"`
		BreakID   string `yaml:"break_id,omitempty"`
	}
)

// LoadFixture reads a seed fixture from fsys.
func LoadFixture(fsys fs.FS, path string) (State, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return State{}, errors.Wrap(err, "reading fixture")
	}
	st, err := ParseFixture(data)
	return st, errors.Wrap(err, path)
}

// ParseFixture decodes a YAML fixture. Unknown fields, malformed cells and duplicate cells are errors.
func ParseFixture(data []byte) (State, error) {
	var doc fixtureDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return State{}, errors.Wrap(err, "decoding fixture")
	}

	st := State{
		Subjects:      make(map[CellKey]CellAssignment, len(doc.Cells)),
		Teachers:      doc.Teachers,
		TimeSlots:     doc.TimeSlots,
		Breaks:        doc.Breaks,
		Days:          doc.Days,
		GradeSizes:    doc.GradeSizes,
		SelectedGrade: doc.SelectedGrade,
		LastUpdated:   doc.LastUpdated.UTC(),
	}
	for i, c := range doc.Cells {
		key := CellKey{Grade: c.Grade, Day: Weekday(c.Day - 1), TimeSlotID: c.Slot}
		if !key.Valid() {
			return State{}, errors.Wrapf(ErrInvalidCellKey, "cell %d (%s)", i, key)
		}
		if _, dup := st.Subjects[key]; dup {
			return State{}, errors.Errorf("cell %d: duplicate cell %s", i, key)
		}
		st.Subjects[key] = CellAssignment{
			Subject:   c.Subject,
			Teacher:   c.Teacher,
			IsBreak:   c.Break,
			BreakType: c.BreakType,
			BreakID:   c.BreakID,
		}
	}
	return st, nil
}

// MarshalFixture renders a state in the fixture layout, cells in canonical order.
func MarshalFixture(st State) ([]byte, error) {
	doc := fixtureDoc{
		SelectedGrade: st.SelectedGrade,
		LastUpdated:   st.LastUpdated,
		Days:          st.Days,
		TimeSlots:     st.TimeSlots,
		Breaks:        st.Breaks,
		Teachers:      st.Teachers,
		GradeSizes:    st.GradeSizes,
		Cells:         make([]fixtureCell, 0, len(st.Subjects)),
	}
	for _, k := range sortedKeys(st.Subjects, slotRanks(st.TimeSlots)) {
		a := st.Subjects[k]
		doc.Cells = append(doc.Cells, fixtureCell{
			Grade:     k.Grade,
			Day:       int(k.Day) + 1,
			Slot:      k.TimeSlotID,
			Subject:   a.Subject,
			Teacher:   a.Teacher,
			Break:     a.IsBreak,
			BreakType: a.BreakType,
			BreakID:   a.BreakID,
		})
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, errors.Wrap(err, "encoding fixture")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "encoding fixture")
	}
	return buf.Bytes(), nil
}
