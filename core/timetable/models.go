package timetable

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Weekday is a zero-based school day index: Monday is 0.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func (d Weekday) Valid() bool { return d >= Monday && d <= Sunday }

func (d Weekday) String() string {
	if !d.Valid() {
		return "Weekday(" + strconv.Itoa(int(d)) + ")"
	}
	return weekdayNames[d]
}

var ErrInvalidCellKey = errors.New("invalid cell key")

// CellKey addresses one grid cell. Its text form is "<grade>-<day>-<slot>" with a one-based day.
type CellKey struct {
	Grade      string
	Day        Weekday
	TimeSlotID string
}

func (k CellKey) Valid() bool {
	return strings.TrimSpace(k.Grade) != "" &&
		k.Day.Valid() &&
		k.TimeSlotID != "" &&
		!strings.Contains(k.TimeSlotID, "-")
}

func (k CellKey) String() string {
	return k.Grade + "-" + strconv.Itoa(int(k.Day)+1) + "-" + k.TimeSlotID
}

func (k CellKey) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, errors.Wrapf(ErrInvalidCellKey, "%+v", k)
	}
	return []byte(k.String()), nil
}

func (k *CellKey) UnmarshalText(text []byte) error {
	key, err := ParseCellKey(string(text))
	if err != nil {
		return err
	}
	*k = key
	return nil
}

// ParseCellKey parses the "<grade>-<day>-<slot>" form. Grades may contain dashes; slots may not.
func ParseCellKey(s string) (CellKey, error) {
	slotIdx := strings.LastIndex(s, "-")
	if slotIdx <= 0 {
		return CellKey{}, errors.Wrapf(ErrInvalidCellKey, "%q", s)
	}
	dayIdx := strings.LastIndex(s[:slotIdx], "-")
	if dayIdx <= 0 {
		return CellKey{}, errors.Wrapf(ErrInvalidCellKey, "%q", s)
	}
	dayText := s[dayIdx+1 : slotIdx]
	day, err := strconv.Atoi(dayText)
	if err != nil || !isPlainNumber(dayText) {
		return CellKey{}, errors.Wrapf(ErrInvalidCellKey, "%q: malformed day", s)
	}
	key := CellKey{
		Grade:      s[:dayIdx],
		Day:        Weekday(day - 1),
		TimeSlotID: s[slotIdx+1:],
	}
	if !key.Valid() {
		return CellKey{}, errors.Wrapf(ErrInvalidCellKey, "%q", s)
	}
	return key, nil
}

// isPlainNumber rejects signs and leading zeros so parsed keys print back the same.
func isPlainNumber(s string) bool {
	if s == "" || (s[0] == '0' && len(s) > 1) {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// CellAssignment is the content of one grid cell: a lesson or a break.
type CellAssignment struct {
	Subject   string `json:"subject"`
	Teacher   string `json:"teacher"`
	IsBreak   bool   `json:"isBreak"`
	BreakType string `json:"breakType,omitempty"`
	BreakID   string `json:"breakId,omitempty"`
}

func (a CellAssignment) IsEmpty() bool {
	return a.Subject == "" && !a.IsBreak && a.BreakID == ""
}

type (
	TeacherInfo struct {
		Subjects []string `json:"subjects" yaml:"subjects"`
		Color    string   `json:"color" yaml:"color"`
	}

	TimeSlot struct {
		ID    string `json:"id" yaml:"id"`
		Time  string `json:"time" yaml:"time"`
		Color string `json:"color" yaml:"color"`
	}

	Break struct {
		ID    string `json:"id" yaml:"id"`
		Name  string `json:"name" yaml:"name"`
		Type  string `json:"type" yaml:"type"`
		Color string `json:"color" yaml:"color"`
		Icon  string `json:"icon" yaml:"icon"`
	}

	Day struct {
		Name  string `json:"name" yaml:"name"`
		Color string `json:"color" yaml:"color"`
	}
)

// State is the canonical timetable. Everything else in this package is derived from it.
type State struct {
	Subjects      map[CellKey]CellAssignment `json:"subjects"`
	Teachers      map[string]TeacherInfo     `json:"teachers"`
	TimeSlots     []TimeSlot                 `json:"timeSlots"`
	Breaks        []Break                    `json:"breaks"`
	Days          []Day                      `json:"days"`
	GradeSizes    map[string]int             `json:"gradeSizes"`
	SelectedGrade string                     `json:"selectedGrade"`
	LastUpdated   time.Time                  `json:"lastUpdated"`
}

// Clone deep copies the state, keeping nil collections nil.
func (st State) Clone() State {
	c := st
	if st.Subjects != nil {
		c.Subjects = make(map[CellKey]CellAssignment, len(st.Subjects))
		for k, v := range st.Subjects {
			c.Subjects[k] = v
		}
	}
	if st.Teachers != nil {
		c.Teachers = make(map[string]TeacherInfo, len(st.Teachers))
		for name, info := range st.Teachers {
			if info.Subjects != nil {
				info.Subjects = append([]string(nil), info.Subjects...)
			}
			c.Teachers[name] = info
		}
	}
	if st.TimeSlots != nil {
		c.TimeSlots = append([]TimeSlot(nil), st.TimeSlots...)
	}
	if st.Breaks != nil {
		c.Breaks = append([]Break(nil), st.Breaks...)
	}
	if st.Days != nil {
		c.Days = append([]Day(nil), st.Days...)
	}
	if st.GradeSizes != nil {
		c.GradeSizes = make(map[string]int, len(st.GradeSizes))
		for g, n := range st.GradeSizes {
			c.GradeSizes[g] = n
		}
	}
	return c
}

// Grades lists every grade known from GradeSizes or used by a cell, sorted.
func (st State) Grades() []string {
	seen := make(map[string]struct{}, len(st.GradeSizes))
	for g := range st.GradeSizes {
		seen[g] = struct{}{}
	}
	for k := range st.Subjects {
		seen[k.Grade] = struct{}{}
	}
	grades := make([]string, 0, len(seen))
	for g := range seen {
		grades = append(grades, g)
	}
	sort.Strings(grades)
	return grades
}

// Patch holds a partial update of the State. Nil fields are left untouched;
// non-nil fields replace the current value wholesale.
type Patch struct {
	Subjects      map[CellKey]CellAssignment
	Teachers      map[string]TeacherInfo
	TimeSlots     []TimeSlot
	Breaks        []Break
	Days          []Day
	GradeSizes    map[string]int
	SelectedGrade *string
}

func (p Patch) IsEmpty() bool {
	return p.Subjects == nil && p.Teachers == nil && p.TimeSlots == nil && p.Breaks == nil &&
		p.Days == nil && p.GradeSizes == nil && p.SelectedGrade == nil
}

func (p Patch) apply(st *State) {
	// clone through a State so the caller keeps ownership of the patch
	src := State{
		Subjects:   p.Subjects,
		Teachers:   p.Teachers,
		TimeSlots:  p.TimeSlots,
		Breaks:     p.Breaks,
		Days:       p.Days,
		GradeSizes: p.GradeSizes,
	}.Clone()

	if p.Subjects != nil {
		st.Subjects = src.Subjects
	}
	if p.Teachers != nil {
		st.Teachers = src.Teachers
	}
	if p.TimeSlots != nil {
		st.TimeSlots = src.TimeSlots
	}
	if p.Breaks != nil {
		st.Breaks = src.Breaks
	}
	if p.Days != nil {
		st.Days = src.Days
	}
	if p.GradeSizes != nil {
		st.GradeSizes = src.GradeSizes
	}
	if p.SelectedGrade != nil {
		st.SelectedGrade = *p.SelectedGrade
	}
}
