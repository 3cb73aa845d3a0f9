package echoapi

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tobias-barakaa/newschool-sub008/core"
	"github.com/tobias-barakaa/newschool-sub008/core/timetable"
)

type (
	CellRequest struct {
		Subject   string `json:"subject" validate:"required_without_all=IsBreak BreakID,max=100"`
		Teacher   string `json:"teacher" validate:"max=100"`
		IsBreak   bool   `json:"isBreak"`
		BreakType string `json:"breakType"`
		BreakID   string `json:"breakId"`
	}

	TimeSlotRequest struct {
		ID    string `json:"id" validate:"required,excludes=-"`
		Time  string `json:"time" validate:"required"`
		Color string `json:"color"`
	}

	BreakRequest struct {
		ID    string `json:"id" validate:"required"`
		Name  string `json:"name" validate:"required,notblank"`
		Type  string `json:"type"`
		Color string `json:"color"`
		Icon  string `json:"icon"`
	}

	DayRequest struct {
		Name  string `json:"name" validate:"required,notblank"`
		Color string `json:"color"`
	}

	TeacherRequest struct {
		Subjects []string `json:"subjects" validate:"dive,notblank"`
		Color    string   `json:"color"`
	}

	// PatchRequest is a partial update of the main timetable. Cell keys use the
	// "<grade>-<day>-<slot>" form with a one-based day.
	PatchRequest struct {
		Subjects      map[string]CellRequest    `json:"subjects" validate:"omitempty,dive,keys,cellkey,endkeys"`
		Teachers      map[string]TeacherRequest `json:"teachers" validate:"omitempty,dive,keys,notblank,endkeys"`
		TimeSlots     []TimeSlotRequest         `json:"timeSlots" validate:"omitempty,dive"`
		Breaks        []BreakRequest            `json:"breaks" validate:"omitempty,dive"`
		Days          []DayRequest              `json:"days" validate:"omitempty,celldays,dive"`
		GradeSizes    map[string]int            `json:"gradeSizes" validate:"omitempty,dive,keys,notblank,endkeys,gte=0"`
		SelectedGrade *string                   `json:"selectedGrade"`
	}

	Envelope struct {
		Data    interface{} `json:"data"`
		Warning string      `json:"warning,omitempty"`
	}

	CountResponse struct {
		Count int `json:"count"`
	}
)

func (r CellRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

func (r CellRequest) Assignment() timetable.CellAssignment {
	return timetable.CellAssignment{
		Subject:   core.CleanString(r.Subject),
		Teacher:   core.CleanString(r.Teacher),
		IsBreak:   r.IsBreak,
		BreakType: strings.TrimSpace(r.BreakType),
		BreakID:   strings.TrimSpace(r.BreakID),
	}
}

func (r PatchRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

// Patch converts a validated request.
func (r PatchRequest) Patch() (timetable.Patch, error) {
	p := timetable.Patch{SelectedGrade: r.SelectedGrade}

	if r.Subjects != nil {
		p.Subjects = make(map[timetable.CellKey]timetable.CellAssignment, len(r.Subjects))
		for raw, cell := range r.Subjects {
			key, err := timetable.ParseCellKey(raw)
			if err != nil {
				return timetable.Patch{}, invalidCellKey("subjects", err)
			}
			p.Subjects[key] = cell.Assignment()
		}
	}
	if r.Teachers != nil {
		p.Teachers = make(map[string]timetable.TeacherInfo, len(r.Teachers))
		for name, t := range r.Teachers {
			p.Teachers[core.CleanString(name)] = timetable.TeacherInfo{Subjects: t.Subjects, Color: t.Color}
		}
	}
	if r.TimeSlots != nil {
		p.TimeSlots = make([]timetable.TimeSlot, 0, len(r.TimeSlots))
		for _, s := range r.TimeSlots {
			p.TimeSlots = append(p.TimeSlots, timetable.TimeSlot{ID: s.ID, Time: s.Time, Color: s.Color})
		}
	}
	if r.Breaks != nil {
		p.Breaks = make([]timetable.Break, 0, len(r.Breaks))
		for _, b := range r.Breaks {
			p.Breaks = append(p.Breaks, timetable.Break{ID: b.ID, Name: b.Name, Type: b.Type, Color: b.Color, Icon: b.Icon})
		}
	}
	if r.Days != nil {
		p.Days = make([]timetable.Day, 0, len(r.Days))
		for _, d := range r.Days {
			p.Days = append(p.Days, timetable.Day{Name: d.Name, Color: d.Color})
		}
	}
	if r.GradeSizes != nil {
		p.GradeSizes = make(map[string]int, len(r.GradeSizes))
		for g, n := range r.GradeSizes {
			p.GradeSizes[core.CleanString(g)] = n
		}
	}
	return p, nil
}
