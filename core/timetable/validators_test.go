package timetable

import (
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/tobias-barakaa/newschool-sub008/core"
)

func TestInitValidators(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	InitValidators(validate, translator)

	type request struct {
		Key   string            `validate:"cellkey"`
		Cells map[string]string `validate:"dive,keys,cellkey,endkeys"`
	}

	tests := []struct {
		name    string
		req     request
		wantErr bool
	}{
		{name: "valid", req: request{Key: "Grade 7-1-3", Cells: map[string]string{"Grade 8-5-lunch": ""}}},
		{name: "bad key", req: request{Key: "Grade 7-0-3"}, wantErr: true},
		{name: "bad map key", req: request{Key: "Grade 7-1-3", Cells: map[string]string{"Grade 8": ""}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validate.Struct() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				vErrs := err.(validator.ValidationErrors)
				if got := vErrs[0].Translate(translator); got != cellKeyText {
					t.Errorf("Translate() = %q, want %q", got, cellKeyText)
				}
			}
		})
	}
}
