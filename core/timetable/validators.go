package timetable

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/tobias-barakaa/newschool-sub008/core"
)

var (
	cellKeyTag  = "cellkey"
	cellKeyText = "must be a cell key like 'Grade 7-1-3'"
)

// InitValidators registers the timetable validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(cellKeyTag, cellKeyValidation)
	core.RegisterCustomTranslation(validate, translator, cellKeyTag, cellKeyText)
}

func cellKeyValidation(fl validator.FieldLevel) bool {
	str, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := ParseCellKey(str)
	return err == nil
}
