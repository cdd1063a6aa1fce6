package attendance

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mahudhurio/core"
)

var (
	timeOfDayTag   = "timeofday"
	timeOfDayText  = "must be a valid HH:MM time"
	timeOfDayRegex = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

func init() {
	_ = core.Validate.RegisterValidation(timeOfDayTag, timeOfDayValidation)
	core.RegisterCustomTranslation(core.Validate, core.Translator, timeOfDayTag, timeOfDayText)
}

// timeOfDayValidation only allows 24h HH:MM values.
func timeOfDayValidation(fl validator.FieldLevel) bool {
	return timeOfDayRegex.MatchString(fl.Field().String())
}

type (
	// NewSession is the teacher-supplied input for CreateSession.
	NewSession struct {
		ClassID         string    `json:"class_id" validate:"required"`
		Date            time.Time `json:"date" validate:"required"`
		StartTime       string    `json:"start_time" validate:"required,timeofday"`
		EndTime         string    `json:"end_time" validate:"required,timeofday"`
		RequireLocation bool      `json:"require_location"`
	}

	// CheckInRequest is the student-supplied check-in payload.
	CheckInRequest struct {
		Token    string    `json:"token" validate:"required"`
		Location *Location `json:"location,omitempty"`
	}
)

func (ns NewSession) Validate() error {
	return core.Validate.Struct(ns)
}

func (r CheckInRequest) Validate() error {
	return core.Validate.Struct(r)
}
