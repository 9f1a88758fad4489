package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"sellerpilot/internal/types"
)

// storeValidator wraps a validator instance with the schedule_time tag
// registered. Schedule times use 24-hour HH:MM, e.g. "09:30".
type storeValidator struct {
	v *validator.Validate
}

func newStoreValidator() *storeValidator {
	v := validator.New()
	// RegisterValidation only errors for an empty tag name.
	_ = v.RegisterValidation("schedule_time", validScheduleTime)
	return &storeValidator{v: v}
}

func validScheduleTime(fl validator.FieldLevel) bool {
	return IsValidScheduleTime(fl.Field().String())
}

// IsValidScheduleTime reports whether s is a well-formed HH:MM wall-clock
// time with zero-padded fields.
func IsValidScheduleTime(s string) bool {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return false
	}
	return true
}

func (sv *storeValidator) check(s types.StoreConfig) error {
	err := sv.v.Struct(s)
	if err == nil {
		return nil
	}
	// A malformed schedule time gets its own code so clients can point at
	// the offending field; anything else is a generic store config failure.
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			if fe.Tag() == "schedule_time" {
				return types.NewAppError(types.ErrCodeValidationInvalidTime,
					fmt.Sprintf("%s must be a 24-hour HH:MM time", fe.Field()), err)
			}
		}
	}
	return types.NewAppError(types.ErrCodeValidationInvalidStore, fmt.Sprintf("invalid store configuration: %v", err), err)
}
