package registrations

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/lumen-church/backend/internal/apperr"
	"github.com/lumen-church/backend/internal/models"
)

// MaxGuests is the largest party one registration may cover.
const MaxGuests = 10

var phonePattern = regexp.MustCompile(`^\+?[0-9\s().-]{7,20}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

// Form is an RSVP as submitted by a visitor.
type Form struct {
	Name   string `json:"name" validate:"required,min=2,max=120"`
	Email  string `json:"email" validate:"required,email"`
	Phone  string `json:"phone" validate:"omitempty,phone"`
	Guests int    `json:"guests" validate:"min=1,max=10"`
	Notes  string `json:"notes" validate:"max=1000"`
}

// Normalize trims the text fields.
func (f *Form) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Notes = strings.TrimSpace(f.Notes)
}

// Validate checks the form against itself and the event's remaining
// capacity. Failures are validation errors with per-field messages.
func (f *Form) Validate(ev *models.Event) error {
	f.Normalize()
	fields := map[string]string{}
	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if !asValidationErrors(err, &verrs) {
			return apperr.Validation(err.Error(), nil)
		}
		for _, fe := range verrs {
			fields[fe.Field()] = message(fe)
		}
	}
	if ev != nil {
		if !ev.IsPublished || !ev.RequiresRSVP {
			return apperr.Validation("this event is not open for registration", nil)
		}
		if _, bad := fields["guests"]; !bad {
			if left := ev.RemainingCapacity(); left >= 0 && f.Guests > left {
				fields["guests"] = fmt.Sprintf("only %d places left", left)
			}
		}
	}
	if len(fields) > 0 {
		return apperr.Validation("please correct the highlighted fields", fields)
	}
	return nil
}

func asValidationErrors(err error, out *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*out = verrs
	}
	return ok
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "email":
		return "invalid email address"
	case "phone":
		return "invalid phone number"
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	}
	return "invalid"
}
