// Package validation validates API requests with validator/v10 and converts
// failures into domain validation errors.
package validation

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/listenupapp/listenup-transcoder/internal/domain"
	domainerrors "github.com/listenupapp/listenup-transcoder/internal/errors"
)

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator with the transcoder's custom tags:
//
//	quality   one of the ten encoder quality names
//	bitrate   a supported kbps step, or 0
//	tagmerge  last, first or empty
//	format    an implemented target format
//	dir       an existing directory
func New() *Validator {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "quality", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseQuality(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "bitrate", func(fl validator.FieldLevel) bool {
		return domain.Bitrate(fl.Field().Int()).Valid()
	})
	mustRegister(v, "tagmerge", func(fl validator.FieldLevel) bool {
		return domain.TagMergePolicy(fl.Field().String()).Valid()
	})
	mustRegister(v, "dir", func(fl validator.FieldLevel) bool {
		info, err := os.Stat(fl.Field().String())
		return err == nil && info.IsDir()
	})

	return &Validator{v: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// Validate validates a struct and returns a domain error.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// formatError converts validator errors to domain errors.
func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fieldErrors := make(map[string]string, len(validationErrs))
	names := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		fieldErrors[e.Field()] = v.friendlyMessage(e)
		names = append(names, e.Field())
	}

	return domainerrors.ValidationWithDetails("validation failed: "+strings.Join(names, ", "), fieldErrors)
}

func (v *Validator) friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must not exceed " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "nefield":
		return "must differ from " + e.Param()
	case "quality":
		return fmt.Sprintf("must be one of: %v", domain.Qualities())
	case "bitrate":
		return fmt.Sprintf("must be 0 or one of: %v", domain.Bitrates())
	case "tagmerge":
		return "must be last or first"
	case "dir":
		return "must be an existing directory"
	default:
		return "is invalid"
	}
}
