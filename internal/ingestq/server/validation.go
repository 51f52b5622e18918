package server

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/armadaproject/ingestq/internal/common/ingesterrors"
	"github.com/armadaproject/ingestq/internal/ingestq/ingestion"
)

// IngestRequest is the body of POST /ingest.
type IngestRequest struct {
	Ids      []int64 `json:"ids" validate:"required,min=1,dive,min=1,max=1000000007"`
	Priority string  `json:"priority" validate:"required,priority"`
}

func newValidator() *validator.Validate {
	validate := validator.New()
	// Report json field names rather than Go field names.
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := validate.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		_, err := ingestion.ParsePriority(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}
	return validate
}

// validateRequest returns ErrInvalidArgument describing the first field that failed validation.
func validateRequest(validate *validator.Validate, req *IngestRequest) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return errors.WithStack(err)
	}
	fieldErr := validationErrors[0]
	return &ingesterrors.ErrInvalidArgument{
		Name:    fieldErr.Field(),
		Value:   fieldErr.Value(),
		Message: validationMessage(fieldErr),
	}
}

func validationMessage(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "is required"
	case "min":
		if fieldErr.Kind() == reflect.Slice {
			return "at least one id is required"
		}
		return "must be at least " + fieldErr.Param()
	case "max":
		return "must be at most " + fieldErr.Param()
	case "priority":
		return "must be one of HIGH, MEDIUM or LOW"
	default:
		return "failed " + fieldErr.Tag() + " validation"
	}
}
