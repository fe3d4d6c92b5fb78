package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	// report query/json names rather than Go field names
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"query", "json"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
}

// ReadAndValidateRequest binds req from the body or query string, applies
// defaults and validates it. It returns nil or a []ValidationError.
func ReadAndValidateRequest(c echo.Context, req interface{}) []ValidationError {
	// Bind request
	if err := c.Bind(req); err != nil {
		return validatorDefaultRules(err)
	}

	// Set default values
	if err := defaults.Set(req); err != nil {
		return validatorDefaultRules(err)
	}

	// Validate struct
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return validatorDefaultRules(err)
	}

	return nil
}

func validatorDefaultRules(err error) []ValidationError {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		errs := make([]ValidationError, 0, len(validationErrors))
		for _, fe := range validationErrors {
			msg, params := describe(fe)
			errs = append(errs, ValidationError{
				Code:    "ERR_" + strings.ToUpper(fe.Tag()),
				Field:   fe.Field(),
				Message: msg,
				Params:  params,
			})
		}
		return errs
	}

	// bind failures, e.g. limit=abc
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return []ValidationError{{
			Code:    "ERR_BIND",
			Message: fmt.Sprintf("%v", he.Message),
		}}
	}

	return []ValidationError{{
		Code:    "ERR_UNKNOWN",
		Message: err.Error(),
	}}
}

// describe renders a field error as a message and the params a client needs
// to show it.
func describe(fe validator.FieldError) (string, map[string]interface{}) {
	field, param := fe.Field(), fe.Param()
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field), nil
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s%s", field, param, unit), map[string]interface{}{"min": param}
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s%s", field, param, unit), map[string]interface{}{"max": param}
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param), map[string]interface{}{"value": param}
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, param), map[string]interface{}{"value": param}
	case "oneof":
		opts := strings.Fields(param)
		return fmt.Sprintf("%s must be one of: %s", field, strings.Join(opts, ", ")), map[string]interface{}{"options": opts}
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag()), nil
	}
}
