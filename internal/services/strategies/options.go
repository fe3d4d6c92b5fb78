package strategies

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"AOWI/internal/domain/models"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// decodeOptions applies defaults to dest, overlays opts through a yaml round-trip
// and validates.
// Every failure is a *models.ConfigError.
func decodeOptions(strategy string, opts models.Options, dest interface{}) error {
	raw, err := yaml.Marshal(map[string]any(opts))
	if err != nil {
		return &models.ConfigError{Strategy: strategy, Reason: "options not encodable", Err: err}
	}
	// defaults first so explicit zeros survive to validation
	if err := defaults.Set(dest); err != nil {
		return &models.ConfigError{Strategy: strategy, Reason: "apply defaults", Err: err}
	}
	if err := yaml.Unmarshal(raw, dest); err != nil {
		return &models.ConfigError{Strategy: strategy, Reason: "options malformed", Err: err}
	}
	if err := validate.Struct(dest); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &models.ConfigError{Strategy: strategy, Field: fe.Field(), Reason: reasonFor(fe)}
		}
		return &models.ConfigError{Strategy: strategy, Err: err}
	}
	return nil
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("needs at least %s entries", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s", fe.Tag())
	}
}

func lots(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func bps(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 1e4
}
