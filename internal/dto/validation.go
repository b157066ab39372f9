package dto

import (
	"ashare-backtest/internal/backtest"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	goValidator "github.com/go-playground/validator/v10"
)

// NewValidator reports fields by their json names.
func NewValidator() *goValidator.Validate {
	v := goValidator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("finite", validateFinite)
	return v
}

// validateFinite rejects NaN and ±Inf, which gt/lt alone let through.
func validateFinite(fl goValidator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Float32, reflect.Float64:
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	default:
		return true
	}
}

// ValidateStruct runs the validator and converts failures into a
// backtest.ValidationError.
func ValidateStruct(v *goValidator.Validate, s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs goValidator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	verr := &backtest.ValidationError{}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), describeTag(fe))
	}
	return verr
}

func describeTag(fe goValidator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "len":
		return fmt.Sprintf("must have length %s", fe.Param())
	case "numeric":
		return "must be numeric"
	case "finite":
		return "must be a finite number"
	case "datetime":
		return "must be YYYY-MM-DD"
	case "gt":
		return "must be > " + fe.Param()
	case "gte":
		return "must be >= " + fe.Param()
	case "lt":
		return "must be < " + fe.Param()
	case "min":
		return "must be >= " + fe.Param()
	case "max":
		return "must be <= " + fe.Param()
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "is invalid"
	}
}
