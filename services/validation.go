package services

import (
	"errors"
	"fmt"
	"log"
	"reflect"
	"strings"
	"sync"

	"finite-life/finitelife/models"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateErr  error
	validateOnce sync.Once
)

// newValidator builds a validator that reports field errors under their json names
// and knows the task_status rule.
func newValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	err := v.RegisterValidation("task_status", func(fl validator.FieldLevel) bool {
		return models.IsValidTaskStatus(fl.Field().String())
	})
	if err != nil {
		return nil, fmt.Errorf("registering task_status validation: %w", err)
	}
	return v, nil
}

func validatorInstance() (*validator.Validate, error) {
	validateOnce.Do(func() {
		validate, validateErr = newValidator()
		if validateErr != nil {
			log.Printf("Validator setup failed: %v", validateErr)
		}
	})
	return validate, validateErr
}

// validateStruct runs the struct's validate tags and converts the first failure into
// a ValidationError.
func validateStruct(s interface{}) error {
	v, err := validatorInstance()
	if err != nil {
		return err
	}
	err = v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		fe := fieldErrors[0]
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		return &ValidationError{Field: fe.Field(), Rule: rule}
	}
	return err
}
