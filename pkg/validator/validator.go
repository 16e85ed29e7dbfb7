package validator

import (
	"fmt"
	"strings"

	v10 "github.com/go-playground/validator/v10"

	apperrors "clinic-console/pkg/errors"
)

// Validator validates request payloads using `validate` struct tags.
type Validator struct {
	v *v10.Validate
}

func New() *Validator {
	return &Validator{v: v10.New(v10.WithRequiredStructEnabled())}
}

// Validate checks obj and returns a Validation error naming the first
// offending field.
func (v *Validator) Validate(obj interface{}) error {
	err := v.v.Struct(obj)
	if err == nil {
		return nil
	}

	var verrs v10.ValidationErrors
	if ok := asValidationErrors(err, &verrs); ok && len(verrs) > 0 {
		fe := verrs[0]
		return apperrors.Validation(fmt.Sprintf("%s failed %s validation", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return apperrors.Validation(err.Error())
}

func asValidationErrors(err error, target *v10.ValidationErrors) bool {
	verrs, ok := err.(v10.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}
