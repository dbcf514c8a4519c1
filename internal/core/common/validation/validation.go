package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	errors "github.com/softeno/permission-template/internal"
)

const (
	MaxNameLength        = 255
	MaxDescriptionLength = 1024
)

type ValidatorFunc func(interface{}) *errors.AppError

type FieldValidator struct {
	FieldName  string
	Value      interface{}
	Validators []ValidatorFunc
}

type ValidationBuilder struct {
	fields []FieldValidator
}

func NewValidator() *ValidationBuilder {
	return &ValidationBuilder{
		fields: make([]FieldValidator, 0),
	}
}

func (v *ValidationBuilder) Field(name string, value interface{}) *FieldValidator {
	fv := FieldValidator{
		FieldName:  name,
		Value:      value,
		Validators: make([]ValidatorFunc, 0),
	}
	v.fields = append(v.fields, fv)
	return &v.fields[len(v.fields)-1]
}

func (fv *FieldValidator) Required() *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		missing := false
		switch v := value.(type) {
		case nil:
			missing = true
		case string:
			missing = v == ""
		case *string:
			missing = v == nil || *v == ""
		case *int64:
			missing = v == nil
		}
		if missing {
			return errors.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s is required", fv.FieldName), errors.ErrCodeValidationFailed)
		}
		return nil
	})
	return fv
}

// NotBlank rejects values made only of whitespace. Absent pointers pass;
// combine with Required when presence matters.
func (fv *FieldValidator) NotBlank(code errors.ErrorCode) *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		s, ok := stringValue(value)
		if ok && strings.TrimSpace(s) == "" {
			return errors.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s must not be blank", fv.FieldName), code)
		}
		return nil
	})
	return fv
}

// NotEmpty rejects a present empty string. Absent pointers pass.
func (fv *FieldValidator) NotEmpty(code errors.ErrorCode) *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if s, ok := stringValue(value); ok && s == "" {
			return errors.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s must not be empty", fv.FieldName), code)
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) MinInt(min int64, code errors.ErrorCode) *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		var v int64
		switch t := value.(type) {
		case int64:
			v = t
		case *int64:
			if t == nil {
				return nil
			}
			v = *t
		default:
			return nil
		}
		if v < min {
			return errors.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s must be at least %d", fv.FieldName, min), code)
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) MaxLength(max int) *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if s, ok := stringValue(value); ok && utf8.RuneCountInString(s) > max {
			message := fmt.Sprintf("%s must not exceed %d characters", fv.FieldName, max)
			return errors.NewValidationFieldError(fv.FieldName, message, errors.ErrCodeValidationFailed)
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) Custom(validator func(interface{}) *errors.AppError) *FieldValidator {
	fv.Validators = append(fv.Validators, validator)
	return fv
}

func (v *ValidationBuilder) Validate() *errors.AppError {
	var validationErrors []errors.ValidationError

	for _, field := range v.fields {
		for _, validator := range field.Validators {
			appErr := validator(field.Value)
			if appErr == nil {
				continue
			}
			if details, ok := appErr.Details.(errors.ValidationErrors); ok {
				validationErrors = append(validationErrors, details.Errors...)
			} else {
				validationErrors = append(validationErrors, errors.ValidationError{
					Field:   field.FieldName,
					Message: appErr.Message,
					Code:    string(appErr.Code),
				})
			}
			// first failure per field is enough
			break
		}
	}

	if len(validationErrors) > 0 {
		return errors.NewValidationError("Validation failed", errors.ErrCodeValidationFailed).
			WithDetails(errors.ValidationErrors{Errors: validationErrors})
	}

	return nil
}

func stringValue(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", false
		}
		return *v, true
	}
	return "", false
}

// PermissionName adds the name rules to a builder. Name is required.
func PermissionName(v *ValidationBuilder, name interface{}) {
	v.Field("name", name).
		Required().
		NotBlank(errors.ErrCodeInvalidName).
		MaxLength(MaxNameLength)
}

// PermissionDescription adds the description rules.
func PermissionDescription(v *ValidationBuilder, description interface{}) {
	v.Field("description", description).
		Required().
		MaxLength(MaxDescriptionLength)
}

// PartialPermission validates fields of a batch item. Absent fields are
// allowed; present ones follow the same rules as a full permission.
func PartialPermission(v *ValidationBuilder, name, description *string) {
	v.Field("name", name).
		NotBlank(errors.ErrCodeInvalidName).
		MaxLength(MaxNameLength)
	v.Field("description", description).
		NotEmpty(errors.ErrCodeInvalidDescription).
		MaxLength(MaxDescriptionLength)
}

func Version(v *ValidationBuilder, version *int64) {
	v.Field("version", version).
		Required().
		MinInt(0, errors.ErrCodeInvalidVersion)
}
