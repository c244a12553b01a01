package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate performs validation on a struct.
func Validate(s interface{}) error {
	return validate.Struct(s)
}

// FormatValidationError formats validation errors into a readable string.
func FormatValidationError(err error) string {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		var errorMessages []string
		for _, e := range errs {
			errorMessages = append(errorMessages, describeField(e))
		}
		return strings.Join(errorMessages, ", ")
	}
	return err.Error()
}

func describeField(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email", e.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", e.Field(), e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", e.Field(), e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", e.Field(), e.Param())
	}
	return fmt.Sprintf("%s is invalid (%s)", e.Field(), e.Tag())
}

// BindAndValidate binds the request body to a struct and validates it.
// If validation fails, it sends a BadRequest response and returns false.
func BindAndValidate(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		BadRequest(c, "Invalid request payload: "+err.Error())
		return false
	}
	if err := Validate(obj); err != nil {
		BadRequest(c, "Validation failed: "+FormatValidationError(err))
		return false
	}
	return true
}

// BindForm is BindAndValidate for HTML form posts. It reports the problem
// instead of writing a response so the page can show it in the snackbar.
func BindForm(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBind(obj); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			return errors.New(FormatValidationError(err))
		}
		return fmt.Errorf("invalid form: %w", err)
	}
	if err := Validate(obj); err != nil {
		return errors.New(FormatValidationError(err))
	}
	return nil
}
