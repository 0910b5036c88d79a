package middleware

import (
	"errors"
	"reflect"
	"strings"

	"github.com/eaglebank/swiftpay/internal/apperr"
	"github.com/eaglebank/swiftpay/internal/models"
	"github.com/eaglebank/swiftpay/internal/validation"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report wire names rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	// Amounts are compared as decimals, never as floats.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	rules := map[string]func(string) bool{
		"identity":      validation.IsIdentity,
		"accountnumber": validation.IsAccountNumber,
		"payee":         validation.IsPayeeAccount,
		"bic":           validation.IsRoutingCode,
		"strongsecret":  validation.IsStrongSecret,
		"currency":      validation.IsSubmittableCurrency,
		"amount": func(s string) bool {
			d, err := decimal.NewFromString(s)
			return err == nil && validation.IsValidAmount(d)
		},
		"txstatus": func(s string) bool {
			return models.TransactionStatus(s).Valid()
		},
		"notblank": func(s string) bool {
			return strings.TrimSpace(s) != ""
		},
	}
	for tag, fn := range rules {
		fn := fn
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return fn(fl.Field().String())
		}); err != nil {
			panic(err)
		}
	}
	return v
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ValidateRequest returns the failures in struct field order.
func ValidateRequest(obj any) []ValidationError {
	err := validate.Struct(obj)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []ValidationError{{Message: "Invalid request data.", Type: "invalid"}}
	}

	validationErrors := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		validationErrors = append(validationErrors, ValidationError{
			Field:   fe.Field(),
			Message: validation.Message(fe.Field()),
			Type:    fe.Tag(),
		})
	}
	return validationErrors
}

// RespondWithValidationError reports the first failure. Field rules run in
// the same order the services apply them.
func RespondWithValidationError(c *gin.Context, validationErrors []ValidationError) {
	first := validationErrors[0]
	RespondWithAppError(c, apperr.Validation(first.Field, first.Message))
}

// BindAndValidate decodes the JSON body into obj and validates it. On failure
// it writes the error response and returns false.
func BindAndValidate(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		RespondWithAppError(c, apperr.Validation("", "Invalid request data."))
		return false
	}
	if errs := ValidateRequest(obj); len(errs) > 0 {
		RespondWithValidationError(c, errs)
		return false
	}
	return true
}
