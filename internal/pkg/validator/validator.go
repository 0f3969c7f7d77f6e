package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func oneOf(values ...string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		for _, allowed := range values {
			if v == allowed {
				return true
			}
		}
		return false
	}
}

func registerCustomValidations() {
	validate.RegisterValidation("window", oneOf("weekly", "monthly", "all_time"))
	validate.RegisterValidation("ledger_kind", oneOf(
		"given", "received", "purchase", "refund", "admin_grant", "admin_deduct", "monthly_allowance", "",
	))
	validate.RegisterValidation("order_status", oneOf("pending", "processing", "completed", "cancelled", ""))

	// Account ids are opaque but must not be blank or padded.
	validate.RegisterValidation("account", func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		return v != "" && strings.TrimSpace(v) == v && len(v) <= 128
	})

	validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}

	errors := make(map[string]string)
	for _, err := range verrs {
		field := err.Field()
		switch err.Tag() {
		case "required", "notblank":
			errors[field] = "This field is required"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "gte", "gt":
			errors[field] = "Value must be at least " + err.Param()
		case "lte":
			errors[field] = "Value must be at most " + err.Param()
		case "uuid":
			errors[field] = "Invalid identifier format"
		case "window":
			errors[field] = "Invalid window. Must be: weekly, monthly, or all_time"
		case "ledger_kind":
			errors[field] = "Invalid transaction kind"
		case "order_status":
			errors[field] = "Invalid order status"
		case "account":
			errors[field] = "Invalid account id"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
