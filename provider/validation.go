package provider

import (
	"fmt"
	"strings"
)

// ValidateConfigFields checks options against a provider's field definitions and
// collects every problem instead of stopping at the first one.
func ValidateConfigFields(providerName string, options map[string]string, fields []ConfigField) ConfigValidation {
	var errs []string

	for _, field := range fields {
		value := strings.TrimSpace(options[field.Key])

		if value == "" {
			if field.Required {
				errs = append(errs, fmt.Sprintf("%s: required field '%s' cannot be empty", providerName, field.Key))
			}
			continue
		}

		if msg := validateFieldType(providerName, field, value); msg != "" {
			errs = append(errs, msg)
		}

		if msg := validateFieldLength(providerName, field, value); msg != "" {
			errs = append(errs, msg)
		}
	}

	return ConfigValidation{Valid: len(errs) == 0, Errors: errs}
}

// validateFieldType validates field based on its type
func validateFieldType(providerName string, field ConfigField, value string) string {
	switch field.Type {
	case "boolean":
		switch value {
		case "0", "1", "true", "false":
			return ""
		}
		return fmt.Sprintf("%s: field '%s' must be one of 0, 1, true, false", providerName, field.Key)
	default:
		return ""
	}
}

// validateFieldLength validates field length constraints
func validateFieldLength(providerName string, field ConfigField, value string) string {
	if field.MinLength > 0 && len(value) < field.MinLength {
		return fmt.Sprintf("%s: field '%s' must be at least %d characters", providerName, field.Key, field.MinLength)
	}

	if field.MaxLength > 0 && len(value) > field.MaxLength {
		return fmt.Sprintf("%s: field '%s' must not exceed %d characters", providerName, field.Key, field.MaxLength)
	}

	return ""
}
