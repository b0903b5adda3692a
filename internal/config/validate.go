package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// FieldError describes one invalid setting.
type FieldError struct {
	Field   string
	Message string
	Value   any
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects every invalid setting found by Validate.
type ValidationErrors []FieldError

func (e ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString("configuration validation failed:")
	for _, fe := range e {
		sb.WriteString("\n  - ")
		sb.WriteString(fe.Error())
	}
	return sb.String()
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	var details ValidationErrors
	if err := validate.Struct(cfg); err != nil {
		var ves validator.ValidationErrors
		if !errors.As(err, &ves) {
			return err
		}
		for _, fe := range ves {
			details = append(details, FieldError{
				Field:   fe.Namespace(),
				Message: formatValidationError(fe),
				Value:   fe.Value(),
			})
		}
	}

	if cfg.Index.Backend == "qdrant" && cfg.Index.Qdrant.Addr == "" {
		details = append(details, FieldError{
			Field:   "Config.Index.Qdrant.Addr",
			Message: "required when index.backend is qdrant",
			Value:   "",
		})
	}
	if cfg.Embedder.Provider == "none" && cfg.Index.Backend != "keyword" {
		details = append(details, FieldError{
			Field:   "Config.Embedder.Provider",
			Message: "provider none only works with index.backend keyword",
			Value:   cfg.Embedder.Provider,
		})
	}
	if cfg.Embedder.Provider != "hash" && cfg.Embedder.Provider != "none" && cfg.Embedder.Model == "" {
		details = append(details, FieldError{
			Field:   "Config.Embedder.Model",
			Message: "required for provider " + cfg.Embedder.Provider,
			Value:   "",
		})
	}

	if len(details) > 0 {
		return details
	}
	return nil
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
