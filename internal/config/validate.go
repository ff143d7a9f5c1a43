package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/verte-zerg/flashdeck/internal/deck"
	"github.com/verte-zerg/flashdeck/internal/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("decksize", func(fl validator.FieldLevel) bool {
		_, err := deck.ParseSize(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}
	return v
}

var fieldFlags = map[string]string{
	"SourceURL":      "--source-url",
	"SourceTimeout":  "--timeout",
	"SourceRetries":  "--retries",
	"Subject":        "--subject",
	"Size":           "--size",
	"Options":        "--options",
	"ShellOrigin":    "--shell-origin",
	"ShellAssets":    "shell-assets",
	"ShellVersion":   "shell-version",
	"DataVersion":    "data-version",
	"Listen":         "--listen",
	"AllowedOrigins": "allowed-origins",
	"LogLevel":       "--log-level",
}

// Validate checks the merged runtime config.
func Validate(cfg model.Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "\n"))
}

func describe(fe validator.FieldError) string {
	field := fe.StructField()
	if i := strings.Index(field, "["); i >= 0 {
		field = field[:i]
	}
	name, ok := fieldFlags[field]
	if !ok {
		name = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s must not be empty", name)
	case "url":
		return fmt.Sprintf("%s must be an absolute URL", name)
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port", name)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, fe.Param())
	case "decksize":
		return fmt.Sprintf("%s must be a positive number or %q", name, model.SizeAll)
	case "gt":
		return fmt.Sprintf("%s must be > %s", name, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", name, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", name, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", name, fe.Tag())
	}
}
