package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Log level normalization is handled in ApplyDefaults, not here. Validation
// accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs validation that struct tags cannot express.
func validateCustomRules(cfg *Config) error {
	names := make(map[string]bool)
	for i, user := range cfg.Backend.Users {
		if names[user.Name] {
			return fmt.Errorf("backend.users[%d]: duplicate user name %q", i, user.Name)
		}
		names[user.Name] = true

		if user.Password == "" && user.PasswordHash == "" {
			return fmt.Errorf("backend.users[%d]: %q needs password or password_hash", i, user.Name)
		}
	}

	switch cfg.Catalog.Password.Source {
	case "config":
		if cfg.Catalog.Password.Value == "" {
			return fmt.Errorf("catalog.password: source is config but value is empty")
		}
	case "env":
		if cfg.Catalog.Password.EnvVar == "" {
			return fmt.Errorf("catalog.password: source is env but env_var is empty")
		}
	}

	if cfg.Backend.Content.Type == "s3" {
		if bucket, _ := cfg.Backend.Content.S3["bucket"].(string); bucket == "" {
			return fmt.Errorf("backend.content.s3: bucket is required")
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
