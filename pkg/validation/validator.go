package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// MaxIdentifierLength is Postgres' NAMEDATALEN - 1.
	MaxIdentifierLength = 63
	MaxMigrationName    = 100

	identifierPattern    = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	migrationNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_]*$`)
)

func init() {
	validate = validator.New()
}

// Struct validates v against its `validate` struct tags.
func Struct(v any) error {
	if v == nil {
		return errors.New("value cannot be nil")
	}
	if err := validate.Struct(v); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ValidateIdentifier checks that name is a plain unquoted SQL identifier.
func ValidateIdentifier(name string) error {
	if name == "" {
		return errors.New("identifier cannot be empty")
	}
	if len(name) > MaxIdentifierLength {
		return fmt.Errorf("identifier '%s' exceeds maximum length of %d characters", name, MaxIdentifierLength)
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("identifier '%s' is invalid (must start with letter or underscore, followed by alphanumeric or underscore)", name)
	}
	return nil
}

// ValidateMigrationName checks the slug part of a migration file name.
func ValidateMigrationName(name string) error {
	if name == "" {
		return errors.New("migration name cannot be empty")
	}
	if len(name) > MaxMigrationName {
		return fmt.Errorf("migration name exceeds maximum length of %d characters", MaxMigrationName)
	}
	if !migrationNamePattern.MatchString(name) {
		return fmt.Errorf("migration name '%s' is invalid (lowercase alphanumeric and underscore only)", name)
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	// Return the first validation error in a user-friendly format
	for _, e := range validationErrs {
		field := e.Field()
		param := e.Param()

		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min":
			return fmt.Errorf("%s: must be at least %s", field, param)
		case "max":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s]", field, param)
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}

	return err
}
