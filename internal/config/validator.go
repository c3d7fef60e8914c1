package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers TurboMCP-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("audit_output", validateAuditOutput); err != nil {
		return fmt.Errorf("failed to register audit_output validator: %w", err)
	}
	return nil
}

// validateAuditOutput validates the audit output field.
// Valid values: "stdout" or "file://<absolute-path>"
func validateAuditOutput(fl validator.FieldLevel) bool {
	output := fl.Field().String()

	if output == "stdout" {
		return true
	}

	if strings.HasPrefix(output, "file://") {
		path := strings.TrimPrefix(output, "file://")
		return path != "" && filepath.IsAbs(path)
	}

	return false
}

// Validate validates the Config using struct tags and custom
// cross-field rules. Returns an error with actionable messages.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateIdentityReferences(); err != nil {
		return err
	}

	if err := c.validateJWTConfig(); err != nil {
		return err
	}

	return nil
}

// validateJWTConfig ensures an enabled JWT mode has a key source: either
// a symmetric secret for HMAC tokens or a JWKS URI for asymmetric ones.
func (c *Config) validateJWTConfig() error {
	if c.Auth.JWT == nil {
		return nil
	}
	if c.Auth.JWT.SymmetricSecret == "" && c.Auth.JWT.JWKSURI == "" {
		return errors.New("auth.jwt: either symmetric_secret or jwks_uri is required")
	}
	return nil
}

// validateIdentityReferences ensures every API key's identity_id
// references a known identity.
func (c *Config) validateIdentityReferences() error {
	known := make(map[string]struct{}, len(c.Auth.Identities))
	for _, identity := range c.Auth.Identities {
		known[identity.ID] = struct{}{}
	}

	for i, apiKey := range c.Auth.APIKeys {
		if _, exists := known[apiKey.IdentityID]; !exists {
			return fmt.Errorf("auth.api_keys[%d]: references unknown identity_id: %s", i, apiKey.IdentityID)
		}
	}

	return nil
}

// formatValidationErrors converts validator.ValidationErrors into
// user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a
// single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_with":
		return fmt.Sprintf("%s is required when %s is set", field, e.Param())
	case "min":
		return fmt.Sprintf("%s must have at least %s items", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "audit_output":
		return fmt.Sprintf("%s must be 'stdout' or 'file://<absolute-path>'", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
