package config

import (
	"fmt"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates cfg using struct tags plus the custom rules that
// cannot be expressed as tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	if !filepath.IsAbs(cfg.SessionRoot) {
		return fmt.Errorf("session_root: must be an absolute path, got %q", cfg.SessionRoot)
	}

	if cfg.HostFS.Type == "s3" {
		if _, ok := cfg.HostFS.S3["bucket"]; !ok {
			return fmt.Errorf("hostfs.s3: bucket is required when hostfs.type is s3")
		}
	}

	return nil
}

func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
