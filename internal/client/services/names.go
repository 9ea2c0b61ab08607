package services

import (
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/dmitrijs2005/gophdrive/internal/common"
)

const maxNameLength = 255

var noSeparator = regexp.MustCompile(`^[^/]+$`)

// validateName checks a file, folder or group name typed by the user.
func validateName(name string) error {
	err := validation.Validate(name,
		validation.Required,
		validation.RuneLength(1, maxNameLength),
		validation.Match(noSeparator).Error("must not contain slashes"),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidName, err)
	}
	return nil
}
