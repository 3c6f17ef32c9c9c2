// Package validate provides request-level checks for submitted cases.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var emailRx = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ErrNoImages is returned when a case that requires photos carries none.
var ErrNoImages = errors.New("At least one image is required for damage assessment.")

// EmailShape checks for a local part, an @ and a dotted domain. Blank is allowed.
func EmailShape(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	if !emailRx.MatchString(email) {
		return errors.New("email address looks malformed")
	}
	return nil
}

// ImageCount checks the number of non-empty images against the policy.
func ImageCount(n, max int, required bool) error {
	if required && n == 0 {
		return ErrNoImages
	}
	if max > 0 && n > max {
		return fmt.Errorf("too many images: %d (max %d)", n, max)
	}
	return nil
}

// ImageMIME checks that an attachment is an image.
func ImageMIME(mime string) error {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(mime)), "image/") {
		return fmt.Errorf("unsupported file type %q", mime)
	}
	return nil
}
