package validation

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxRestaurantNameLength = 120
	MaxCommentLength        = 1000
	MaxReviewLength         = 2000
	MaxDishNameLength       = 120
)

var clockRegex = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// ValidateWebsite accepts empty input or an absolute http(s) URL.
func ValidateWebsite(website string) error {
	if website == "" {
		return nil
	}
	u, err := url.Parse(website)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("website must be an http or https URL")
	}
	return nil
}

// ValidateClock checks a 24-hour HH:MM time.
func ValidateClock(value string) error {
	if !clockRegex.MatchString(value) {
		return fmt.Errorf("invalid time %q, expected HH:MM", value)
	}
	return nil
}

// ValidateText trims s and checks it is non-empty when required and within max runes.
func ValidateText(field, s string, required bool, max int) (string, error) {
	s = strings.TrimSpace(s)
	if required && s == "" {
		return "", fmt.Errorf("%s is required", field)
	}
	if utf8.RuneCountInString(s) > max {
		return "", fmt.Errorf("%s must be at most %d characters", field, max)
	}
	return s, nil
}
