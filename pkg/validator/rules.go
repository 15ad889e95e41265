package validator

import (
	"fmt"
	"net/mail"
	"net/url"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

func rule(field, message string, check func() bool) Rule {
	return Rule{Check: check, Error: ValidationError{Field: field, Message: message}}
}

// Required fails on empty or whitespace-only strings.
func Required(field, value string) Rule {
	return rule(field, "field is required", func() bool {
		return strings.TrimSpace(value) != ""
	})
}

// MaxLen counts runes, not bytes.
func MaxLen(field, value string, max int) Rule {
	return rule(field, fmt.Sprintf("must be at most %d characters long", max), func() bool {
		return utf8.RuneCountInString(value) <= max
	})
}

// OneOf passes when value is in options. Empty strings pass unless Required
// is applied as well.
func OneOf(field, value string, options []string) Rule {
	return rule(field, fmt.Sprintf("must be one of: %s", strings.Join(options, ", ")), func() bool {
		return value == "" || slices.Contains(options, value)
	})
}

func MaxItems[T any](field string, value []T, max int) Rule {
	return rule(field, fmt.Sprintf("must contain at most %d items", max), func() bool {
		return len(value) <= max
	})
}

func RequiredUUID(field string, value uuid.UUID) Rule {
	return rule(field, "field is required", func() bool {
		return value != uuid.Nil
	})
}

func RequiredDate(field string, value time.Time) Rule {
	return rule(field, "field is required", func() bool {
		return !value.IsZero()
	})
}

// AbsoluteURL passes on empty values and on http(s) URLs with a host.
func AbsoluteURL(field, value string) Rule {
	return rule(field, "must be an absolute http(s) URL", func() bool {
		if value == "" {
			return true
		}
		u, err := url.Parse(value)
		return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	})
}

// Email accepts a bare address such as user@example.com. Empty passes.
func Email(field, value string) Rule {
	return rule(field, "must be a valid email address", func() bool {
		if value == "" {
			return true
		}
		addr, err := mail.ParseAddress(value)
		return err == nil && addr.Address == value && strings.Contains(value, ".")
	})
}

// Range bounds an integer inclusively.
func Range(field string, value, min, max int) Rule {
	return rule(field, fmt.Sprintf("must be between %d and %d", min, max), func() bool {
		return value >= min && value <= max
	})
}
