package sanitizer

import (
	"strings"
	"unicode"
)

// Apply runs transforms over value in order.
func Apply[T any](value T, transforms ...func(T) T) T {
	for _, transform := range transforms {
		value = transform(value)
	}
	return value
}

// Compose returns a reusable Apply pipeline.
func Compose[T any](transforms ...func(T) T) func(T) T {
	return func(value T) T {
		return Apply(value, transforms...)
	}
}

func Trim(s string) string {
	return strings.TrimSpace(s)
}

func TrimToLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// RemoveControlChars drops control characters except newlines and tabs.
func RemoveControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)
}

// SingleLine collapses every whitespace run, line breaks included, into one
// space and trims the ends.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeNewlines converts CRLF and CR line endings to LF and trims the ends.
func NormalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}

// MaxLength truncates s to at most n runes.
func MaxLength(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// SplitList splits a comma-separated value into trimmed, non-empty parts.
func SplitList(s string) []string {
	return CleanStringSlice(strings.Split(s, ","))
}

// CleanStringSlice trims every item, drops empty ones and removes
// case-insensitive duplicates, keeping the first spelling.
func CleanStringSlice(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		key := strings.ToLower(item)
		if item == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

// Tags normalises free-form tags to single-line lower case values.
func Tags(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, Apply(item, SingleLine, strings.ToLower))
	}
	return CleanStringSlice(out)
}
