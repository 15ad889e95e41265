// Package sanitizer normalises user input before validation and storage.
//
// Helpers are small string or slice transforms that combine with Apply and
// Compose into pipelines:
//
//	title := sanitizer.Apply(in.Title, sanitizer.SingleLine, sanitizer.RemoveControlChars)
//	tags := sanitizer.Tags(in.Tags)
package sanitizer
