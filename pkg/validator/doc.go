// Package validator builds input validation from small composable rules.
//
// Each rule pairs a check with the error reported when it fails. Apply runs
// every rule and collects the failures into a single ValidationErrors value:
//
//	err := validator.Apply(
//		validator.Required("title", in.Title),
//		validator.MaxLen("title", in.Title, 200),
//		validator.OneOf("mood", in.Mood, moods),
//	)
//	if validator.IsValidationError(err) {
//		// report field errors to the caller
//	}
package validator
