// Package validator provides rule-based input validation.
//
// Rules are plain values pairing a check with the error to report; Apply runs
// all of them and returns ValidationErrors listing every failure:
//
//	err := validator.Apply(
//	    validator.RequiredString("name", in.Name),
//	    validator.ValidEmail("email", in.Email),
//	    validator.NonNegative("price", in.Price),
//	)
//	if validator.IsValidationError(err) { ... }
//
// ValidationErrors matches ErrValidationFailed through errors.Is, so callers
// that only care about the category do not need errors.As.
package validator
