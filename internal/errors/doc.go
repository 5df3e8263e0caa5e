// Package errors provides structured, actionable error messages for the
// persistd command.
//
// Each error has a unique code (e.g., "P101") that maps to:
//   - A short message describing the error
//   - A detailed explanation
//   - A documentation URL
//
// # Error Categories
//
//   - config: configuration file and environment problems
//   - storage: backend failures and undecodable values
//   - server: HTTP listener problems
//   - cli: bad arguments
//
// # Usage
//
//	err := errors.New("P101").
//	    WithDetail("unknown backend \"redis\"").
//	    WithSuggestion("Use one of: memory, sqlite, s3")
//
//	fmt.Fprint(os.Stderr, err.Format())
package errors
