// Package errors provides the classified error primitives shared by docweave packages.
//
// Domain packages declare sentinel errors and wrap them with fmt.Errorf("...: %w");
// boundaries that need an exit code or structured log attach a ClassifiedError via
// the fluent builder:
//
//	err := errors.ConfigError("unknown attribute").
//		WithContext("field", name).
//		WithCause(ErrUnknownField).
//		Build()
//
// The CLI adapter maps categories to process exit codes.
package errors
