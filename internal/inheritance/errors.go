package inheritance

import (
	"errors"

	ferrors "git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

var (
	// ErrReferenceNotFound is returned when a (file, ref) pair cannot be located.
	ErrReferenceNotFound = errors.New("inherited content not found")
	// ErrDuplicateRef is returned when a file defines the same ref twice.
	ErrDuplicateRef = errors.New("duplicate content ref")
	// ErrCyclicInheritance is returned when a unit inherits from itself, directly or transitively.
	ErrCyclicInheritance = errors.New("cyclic inheritance")
	// ErrUnresolved is returned when reading fields of a unit whose base is not merged yet.
	ErrUnresolved = errors.New("content unit is not resolved")
	// ErrInvalidDocument is returned for null or malformed content documents.
	ErrInvalidDocument = errors.New("invalid content document")
	// ErrUnrenderedToken is returned when replacement tokens remain after rendering.
	ErrUnrenderedToken = errors.New("unresolved replacement token")
)

func inheritanceError(sentinel error, msg, file, ref string) error {
	return ferrors.WrapError(sentinel, ferrors.CategoryInheritance, msg).
		WithContext("file", file).
		WithContext("ref", ref).
		Build()
}

func documentError(cause error, msg, file string) error {
	return ferrors.WrapError(errors.Join(ErrInvalidDocument, cause), ferrors.CategoryContent, msg).
		WithContext("file", file).
		Build()
}

func renderError(cause error, file, ref string) error {
	return ferrors.WrapError(errors.Join(ErrUnrenderedToken, cause), ferrors.CategoryContent, "render replacement tokens").
		WithContext("file", file).
		WithContext("ref", ref).
		Build()
}
