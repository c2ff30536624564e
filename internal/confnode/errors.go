package confnode

import (
	"errors"
	"strings"

	ferrors "git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

var (
	// ErrUnknownField is returned when assigning a name the schema does not declare.
	ErrUnknownField = errors.New("unknown configuration field")
	// ErrFieldNotFound is returned when reading a field that is neither stored nor computed.
	ErrFieldNotFound = errors.New("configuration field not found")
	// ErrInvalidValue wraps setter failures.
	ErrInvalidValue = errors.New("invalid configuration value")
	// ErrInvalidSource is returned by Ingest for sources that are neither a mapping nor an existing file.
	ErrInvalidSource = errors.New("invalid configuration source")
	// ErrUnsupportedFormat is returned for file extensions without a codec.
	ErrUnsupportedFormat = errors.New("unsupported configuration format")
	// ErrNoPath is returned by Write when neither an explicit nor a source path is known.
	ErrNoPath = errors.New("no output path for configuration")
	// ErrNoRoot is returned when a child node is created without its root.
	ErrNoRoot = errors.New("child configuration requires a root")
	// ErrDependencyCycle is returned when field dependencies cannot be ordered.
	ErrDependencyCycle = errors.New("circular field dependency")
)

func fieldError(sentinel error, schema, field, msg string) error {
	return ferrors.WrapError(sentinel, ferrors.CategoryConfig, msg).
		WithContext("schema", schema).
		WithContext("field", field).
		Build()
}

func setterError(schema, field string, cause error) error {
	return ferrors.WrapError(errors.Join(ErrInvalidValue, cause), ferrors.CategoryConfig, "invalid value for "+schema+"."+field).
		WithContext("schema", schema).
		WithContext("field", field).
		Build()
}

func sourceError(sentinel error, source string, cause error) error {
	err := sentinel
	if cause != nil {
		err = errors.Join(sentinel, cause)
	}
	return ferrors.WrapError(err, ferrors.CategoryConfig, "cannot ingest "+source).
		WithContext("source", source).
		Build()
}

func cycleError(schema string, fields []string) error {
	return ferrors.WrapError(ErrDependencyCycle, ferrors.CategoryConfig, "circular dependency between fields "+strings.Join(fields, ", ")).
		WithContext("schema", schema).
		Build()
}
