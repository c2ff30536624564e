package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, 0},
		{"validation", ValidationError("bad flag").Build(), 2},
		{"config", ConfigError("bad config").Build(), 7},
		{"wrapped inheritance", fmt.Errorf("resolve: %w", InheritanceError("cycle").Build()), 9},
		{"pool failure", PoolError("2 tasks failed").Build(), 11},
		{"unclassified", errors.New("unknown"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, adapter.ExitCodeFor(tt.err))
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, nil)
	verbose := NewCLIErrorAdapter(true, nil)

	err := ConfigError("unknown attribute").WithCause(errors.New("colour")).Build()

	require.Empty(t, quiet.FormatError(nil))
	require.Equal(t, "Error: unknown attribute: colour", quiet.FormatError(err))
	require.Equal(t, err.Error(), verbose.FormatError(err))
	require.Equal(t, "Internal error occurred (use -v for details)", quiet.FormatError(InternalError("boom").Build()))
	require.Equal(t, "Error: plain", quiet.FormatError(errors.New("plain")))
}
