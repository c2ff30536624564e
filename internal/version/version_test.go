package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBanner(t *testing.T) {
	require.NotEmpty(t, Commit())
	require.Contains(t, String(), "docweave "+Version)
}

func TestCommitPrefersLinkerValue(t *testing.T) {
	prev := GitCommit
	t.Cleanup(func() { GitCommit = prev })
	GitCommit = "abc123"
	require.Equal(t, "abc123", Commit())
}
