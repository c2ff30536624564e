package logfields

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"RunID", KeyRunID, "r1", RunID("r1")},
		{"Task", KeyTask, "write steps", Task("write steps")},
		{"PoolKind", KeyPoolKind, "thread", PoolKind("thread")},
		{"ContentType", KeyContentType, "steps", ContentType("steps")},
		{"File", KeyFile, "steps-install.yaml", File("steps-install.yaml")},
		{"Ref", KeyRef, "download", Ref("download")},
		{"Field", KeyField, "pool_size", Field("pool_size")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"ScheduleName", KeySchedule, "rebuild", ScheduleName("rebuild")},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.attrKey, c.attr.Key)
			require.Equal(t, c.attrVal, c.attr.Value.String())
		})
	}
}

func TestNumericAndErrorHelpers(t *testing.T) {
	require.Equal(t, int64(3), TaskIndex(3).Value.Int64())
	require.Equal(t, int64(8), PoolSize(8).Value.Int64())
	require.Equal(t, int64(2), Count(2).Value.Int64())
	require.InDelta(t, 1.5, DurationMS(1.5).Value.Float64(), 0.0001)
	require.Equal(t, "boom", Error(errors.New("boom")).Value.String())
	require.Empty(t, Error(nil).Value.String())
	require.Equal(t, KeyTarget, Target([]string{"a"}).Key)
	require.Equal(t, KeyDependency, Dependency(nil).Key)
}
