package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID       = "run_id"
	KeyTask        = "task"
	KeyTaskIndex   = "task_index"
	KeyTarget      = "target"
	KeyDependency  = "dependency"
	KeyPoolKind    = "pool_kind"
	KeyPoolSize    = "pool_size"
	KeyContentType = "content_type"
	KeyFile        = "file"
	KeyRef         = "ref"
	KeyField       = "field"
	KeyPath        = "path"
	KeyCount       = "count"
	KeyDurationMS  = "duration_ms"
	KeySchedule    = "schedule_name"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr        { return slog.String(KeyRunID, id) }
func Task(desc string) slog.Attr       { return slog.String(KeyTask, desc) }
func TaskIndex(i int) slog.Attr        { return slog.Int(KeyTaskIndex, i) }
func Target(t []string) slog.Attr      { return slog.Any(KeyTarget, t) }
func Dependency(d []string) slog.Attr  { return slog.Any(KeyDependency, d) }
func PoolKind(k string) slog.Attr      { return slog.String(KeyPoolKind, k) }
func PoolSize(n int) slog.Attr         { return slog.Int(KeyPoolSize, n) }
func ContentType(n string) slog.Attr   { return slog.String(KeyContentType, n) }
func File(f string) slog.Attr          { return slog.String(KeyFile, f) }
func Ref(r string) slog.Attr           { return slog.String(KeyRef, r) }
func Field(name string) slog.Attr      { return slog.String(KeyField, name) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Count(n int) slog.Attr            { return slog.Int(KeyCount, n) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func ScheduleName(n string) slog.Attr  { return slog.String(KeySchedule, n) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
