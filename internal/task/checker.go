package task

import (
	"os"
	"time"
)

// Checker decides whether targets are stale relative to their dependencies.
type Checker interface {
	Stale(targets, dependencies []string) bool
}

// MtimeChecker compares modification times. Targets are stale when any is
// missing or unreadable, or when any dependency is missing, unreadable, or
// newer than the oldest target.
type MtimeChecker struct{}

func (MtimeChecker) Stale(targets, dependencies []string) bool {
	oldest, ok := OldestTarget(targets)
	if !ok {
		return true
	}
	for _, dep := range dependencies {
		if DependencyNewer(dep, oldest) {
			return true
		}
	}
	return false
}

// OldestTarget returns the earliest modification time among targets. It
// reports false when any target cannot be stat'ed.
func OldestTarget(targets []string) (time.Time, bool) {
	var oldest time.Time
	for i, target := range targets {
		st, err := os.Stat(target)
		if err != nil {
			return time.Time{}, false
		}
		if i == 0 || st.ModTime().Before(oldest) {
			oldest = st.ModTime()
		}
	}
	return oldest, len(targets) > 0
}

// DependencyNewer reports whether dep is missing, unreadable, or modified
// after t.
func DependencyNewer(dep string, t time.Time) bool {
	st, err := os.Stat(dep)
	if err != nil {
		return true
	}
	return st.ModTime().After(t)
}
