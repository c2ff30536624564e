package depcache

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/docweave/internal/logfields"
	"git.home.luguber.info/inful/docweave/internal/task"
)

// HashChecker decides staleness by content. A dependency counts as current
// only when every target has a recorded fingerprint for it that matches its
// content now. Any other dependency falls back to modification times.
type HashChecker struct {
	Store *Store
}

var _ task.Checker = HashChecker{}

func (c HashChecker) Stale(targets, dependencies []string) bool {
	oldest, ok := task.OldestTarget(targets)
	if !ok {
		return true
	}
	ctx := context.Background()
	for _, dep := range dependencies {
		switch c.compare(ctx, targets, dep) {
		case matched:
		case changed:
			return true
		case unknown:
			if task.DependencyNewer(dep, oldest) {
				return true
			}
		}
	}
	return false
}

type verdict int

const (
	unknown verdict = iota
	matched
	changed
)

func (c HashChecker) compare(ctx context.Context, targets []string, dep string) verdict {
	current := ""
	for _, target := range targets {
		entry, known, err := c.Store.Lookup(ctx, target, dep)
		if err != nil {
			slog.Warn("Dependency cache lookup failed", logfields.File(dep), logfields.Error(err))
			return unknown
		}
		if !known {
			return unknown
		}
		if current == "" {
			if current, err = Fingerprint(dep); err != nil {
				return changed
			}
		}
		if current != entry.Fingerprint {
			return changed
		}
	}
	return matched
}
