package task

import (
	"context"
	"fmt"
)

// Args carries the arguments of a job: a positional list or a keyword map.
type Args struct {
	Positional []any
	Keyword    map[string]any
}

// Positional builds positional arguments.
func Positional(v ...any) Args { return Args{Positional: v} }

// Keyword builds keyword arguments.
func Keyword(kw map[string]any) Args { return Args{Keyword: kw} }

// Empty reports whether no arguments were given.
func (a Args) Empty() bool { return len(a.Positional) == 0 && len(a.Keyword) == 0 }

// Variadic adapts a function over positional arguments.
func Variadic(fn func(args ...any) (any, error)) Job {
	return func(_ context.Context, a Args) (any, error) {
		if len(a.Keyword) > 0 {
			return nil, fmt.Errorf("%w: keyword arguments passed to positional job", ErrArgs)
		}
		return fn(a.Positional...)
	}
}

// Keywords adapts a function over keyword arguments.
func Keywords(fn func(kw map[string]any) (any, error)) Job {
	return func(_ context.Context, a Args) (any, error) {
		if len(a.Positional) > 0 {
			return nil, fmt.Errorf("%w: positional arguments passed to keyword job", ErrArgs)
		}
		kw := a.Keyword
		if kw == nil {
			kw = map[string]any{}
		}
		return fn(kw)
	}
}
