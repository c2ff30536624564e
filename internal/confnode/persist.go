package confnode

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/gofrs/flock"

	ferrors "git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

// ErrLocked is returned when the persisting lock could not be taken in time.
var ErrLocked = errors.New("configuration file is locked")

type persistOptions struct {
	lock       bool
	timeout    time.Duration
	retryDelay time.Duration
}

// PersistOption configures Persisting.
type PersistOption func(*persistOptions)

// WithFileLock serializes concurrent Persisting calls on the same path
// through an advisory lock on "<path>.lock". A zero timeout waits until ctx
// is done.
func WithFileLock(timeout time.Duration) PersistOption {
	return func(o *persistOptions) {
		o.lock = true
		o.timeout = timeout
	}
}

// Persisting loads the document at path into a node of schema, hands it to
// fn and writes the node back when fn returns. A missing file is created as
// an empty document first.
//
// The write-back happens on every exit path: when fn returns an error the
// mutated node is still written and both errors are returned joined; when fn
// panics the node is written and the panic continues.
func Persisting(ctx context.Context, path string, schema *Schema, fn func(*Node) error, opts ...PersistOption) (err error) {
	o := persistOptions{retryDelay: 50 * time.Millisecond}
	for _, opt := range opts {
		opt(&o)
	}

	if o.lock {
		lockCtx := ctx
		if o.timeout > 0 {
			var cancel context.CancelFunc
			lockCtx, cancel = context.WithTimeout(ctx, o.timeout)
			defer cancel()
		}
		fl := flock.New(path + ".lock")
		locked, lerr := fl.TryLockContext(lockCtx, o.retryDelay)
		if lerr != nil || !locked {
			return ferrors.WrapError(errors.Join(ErrLocked, lerr), ferrors.CategoryFileSystem, "cannot lock "+path).
				WithContext("path", path).
				Retryable().
				Build()
		}
		defer func() { _ = fl.Unlock() }()
	}

	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		if err := New(schema).Write(path); err != nil {
			return err
		}
	}

	n := New(schema)
	if err := n.Ingest(path); err != nil {
		return err
	}

	defer func() {
		r := recover()
		werr := n.Write(path)
		if r != nil {
			panic(r)
		}
		if werr != nil {
			err = errors.Join(err, werr)
		}
	}()
	return fn(n)
}
