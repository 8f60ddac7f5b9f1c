package shutdown

import (
	"fmt"
	"path/filepath"
	"sync"

	"emperror.dev/errors"
	"github.com/apex/log"

	"github.com/pathkit/pathkit/metrics"
)

// ErrShutdownInProgress is matched by the error returned when a path is
// registered after finalization has started.
var ErrShutdownInProgress = errors.Sentinel("shutdown: cannot register path, shutdown in progress")

type State int32

const (
	// StateOpen is the initial state, where paths may be registered.
	StateOpen State = iota
	// StateFinalizing is entered exactly once when the deletion pass starts.
	StateFinalizing
	// StateClosed is terminal; every registered path has been processed.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateFinalizing:
		return "finalizing"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// IllegalStateError is returned when a path is registered with a registry that
// is no longer accepting registrations.
type IllegalStateError struct {
	Path  string
	State State
}

func (e *IllegalStateError) Error() string {
	return fmt.Sprintf("shutdown: cannot register [%s] for deletion, registry is %s", e.Path, e.State)
}

func (e *IllegalStateError) Is(target error) bool {
	return target == ErrShutdownInProgress
}

// Deleter removes a single path if it exists. filesystem.OS satisfies it.
type Deleter interface {
	DeleteIfExists(p string) (bool, error)
}

// Registry tracks paths that should be deleted when the process exits. Paths
// are deleted in the reverse of the order they were registered in, so a
// directory registered before the files created inside of it is removed after
// them.
type Registry struct {
	mu      sync.Mutex
	state   State
	paths   []string
	index   map[string]struct{}
	deleter Deleter
	// done is closed once the deletion pass has finished.
	done chan struct{}

	hookOnce sync.Once
	hook     *Hook
}

// NewRegistry returns a new open registry that removes paths using the given
// deleter.
func NewRegistry(d Deleter) *Registry {
	return &Registry{
		deleter: d,
		index:   make(map[string]struct{}),
		done:    make(chan struct{}),
	}
}

// Register marks a path for deletion when the registry is finalized. The path
// does not need to exist yet. Registering the same path more than once has no
// further effect and keeps its original position. Once finalization has begun
// an error matching ErrShutdownInProgress is returned and the path will not be
// deleted.
func (r *Registry) Register(p string) error {
	p = normalize(p)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateOpen {
		return errors.WithStack(&IllegalStateError{Path: p, State: r.state})
	}
	if _, ok := r.index[p]; ok {
		return nil
	}
	r.index[p] = struct{}{}
	r.paths = append(r.paths, p)
	metrics.ShutdownRegistered.Inc()
	return nil
}

// State returns the current lifecycle state of the registry.
func (r *Registry) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Len returns the number of paths waiting to be deleted.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

// Paths returns a copy of the registered paths in registration order.
func (r *Registry) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.paths))
	copy(out, r.paths)
	return out
}

// Finalize closes the registry to new registrations and deletes every
// registered path, last registered first. A path that cannot be deleted is
// logged and the remaining paths are still attempted. Only the first call does
// anything; later calls block until that pass has finished and then return.
//
// The switch out of the open state happens under the same lock Register uses,
// so a concurrent registration is either part of the snapshot or rejected.
func (r *Registry) Finalize() {
	r.mu.Lock()
	if r.state != StateOpen {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.state = StateFinalizing
	snapshot := r.paths
	r.paths = nil
	r.index = nil
	r.mu.Unlock()

	metrics.ShutdownRegistered.Sub(float64(len(snapshot)))

	logger := log.WithField("subsystem", "shutdown")
	logger.WithField("paths", len(snapshot)).Debug("deleting paths registered for removal on shutdown")
	for i := len(snapshot) - 1; i >= 0; i-- {
		r.delete(snapshot[i])
	}

	r.mu.Lock()
	r.state = StateClosed
	r.mu.Unlock()
	close(r.done)
}

// delete removes a single path, recovering from a panicking deleter so that a
// single bad entry cannot stop the rest of the pass.
func (r *Registry) delete(p string) {
	logger := log.WithField("subsystem", "shutdown").WithField("path", p)
	defer func() {
		if v := recover(); v != nil {
			metrics.DeleteFailures.WithLabelValues(metrics.SourceShutdown).Inc()
			logger.WithField("error", errors.Errorf("panic: %v", v)).Error("recovered from panic while deleting path on shutdown")
		}
	}()

	ok, err := r.deleter.DeleteIfExists(p)
	if err != nil {
		metrics.DeleteFailures.WithLabelValues(metrics.SourceShutdown).Inc()
		logger.WithField("error", err).Warn("failed to delete path on shutdown")
		return
	}
	if ok {
		metrics.EntriesDeleted.WithLabelValues(metrics.SourceShutdown).Inc()
		logger.Debug("deleted path on shutdown")
	}
}

// normalize makes relative paths absolute so that a later change of working
// directory does not change what gets deleted, and so that two spellings of
// the same path collapse into one registration.
func normalize(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
