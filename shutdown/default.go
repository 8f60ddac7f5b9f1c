package shutdown

import (
	"sync"

	"github.com/pathkit/pathkit/filesystem"
)

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry for the process, creating it and installing its
// exit hook the first time it is called. Code that controls its own lifecycle
// should construct a Registry with NewRegistry instead.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(filesystem.OS{})
		defaultRegistry.Hook()
	})
	return defaultRegistry
}

// DeleteOnShutdown registers the path with the process registry. The path is
// deleted when the process exits, after every path registered later than it.
// Directories are only removed if they are empty by then.
func DeleteOnShutdown(p string) error {
	return Default().Register(p)
}
