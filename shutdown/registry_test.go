package shutdown

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"emperror.dev/errors"
	. "github.com/franela/goblin"

	"github.com/pathkit/pathkit/filesystem"
)

// recordingDeleter records every path it is asked to delete, failing or
// panicking for the configured paths.
type recordingDeleter struct {
	mu      sync.Mutex
	deleted []string
	fail    map[string]bool
	panics  map[string]bool
}

func (d *recordingDeleter) DeleteIfExists(p string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deleted = append(d.deleted, filepath.Base(p))
	if d.panics[p] {
		panic("deleter exploded")
	}
	if d.fail[p] {
		return false, errors.New("device or resource busy")
	}
	return true, nil
}

func TestRegistry(t *testing.T) {
	g := Goblin(t)

	var dir string
	var d *recordingDeleter
	var r *Registry

	path := func(name string) string {
		return filepath.Join(dir, name)
	}

	setup := func() {
		dir, _ = os.MkdirTemp(os.TempDir(), "pathkit")
		d = &recordingDeleter{fail: make(map[string]bool), panics: make(map[string]bool)}
		r = NewRegistry(d)
	}
	teardown := func() {
		_ = os.RemoveAll(dir)
	}

	g.Describe("Register", func() {
		g.BeforeEach(setup)
		g.AfterEach(teardown)

		g.It("keeps paths in registration order", func() {
			for _, n := range []string{"a", "b", "c"} {
				g.Assert(r.Register(path(n))).IsNil()
			}
			g.Assert(r.Paths()).Equal([]string{path("a"), path("b"), path("c")})
			g.Assert(r.Len()).Equal(3)
		})

		g.It("ignores a path that is already registered", func() {
			g.Assert(r.Register(path("a"))).IsNil()
			g.Assert(r.Register(path("b"))).IsNil()
			g.Assert(r.Register(path("a"))).IsNil()
			g.Assert(r.Register(path("b") + "/")).IsNil()
			g.Assert(r.Paths()).Equal([]string{path("a"), path("b")})
		})

		g.It("stores relative paths as absolute paths", func() {
			wd, _ := os.Getwd()
			g.Assert(r.Register("relative")).IsNil()
			g.Assert(r.Paths()).Equal([]string{filepath.Join(wd, "relative")})
		})

		g.It("does not require the path to exist", func() {
			g.Assert(r.Register(path("missing"))).IsNil()
			r.Finalize()
			g.Assert(d.deleted).Equal([]string{"missing"})
		})

		g.It("accepts registrations from many goroutines", func() {
			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_ = r.Register(path(fmt.Sprintf("file-%d", i)))
					_ = r.Register(path("shared"))
				}(i)
			}
			wg.Wait()
			g.Assert(r.Len()).Equal(51)
		})
	})

	g.Describe("Finalize", func() {
		g.BeforeEach(setup)
		g.AfterEach(teardown)

		g.It("deletes paths in reverse registration order", func() {
			for _, n := range []string{"a", "b", "c"} {
				g.Assert(r.Register(path(n))).IsNil()
			}
			r.Finalize()
			g.Assert(d.deleted).Equal([]string{"c", "b", "a"})
			g.Assert(r.State()).Equal(StateClosed)
			g.Assert(r.Len()).Equal(0)
		})

		g.It("only deletes anything the first time it is called", func() {
			g.Assert(r.Register(path("a"))).IsNil()
			r.Finalize()
			r.Finalize()
			g.Assert(d.deleted).Equal([]string{"a"})
		})

		g.It("continues past paths that cannot be deleted", func() {
			for _, n := range []string{"a", "b", "c"} {
				g.Assert(r.Register(path(n))).IsNil()
			}
			d.fail[path("b")] = true
			r.Finalize()
			g.Assert(d.deleted).Equal([]string{"c", "b", "a"})
		})

		g.It("continues past a deleter that panics", func() {
			for _, n := range []string{"a", "b", "c"} {
				g.Assert(r.Register(path(n))).IsNil()
			}
			d.panics[path("b")] = true
			r.Finalize()
			g.Assert(d.deleted).Equal([]string{"c", "b", "a"})
			g.Assert(r.State()).Equal(StateClosed)
		})

		g.It("makes a second caller wait for the running pass", func() {
			gd := newGatedDeleter(3)
			r = NewRegistry(gd)
			for _, n := range []string{"a", "b", "c"} {
				g.Assert(r.Register(path(n))).IsNil()
			}

			go r.Finalize()
			<-gd.started

			second := make(chan struct{})
			go func() {
				r.Finalize()
				close(second)
			}()

			select {
			case <-second:
				g.Fail("second call returned while deletions were still pending")
			case <-time.After(50 * time.Millisecond):
			}
			g.Assert(r.State()).Equal(StateFinalizing)

			close(gd.release)
			<-second
			g.Assert(gd.count()).Equal(3)
			g.Assert(r.State()).Equal(StateClosed)
		})

		g.It("either deletes or rejects a registration racing the pass", func() {
			const n = 100
			errs := make([]error, n)
			start := make(chan struct{})

			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					errs[i] = r.Register(path(fmt.Sprintf("race-%d", i)))
				}(i)
			}
			close(start)
			r.Finalize()
			wg.Wait()

			deleted := make(map[string]bool)
			for _, name := range d.deleted {
				deleted[name] = true
			}
			for i, err := range errs {
				name := fmt.Sprintf("race-%d", i)
				if err == nil {
					g.Assert(deleted[name]).IsTrue()
					continue
				}
				g.Assert(errors.Is(err, ErrShutdownInProgress)).IsTrue()
				g.Assert(deleted[name]).IsFalse()
			}
			g.Assert(len(d.deleted) <= n).IsTrue()
		})

		g.It("rejects registrations once it has run", func() {
			r.Finalize()

			err := r.Register(path("late"))
			g.Assert(err).IsNotNil()
			g.Assert(errors.Is(err, ErrShutdownInProgress)).IsTrue()

			var ise *IllegalStateError
			g.Assert(errors.As(err, &ise)).IsTrue()
			g.Assert(ise.Path).Equal(path("late"))
			g.Assert(ise.State).Equal(StateClosed)

			r.Finalize()
			g.Assert(len(d.deleted)).Equal(0)
		})

		g.It("removes a directory after the files registered inside of it", func() {
			r = NewRegistry(filesystem.OS{})
			sub := path("sub")
			g.Assert(os.Mkdir(sub, 0o755)).IsNil()
			g.Assert(r.Register(sub)).IsNil()
			for _, n := range []string{"one", "two"} {
				g.Assert(os.WriteFile(filepath.Join(sub, n), []byte("x"), 0o644)).IsNil()
				g.Assert(r.Register(filepath.Join(sub, n))).IsNil()
			}

			r.Finalize()
			g.Assert(filesystem.Exists(sub)).IsFalse()
		})

		g.It("leaves a directory that still has unregistered contents", func() {
			r = NewRegistry(filesystem.OS{})
			sub := path("sub")
			g.Assert(os.Mkdir(sub, 0o755)).IsNil()
			g.Assert(os.WriteFile(filepath.Join(sub, "kept"), []byte("x"), 0o644)).IsNil()
			g.Assert(r.Register(sub)).IsNil()

			r.Finalize()
			g.Assert(filesystem.Exists(filepath.Join(sub, "kept"))).IsTrue()
			g.Assert(r.State()).Equal(StateClosed)
		})
	})

	g.Describe("TempDir", func() {
		g.BeforeEach(setup)
		g.AfterEach(teardown)

		g.It("creates and registers a directory", func() {
			r = NewRegistry(filesystem.OS{})
			name, err := r.TempDir(dir, "tmp-*")
			g.Assert(err).IsNil()
			g.Assert(filesystem.IsDirectory(name)).IsTrue()
			g.Assert(r.Paths()).Equal([]string{name})

			f, err := r.TempFile(name, "file-*")
			g.Assert(err).IsNil()
			g.Assert(f.Close()).IsNil()

			r.Finalize()
			g.Assert(filesystem.Exists(f.Name())).IsFalse()
			g.Assert(filesystem.Exists(name)).IsFalse()
		})

		g.It("does not leave anything behind once the registry is closed", func() {
			r.Finalize()

			_, err := r.TempDir(dir, "tmp-*")
			g.Assert(errors.Is(err, ErrShutdownInProgress)).IsTrue()
			_, err = r.TempFile(dir, "file-*")
			g.Assert(errors.Is(err, ErrShutdownInProgress)).IsTrue()

			entries, _ := os.ReadDir(dir)
			g.Assert(len(entries)).Equal(0)
		})
	})
}
