package shutdown

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopDeleter struct {
	deleted []string
}

func (d *nopDeleter) DeleteIfExists(p string) (bool, error) {
	d.deleted = append(d.deleted, p)
	return true, nil
}

// gatedDeleter blocks every deletion until release is closed, announcing each
// one on started first.
type gatedDeleter struct {
	mu      sync.Mutex
	deleted []string
	started chan struct{}
	release chan struct{}
}

func newGatedDeleter(n int) *gatedDeleter {
	return &gatedDeleter{started: make(chan struct{}, n), release: make(chan struct{})}
}

func (d *gatedDeleter) DeleteIfExists(p string) (bool, error) {
	d.started <- struct{}{}
	<-d.release
	d.mu.Lock()
	d.deleted = append(d.deleted, p)
	d.mu.Unlock()
	return true, nil
}

func (d *gatedDeleter) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.deleted)
}

func TestHook_SignalDuringRun(t *testing.T) {
	d := newGatedDeleter(5)
	r := NewRegistry(d)
	for i := 0; i < 5; i++ {
		require.NoError(t, r.Register(fmt.Sprintf("/tmp/pathkit-hook-%d", i)))
	}

	exited := make(chan int, 1)
	h := newHook(r, func(int) { exited <- d.count() })
	h.listen()

	ran := make(chan struct{})
	go func() {
		h.Run()
		close(ran)
	}()
	<-d.started

	h.signals <- syscall.SIGTERM
	select {
	case n := <-exited:
		t.Fatalf("exit called after %d of 5 deletions", n)
	case <-time.After(50 * time.Millisecond):
	}

	close(d.release)
	<-ran
	h.wg.Wait()

	select {
	case n := <-exited:
		assert.Equal(t, 5, n)
	default:
	}
	assert.Equal(t, 5, d.count())
	assert.Equal(t, StateClosed, r.State())
}

func TestHook_Signal(t *testing.T) {
	d := &nopDeleter{}
	r := NewRegistry(d)
	require.NoError(t, r.Register("/tmp/pathkit-hook-test"))

	code := -1
	h := newHook(r, func(c int) { code = c })
	h.listen()

	h.signals <- syscall.SIGTERM
	h.wg.Wait()

	assert.Equal(t, 143, code)
	assert.Equal(t, StateClosed, r.State())
	assert.Equal(t, []string{"/tmp/pathkit-hook-test"}, d.deleted)
}

func TestHook_Run(t *testing.T) {
	d := &nopDeleter{}
	r := NewRegistry(d)
	require.NoError(t, r.Register("/tmp/pathkit-hook-test"))

	exited := false
	h := newHook(r, func(int) { exited = true })
	h.listen()

	h.Run()
	h.Run()
	h.wg.Wait()

	assert.False(t, exited)
	assert.Len(t, d.deleted, 1)
	assert.Equal(t, StateClosed, r.State())
}

func TestHook_Exit(t *testing.T) {
	r := NewRegistry(&nopDeleter{})

	code := -1
	h := newHook(r, func(c int) { code = c })
	h.Exit(3)

	assert.Equal(t, 3, code)
	assert.Equal(t, StateClosed, r.State())
}

func TestRegistry_Hook(t *testing.T) {
	r := NewRegistry(&nopDeleter{})

	h := r.Hook()
	assert.Same(t, h, r.Hook())
	h.Run()
	h.wg.Wait()
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 130, exitCode(os.Interrupt))
	assert.Equal(t, 143, exitCode(syscall.SIGTERM))
}
