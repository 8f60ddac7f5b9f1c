package shutdown

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/apex/log"
)

// Hook runs a registry's finalization when the process is about to exit. Go
// has no exit hook of its own, so the hook covers the two ways a process ends:
// returning from main, where Run should be deferred, and being interrupted or
// terminated, where the hook finalizes and then exits itself.
type Hook struct {
	registry *Registry
	exit     func(code int)

	signals  chan os.Signal
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Hook returns the exit hook for this registry, installing it the first time
// it is called. Every call returns the same hook.
func (r *Registry) Hook() *Hook {
	r.hookOnce.Do(func() {
		r.hook = newHook(r, os.Exit)
		signal.Notify(r.hook.signals, os.Interrupt, syscall.SIGTERM)
		r.hook.listen()
	})
	return r.hook
}

func newHook(r *Registry, exit func(int)) *Hook {
	return &Hook{
		registry: r,
		exit:     exit,
		signals:  make(chan os.Signal, 1),
		stop:     make(chan struct{}),
	}
}

func (h *Hook) listen() {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		select {
		case sig := <-h.signals:
			log.WithField("signal", sig.String()).Debug("received signal, running shutdown hook")
			h.Run()
			h.exit(exitCode(sig))
		case <-h.stop:
		}
	}()
}

// Run finalizes the registry. It is safe to call any number of times, only the
// first call deletes anything.
func (h *Hook) Run() {
	h.registry.Finalize()
	h.detach()
}

// Exit runs the hook and then terminates the process with the given code.
func (h *Hook) Exit(code int) {
	h.Run()
	h.exit(code)
}

// detach stops listening for signals. The registry is already finalized at
// this point so a signal has nothing left to do.
func (h *Hook) detach() {
	h.stopOnce.Do(func() {
		signal.Stop(h.signals)
		close(h.stop)
	})
}

// exitCode follows the shell convention of 128 plus the signal number.
func exitCode(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return 128 + int(s)
	}
	return 1
}
