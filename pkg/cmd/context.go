package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// shutdownGrace is how long a command gets to wind down after the first
// interrupt before the process exits anyway.
const shutdownGrace = 30 * time.Second

var (
	processContext     context.Context
	processContextOnce sync.Once
)

// ProcessContext returns a context that is cancelled on the first SIGINT,
// SIGTERM or SIGHUP. A second signal, or the grace period running out,
// terminates the process.
func ProcessContext() context.Context {
	processContextOnce.Do(func() {
		var cancel context.CancelFunc
		processContext, cancel = context.WithCancel(context.Background())

		notify := make(chan os.Signal, 2)
		signal.Notify(notify, os.Interrupt, syscall.SIGHUP, syscall.SIGTERM)
		go func() {
			defer signal.Stop(notify)

			<-notify
			cancel()

			select {
			case <-time.After(shutdownGrace):
				fmt.Fprintln(os.Stderr, "timed out waiting for cf-bottom to stop, terminating")
			case <-notify:
				fmt.Fprintln(os.Stderr, "interrupted again, terminating")
			}
			os.Exit(-1)
		}()
	})
	return processContext
}
