// Package signal ties SIGINT/SIGTERM to context cancellation and lets
// short critical sections (such as writing the evaluation report) defer that
// cancellation until they finish.
package signal

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var (
	mu sync.Mutex
	// blockCount tracks nested Critical/BlockSignals calls.
	blockCount int
	// pendingCancel is called once the last critical section exits.
	pendingCancel context.CancelFunc
)

// WithSignalCancel returns a context that is cancelled when SIGINT or SIGTERM is received.
// The returned cancel function should be called to clean up resources when done.
func WithSignalCancel(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
			mu.Lock()
			if blockCount > 0 {
				pendingCancel = cancel
				mu.Unlock()
				return
			}
			mu.Unlock()
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// BlockSignals defers signal-based cancellation until UnblockSignals.
// Calls can be nested.
func BlockSignals() {
	mu.Lock()
	defer mu.Unlock()
	blockCount++
}

// UnblockSignals re-enables signal-based cancellation, running any
// cancellation that arrived while blocked.
func UnblockSignals() {
	mu.Lock()
	defer mu.Unlock()
	if blockCount > 0 {
		blockCount--
	}
	if blockCount == 0 && pendingCancel != nil {
		pendingCancel()
		pendingCancel = nil
	}
}

// Critical runs fn with signals blocked.
func Critical(fn func() error) error {
	BlockSignals()
	defer UnblockSignals()
	return fn()
}
