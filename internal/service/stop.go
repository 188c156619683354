package service

import (
	"context"
	"errors"
)

// ErrStopped is returned when a guarded call is abandoned because its stop
// signal fired before the next attempt could be issued.
var ErrStopped = errors.New("stopped before issuing call")

type stopKey struct{}

// WithStop returns a copy of ctx carrying stop. Once stop is closed, calls
// run through a Guard with that context issue no further attempts; an
// attempt already in flight keeps running on ctx.
//
// This lets a caller detach in-flight calls from its own cancellation with
// context.WithoutCancel while still stopping retries.
func WithStop(ctx context.Context, stop <-chan struct{}) context.Context {
	return context.WithValue(ctx, stopKey{}, stop)
}

// Stopped reports whether the stop signal carried by ctx has fired.
func Stopped(ctx context.Context) bool {
	stop, _ := ctx.Value(stopKey{}).(<-chan struct{})
	if stop == nil {
		return false
	}
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

// untilStopped returns a context cancelled when ctx is done or its stop
// signal fires. It is used for waits between attempts.
func untilStopped(ctx context.Context) (context.Context, context.CancelFunc) {
	waitCtx, cancel := context.WithCancel(ctx)
	stop, _ := ctx.Value(stopKey{}).(<-chan struct{})
	if stop == nil {
		return waitCtx, cancel
	}
	go func() {
		select {
		case <-stop:
			cancel()
		case <-waitCtx.Done():
		}
	}()
	return waitCtx, cancel
}
