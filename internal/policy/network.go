package policy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"syscall"
)

// ErrNetworkBlocked is returned, unwrapped, when the interceptor refuses an
// outbound connection attempt.
var ErrNetworkBlocked = fmt.Errorf("network egress blocked by policy")

// networkInterceptor refuses every outbound connection at the syscall
// level and counts attempts, so prove-offline can report a live, not just
// configured, guarantee.
type networkInterceptor struct {
	active        atomic.Bool
	attempts      atomic.Int64
	mu            sync.Mutex
	origTransport http.RoundTripper
}

var globalInterceptor = &networkInterceptor{}

// controlHook is installed as a net.Dialer.Control function; it refuses the
// connection before the syscall connects by returning an error itself,
// without using the RawConn.
func (n *networkInterceptor) controlHook(_, _ string, c syscall.RawConn) error {
	n.attempts.Add(1)
	return ErrNetworkBlocked
}

// Install activates the process-wide network guard: a dialer whose Control
// hook refuses every connect() is wired into http.DefaultTransport.
// Callers that build their own transport can use GuardedDialContext.
// Idempotent.
func Install() {
	if globalInterceptor.active.Swap(true) {
		return
	}
	dialer := &net.Dialer{Control: globalInterceptor.controlHook}
	transport := &http.Transport{
		DialContext: dialer.DialContext,
	}
	globalInterceptor.mu.Lock()
	globalInterceptor.origTransport = http.DefaultTransport
	globalInterceptor.mu.Unlock()
	http.DefaultTransport = transport
}

// Remove deactivates the network guard and restores the previous default
// transport. Safe to call even if Install was never called.
func Remove() {
	if !globalInterceptor.active.Swap(false) {
		return
	}
	globalInterceptor.mu.Lock()
	defer globalInterceptor.mu.Unlock()
	if globalInterceptor.origTransport != nil {
		http.DefaultTransport = globalInterceptor.origTransport
	}
}

// Active reports whether the network guard is currently installed.
func Active() bool {
	return globalInterceptor.active.Load()
}

// Attempts returns the number of outbound connection attempts refused
// since the process started; Install does not reset the count.
func Attempts() int64 {
	return globalInterceptor.attempts.Load()
}

// GuardedDialContext is a DialContext function that always refuses,
// suitable for wiring into any transport the guard hands out.
func GuardedDialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	globalInterceptor.attempts.Add(1)
	return nil, ErrNetworkBlocked
}
