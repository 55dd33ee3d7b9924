// Package netutil waits for local TCP listeners, such as the local end of a
// port-forward.
package netutil

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	// ForwardReadyTimeout bounds the wait for a port-forward listener.
	ForwardReadyTimeout = 10 * time.Second

	pollInterval = 100 * time.Millisecond
	dialTimeout  = time.Second
)

// WaitForPort waits until a TCP connection to host:port succeeds, the timeout
// expires or ctx is done.
func WaitForPort(ctx context.Context, host string, port int, timeout time.Duration) error {
	address := net.JoinHostPort(host, strconv.Itoa(port))
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var dialer net.Dialer
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		dialCtx, dialCancel := context.WithTimeout(ctx, dialTimeout)
		conn, err := dialer.DialContext(dialCtx, "tcp", address)
		dialCancel()
		if err == nil {
			_ = conn.Close()
			return nil
		}

		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("timeout waiting for %s", address)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
