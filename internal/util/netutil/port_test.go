package netutil

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"
)

func listenerPort(t *testing.T, ln net.Listener) int {
	t.Helper()
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("Failed to split host/port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("Failed to parse port: %v", err)
	}
	return port
}

func TestWaitForPort_Success(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to start listener: %v", err)
	}
	defer ln.Close()

	if err := WaitForPort(context.Background(), "127.0.0.1", listenerPort(t, ln), 2*time.Second); err != nil {
		t.Errorf("WaitForPort failed for open port: %v", err)
	}
}

func TestWaitForPort_Timeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to pick free port: %v", err)
	}
	port := listenerPort(t, ln)
	ln.Close()

	start := time.Now()
	timeout := 300 * time.Millisecond
	err = WaitForPort(context.Background(), "127.0.0.1", port, timeout)
	if err == nil {
		t.Fatal("Expected timeout error, got nil")
	}
	if elapsed := time.Since(start); elapsed < timeout {
		t.Errorf("Returned before timeout: %v < %v", elapsed, timeout)
	}
}

func TestWaitForPort_Cancelled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to pick free port: %v", err)
	}
	port := listenerPort(t, ln)
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = WaitForPort(ctx, "127.0.0.1", port, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestWaitForPort_DelayedStart(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to pick free port: %v", err)
	}
	port := listenerPort(t, ln)
	address := ln.Addr().String()
	ln.Close()

	go func() {
		time.Sleep(300 * time.Millisecond)
		ln, err := net.Listen("tcp", address)
		if err == nil {
			time.Sleep(time.Second)
			ln.Close()
		}
	}()

	if err := WaitForPort(context.Background(), "127.0.0.1", port, 3*time.Second); err != nil {
		t.Errorf("WaitForPort failed for delayed start on port %d: %v", port, err)
	}
}
