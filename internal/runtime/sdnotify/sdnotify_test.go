package sdnotify

import (
	"context"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	logx "duyurubot/pkg/logx"
)

func TestNoSystemdIsNoop(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	t.Setenv("WATCHDOG_USEC", "")

	n := New(logx.Nop())
	if n.Ready() {
		t.Fatal("Ready() = true without NOTIFY_SOCKET")
	}
	if d := n.WatchdogInterval(); d != 0 {
		t.Fatalf("WatchdogInterval = %v, want 0", d)
	}
	if err := n.RunWatchdog(context.Background()); err != nil {
		t.Fatalf("RunWatchdog = %v, want nil", err)
	}
}

func TestNotifySocket(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "notify.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: sock, Net: "unixgram"})
	if err != nil {
		t.Skipf("unixgram not available: %v", err)
	}
	defer conn.Close()
	t.Setenv("NOTIFY_SOCKET", sock)

	n := New(logx.Nop())
	if !n.Ready() {
		t.Fatal("Ready() = false with NOTIFY_SOCKET set")
	}
	buf := make([]byte, 64)
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	k, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := string(buf[:k]); got != "READY=1" {
		t.Fatalf("state = %q, want READY=1", got)
	}
}

func TestWatchdogInterval(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", strconv.Itoa(int((4 * time.Second).Microseconds())))
	t.Setenv("WATCHDOG_PID", "")

	if d := New(logx.Nop()).WatchdogInterval(); d != 2*time.Second {
		t.Fatalf("WatchdogInterval = %v, want 2s", d)
	}
}
