// Package sdnotify reports service state to systemd (Type=notify units).
// Every call is a no-op when the process was not started by systemd.
package sdnotify

import (
	"context"
	"time"

	logx "duyurubot/pkg/logx"

	"github.com/coreos/go-systemd/v22/daemon"
)

type Notifier struct {
	log logx.Logger
}

func New(log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Notifier{log: log.With(logx.String("comp", "sdnotify"))}
}

func (n *Notifier) Ready() bool { return n.send(daemon.SdNotifyReady) }

func (n *Notifier) Stopping() bool { return n.send(daemon.SdNotifyStopping) }

func (n *Notifier) Reloading() bool { return n.send(daemon.SdNotifyReloading) }

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(text string) bool { return n.send("STATUS=" + text) }

func (n *Notifier) send(state string) bool {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return false
	}
	return sent
}

// WatchdogInterval returns how often to ping systemd, or 0 when the unit has
// no WatchdogSec.
func (n *Notifier) WatchdogInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.log.Warn("invalid watchdog environment", logx.Err(err))
		return 0
	}
	return d / 2
}

// RunWatchdog pings systemd until ctx is done. It returns immediately when
// the watchdog is not enabled.
func (n *Notifier) RunWatchdog(ctx context.Context) error {
	every := n.WatchdogInterval()
	if every <= 0 {
		return nil
	}
	n.log.Info("systemd watchdog enabled", logx.Duration("interval", every))
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}
