package poll

import (
	"context"
	"fmt"

	"duyurubot/internal/delivery"
	"duyurubot/internal/scraper"
	"duyurubot/internal/storage"
)

// Policy bounds how much of a listing each poll persists, reconciles and
// re-fetches. See Validate for the required ordering.
type Policy struct {
	BootstrapFetchLimit int // records persisted on a site's first poll
	BootstrapSendLimit  int // of those, how many (most recent) are announced
	SteadyCheckWindow   int // most-recent candidates reconciled on later polls
	RecentDetailWindow  int // of the reconciled slice, how many get a detail fetch
}

func DefaultPolicy() Policy {
	return Policy{
		BootstrapFetchLimit: 30,
		BootstrapSendLimit:  1,
		SteadyCheckWindow:   20,
		RecentDetailWindow:  5,
	}
}

// Validate enforces recent <= steady <= bootstrap fetch and send <= fetch.
// A steady window larger than what bootstrap persisted re-announces history.
func (p Policy) Validate() error {
	switch {
	case p.BootstrapFetchLimit < 1:
		return fmt.Errorf("bootstrap_fetch_limit must be >= 1 (got %d)", p.BootstrapFetchLimit)
	case p.BootstrapSendLimit < 0, p.SteadyCheckWindow < 0, p.RecentDetailWindow < 0:
		return fmt.Errorf("polling limits must be >= 0")
	case p.BootstrapSendLimit > p.BootstrapFetchLimit:
		return fmt.Errorf("bootstrap_send_limit (%d) must be <= bootstrap_fetch_limit (%d)", p.BootstrapSendLimit, p.BootstrapFetchLimit)
	case p.SteadyCheckWindow > p.BootstrapFetchLimit:
		return fmt.Errorf("steady_check_window (%d) must be <= bootstrap_fetch_limit (%d)", p.SteadyCheckWindow, p.BootstrapFetchLimit)
	case p.RecentDetailWindow > p.SteadyCheckWindow:
		return fmt.Errorf("recent_detail_window (%d) must be <= steady_check_window (%d)", p.RecentDetailWindow, p.SteadyCheckWindow)
	}
	return nil
}

// Site is one polled source and where its announcements go.
type Site struct {
	Name        string
	Destination string
	Source      scraper.Source
}

// Store hands out per-poll handles.
type Store interface {
	Acquire(ctx context.Context) (storage.Handle, error)
}

// Deliverer sends one notification and reports the outcome.
type Deliverer interface {
	Deliver(ctx context.Context, req delivery.Request) error
}

type Mode string

const (
	ModeSkipped   Mode = "skipped"
	ModeBootstrap Mode = "bootstrap"
	ModeSteady    Mode = "steady"
)

// Result summarizes one poll. New and Updated count store writes; Delivered and
// DeliveryFailed count notification outcomes.
type Result struct {
	Site           string `json:"site"`
	Mode           Mode   `json:"mode"`
	Candidates     int    `json:"candidates"`
	New            int    `json:"new"`
	Updated        int    `json:"updated"`
	Delivered      int    `json:"delivered"`
	DeliveryFailed int    `json:"delivery_failed"`
	Err            error  `json:"-"`
}
