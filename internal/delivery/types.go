// Package delivery funnels notifications from concurrent polls through a single
// worker that owns the outbound Notifier.
//
// Callers block until their request is sent, fails, or times out. Sends are
// at-most-once: nothing is retried or redelivered.
package delivery

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("delivery disabled")
	ErrStopped  = errors.New("delivery stopped")
	ErrTimeout  = errors.New("delivery timed out")
)

// Kind tells the notifier how to present an item.
type Kind int

const (
	KindNew Kind = iota
	KindUpdate
)

func (k Kind) String() string {
	switch k {
	case KindNew:
		return "new"
	case KindUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// Item is the announcement being announced. Content "" means absent.
type Item struct {
	Title   string
	URL     string
	Date    string
	Content string
}

// Notifier is the outbound transport. A nil error means the message was accepted.
type Notifier interface {
	Deliver(ctx context.Context, destination, site string, item Item, kind Kind) error
}

type Request struct {
	Destination string
	Site        string
	Item        Item
	Kind        Kind
}

// Config controls the bridge.
type Config struct {
	Enabled    bool
	QueueSize  int           // 0 means 64
	Timeout    time.Duration // per request, enqueue included; 0 means 45s
	RatePerSec float64       // 0 means 1
	Burst      int           // 0 means 1
}

// Event is the payload of delivery.* bus events.
type Event struct {
	Site        string        `json:"site"`
	Destination string        `json:"destination"`
	Kind        string        `json:"kind"`
	Title       string        `json:"title"`
	Took        time.Duration `json:"took"`
	Error       string        `json:"error,omitempty"`
}
