// Package telegram sends announcements and operator log lines through the
// Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"duyurubot/internal/delivery"
	logx "duyurubot/pkg/logx"

	tele "gopkg.in/telebot.v4"
)

type Config struct {
	Token          string
	SendTimeout    time.Duration // HTTP timeout per API call; 0 means 30s
	DisablePreview bool
	ExcerptChars   int    // 0 disables content excerpts
	LogChat        string // destination for SendLog; "" disables it
	// Offline skips the getMe handshake. Used by tests.
	Offline bool
}

// Notifier implements delivery.Notifier.
type Notifier struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
}

var _ delivery.Notifier = (*Notifier)(nil)

func New(cfg Config, log logx.Logger) (*Notifier, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Client:  &http.Client{Timeout: cfg.SendTimeout},
		Offline: cfg.Offline,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	if !cfg.Offline && b.Me != nil {
		log.Info("telegram bot ready", logx.String("username", b.Me.Username))
	}
	return &Notifier{cfg: cfg, log: log, bot: b}, nil
}

// Deliver formats item and sends it to destination.
func (n *Notifier) Deliver(ctx context.Context, destination, site string, item delivery.Item, kind delivery.Kind) error {
	dst, err := parseDestination(destination)
	if err != nil {
		return err
	}
	text := formatMessage(site, item, kind, n.cfg.ExcerptChars)
	return n.send(ctx, dst, text, tele.ModeHTML, n.cfg.DisablePreview)
}

// SendLog sends a plain-text log line to the configured log chat.
func (n *Notifier) SendLog(ctx context.Context, text string) error {
	if strings.TrimSpace(n.cfg.LogChat) == "" {
		return nil
	}
	dst, err := parseDestination(n.cfg.LogChat)
	if err != nil {
		return err
	}
	return n.send(ctx, dst, text, tele.ModeDefault, true)
}

func (n *Notifier) send(ctx context.Context, dst destination, text string, mode tele.ParseMode, noPreview bool) error {
	chunks := splitText(text, textLimit, string(mode))
	for _, chunk := range chunks {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		_, err := n.bot.Send(dst.recipient, chunk, &tele.SendOptions{
			ParseMode:             mode,
			DisableWebPagePreview: noPreview,
			ThreadID:              dst.threadID,
		})
		if err != nil {
			return fmt.Errorf("telegram: send to %s: %w", dst.recipient.Recipient(), err)
		}
	}
	return nil
}

// channelName addresses a public channel or group by @username.
type channelName string

func (c channelName) Recipient() string { return string(c) }

type destination struct {
	recipient tele.Recipient
	threadID  int
}

// parseDestination accepts "<chat id>", "@channel", and either with a ":<thread id>" suffix.
func parseDestination(s string) (destination, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return destination{}, errors.New("telegram: empty destination")
	}
	var d destination
	if i := strings.LastIndex(s, ":"); i > 0 {
		tid, err := strconv.Atoi(s[i+1:])
		if err != nil || tid <= 0 {
			return destination{}, fmt.Errorf("telegram: invalid thread id in %q", s)
		}
		d.threadID = tid
		s = s[:i]
	}
	if strings.HasPrefix(s, "@") {
		if len(s) < 2 {
			return destination{}, fmt.Errorf("telegram: invalid channel %q", s)
		}
		d.recipient = channelName(s)
		return d, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return destination{}, fmt.Errorf("telegram: invalid chat id %q", s)
	}
	d.recipient = &tele.Chat{ID: id}
	return d, nil
}

// ValidDestination reports whether s can be parsed as a destination.
func ValidDestination(s string) error {
	_, err := parseDestination(s)
	return err
}
