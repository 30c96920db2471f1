// Package notify posts call outcomes to a team IRC channel using girc.
package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/lrstanley/girc"

	"github.com/soyeahso/meetbot/internal/config"
	"github.com/soyeahso/meetbot/internal/hooks"
	"github.com/soyeahso/meetbot/internal/logging"
	"github.com/soyeahso/meetbot/internal/version"
)

// maxLineLen keeps each PRIVMSG well inside the 512 byte protocol limit.
const maxLineLen = 400

var errNotConnected = errors.New("irc: not connected")

// messenger is the part of girc used to post lines.
type messenger interface {
	Message(target, message string)
}

// IRCNotifier posts booking, callback and information-request events.
type IRCNotifier struct {
	cfg config.IRCConfig
	log *logging.Logger

	mu        sync.RWMutex
	client    *girc.Client
	out       messenger
	connected bool
	lastErr   string
}

// NewIRCNotifier creates a notifier for cfg.
func NewIRCNotifier(cfg config.IRCConfig, log *logging.Logger) *IRCNotifier {
	return &IRCNotifier{cfg: cfg, log: log.Sub("irc")}
}

// Start connects and blocks until ctx is cancelled or the connection drops.
func (n *IRCNotifier) Start(ctx context.Context) error {
	port := n.cfg.Port
	if port == 0 {
		if n.cfg.UseTLS {
			port = 6697
		} else {
			port = 6667
		}
	}

	gircCfg := girc.Config{
		Server:  n.cfg.Server,
		Port:    port,
		Nick:    n.cfg.Nick,
		User:    n.cfg.Nick,
		Name:    "meetbot notifier",
		SSL:     n.cfg.UseTLS,
		Version: version.UserAgent(),
	}
	if n.cfg.UseTLS {
		gircCfg.TLSConfig = &tls.Config{ServerName: n.cfg.Server}
	}
	if n.cfg.Password != "" {
		gircCfg.ServerPass = n.cfg.Password
	}

	client := girc.New(gircCfg)
	client.Handlers.Add(girc.CONNECTED, n.onConnected)
	client.Handlers.Add(girc.DISCONNECTED, n.onDisconnected)

	n.mu.Lock()
	n.client = client
	n.lastErr = ""
	n.mu.Unlock()

	n.log.Info().
		Str("server", n.cfg.Server).
		Int("port", port).
		Str("nick", n.cfg.Nick).
		Str("channel", n.cfg.Channel).
		Bool("tls", n.cfg.UseTLS).
		Msg("connecting to IRC")

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Connect()
	}()

	select {
	case err := <-errCh:
		n.mu.Lock()
		n.connected = false
		if err != nil {
			n.lastErr = err.Error()
		}
		n.mu.Unlock()
		if err != nil {
			return fmt.Errorf("irc connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		client.Quit("meetbot shutting down")
		client.Close()
		return ctx.Err()
	}
}

func (n *IRCNotifier) onConnected(c *girc.Client, _ girc.Event) {
	n.log.Info().Str("nick", c.GetNick()).Msg("connected to IRC")
	if n.cfg.Channel != "" {
		c.Cmd.Join(n.cfg.Channel)
	}
	n.mu.Lock()
	n.out = c.Cmd
	n.connected = true
	n.mu.Unlock()
}

func (n *IRCNotifier) onDisconnected(_ *girc.Client, _ girc.Event) {
	n.log.Warn().Msg("disconnected from IRC")
	n.mu.Lock()
	n.connected = false
	n.mu.Unlock()
}

// Connected reports whether the notifier can post.
func (n *IRCNotifier) Connected() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.connected
}

// Post sends text to the configured channel, one PRIVMSG per line.
func (n *IRCNotifier) Post(text string) error {
	n.mu.RLock()
	out, ok := n.out, n.connected
	n.mu.RUnlock()
	if !ok || out == nil {
		return errNotConnected
	}
	lines := splitMessage(text, maxLineLen)
	for _, line := range lines {
		out.Message(n.cfg.Channel, line)
	}
	n.log.Debug().Str("to", n.cfg.Channel).Int("lines", len(lines)).Msg("posted notification")
	return nil
}

// Register subscribes to the call outcome events.
func (n *IRCNotifier) Register(hm *hooks.Manager) {
	hm.OnEach(hooks.OutcomeEvents, "irc", n.onEvent)
}

func (n *IRCNotifier) onEvent(_ context.Context, p hooks.Payload) error {
	text := FormatEvent(p)
	if text == "" {
		return nil
	}
	if err := n.Post(text); err != nil {
		n.log.Debug().Err(err).Str("event", p.Event).Msg("notification dropped")
	}
	return nil
}

// FormatEvent renders a one-line summary of a call outcome, or "" for
// events that are not announced.
func FormatEvent(p hooks.Payload) string {
	get := p.String
	who := get("name")
	if who == "" {
		who = get("phone")
	}
	if who == "" {
		who = get("prospect")
	}
	if who == "" {
		who = "prospect"
	}

	switch p.Event {
	case hooks.EventBooking:
		line := fmt.Sprintf("Booked: %s with %s (call %s, via %s)", get("slot"), who, get("callId"), get("path"))
		if email := get("email"); email != "" {
			line += ", confirmation to " + email
		}
		return line
	case hooks.EventCallback:
		line := fmt.Sprintf("Callback requested by %s", who)
		if when := get("when"); when != "" {
			line += ": " + when
		}
		if notes := get("notes"); notes != "" {
			line += "\n" + notes
		}
		return line
	case hooks.EventSendInfo:
		if email := get("email"); email != "" {
			return fmt.Sprintf("Information requested by %s, sending to %s", who, email)
		}
		return fmt.Sprintf("Information requested by %s, no email given", who)
	case hooks.EventBookingConflict:
		return fmt.Sprintf("Slot %s was taken during call %s, alternatives offered", get("slot"), get("callId"))
	}
	return ""
}

// splitMessage breaks text into lines suitable for IRC. Each newline
// starts a new line and lines longer than maxLen are split at the byte
// boundary. Empty lines are dropped.
func splitMessage(text string, maxLen int) []string {
	var chunks []string
	for _, line := range strings.Split(text, "\n") {
		for len(line) > maxLen {
			chunks = append(chunks, line[:maxLen])
			line = line[maxLen:]
		}
		if line != "" {
			chunks = append(chunks, line)
		}
	}
	return chunks
}
