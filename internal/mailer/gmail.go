// Package mailer sends follow-up email: product information when a prospect
// asks for it and confirmations for booked meetings.
package mailer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/soyeahso/meetbot/internal/config"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// GmailSender sends through the Gmail API as the authorized user.
type GmailSender struct {
	svc  *gmail.Service
	from string
}

// NewGmailSender builds a sender from OAuth client credentials and a stored
// token. The token is obtained once with the provider's consent flow.
func NewGmailSender(ctx context.Context, cfg config.GmailConfig) (*GmailSender, error) {
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	oauthCfg, err := google.ConfigFromJSON(b, gmail.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	token, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("no auth token found at %s: %w", cfg.TokenFile, err)
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(oauthCfg.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return NewGmailSenderWithService(svc, cfg.From), nil
}

// NewGmailSenderWithService wraps an existing Gmail service.
func NewGmailSenderWithService(svc *gmail.Service, from string) *GmailSender {
	return &GmailSender{svc: svc, from: from}
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// Send delivers msg.
func (g *GmailSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return errors.New("mailer: recipient is empty")
	}
	raw := base64.URLEncoding.EncodeToString([]byte(buildRFC822(g.from, msg)))
	if _, err := g.svc.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gmail send to %s: %w", msg.To, err)
	}
	return nil
}

// buildRFC822 renders the message headers and body. Header values are
// stripped of line breaks.
func buildRFC822(from string, msg Message) string {
	clean := strings.NewReplacer("\r", "", "\n", " ")
	var b strings.Builder
	if from != "" {
		fmt.Fprintf(&b, "From: %s\r\n", clean.Replace(from))
	}
	fmt.Fprintf(&b, "To: %s\r\n", clean.Replace(msg.To))
	fmt.Fprintf(&b, "Subject: %s\r\n", clean.Replace(msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return b.String()
}
