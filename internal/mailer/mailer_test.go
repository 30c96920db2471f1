package mailer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/soyeahso/meetbot/internal/hooks"
	"github.com/soyeahso/meetbot/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

var testProfile = Profile{
	AssistantName: "Alice",
	CompanyName:   "Jonny AI Company",
	Description:   "We book meetings for sales teams.",
}

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return r.err
}

func TestGmailSenderSend(t *testing.T) {
	var gotPath string
	var gotRaw string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		var m gmail.Message
		json.Unmarshal(body, &m)
		gotRaw = m.Raw
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg-1"}`))
	}))
	defer srv.Close()

	svc, err := gmail.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	s := NewGmailSenderWithService(svc, "sales@jonny.ai")
	err = s.Send(context.Background(), Message{To: "dana@x.com", Subject: "Hello", Body: "Body text"})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(gotPath, "/users/me/messages/send"), gotPath)
	decoded, err := base64.URLEncoding.DecodeString(gotRaw)
	require.NoError(t, err)
	assert.Contains(t, string(decoded), "From: sales@jonny.ai\r\n")
	assert.Contains(t, string(decoded), "To: dana@x.com\r\n")
	assert.Contains(t, string(decoded), "Subject: Hello\r\n")
	assert.True(t, strings.HasSuffix(string(decoded), "\r\n\r\nBody text"))
}

func TestGmailSenderRequiresRecipient(t *testing.T) {
	s := NewGmailSenderWithService(nil, "")
	assert.Error(t, s.Send(context.Background(), Message{Subject: "x"}))
}

func TestBuildRFC822StripsHeaderBreaks(t *testing.T) {
	out := buildRFC822("", Message{To: "a@x.com\r\nBcc: evil@x.com", Subject: "Hi\nthere", Body: "b"})
	assert.NotContains(t, out, "From:")
	assert.Contains(t, out, "To: a@x.com Bcc: evil@x.com\r\n")
	assert.Contains(t, out, "Subject: Hi there\r\n")
}

func TestInfoMessage(t *testing.T) {
	msg := InfoMessage(Profile{AssistantName: "Alice", CompanyName: "Acme", Subject: "Info"}, "d@x.com", "interested in pricing")
	assert.Equal(t, "d@x.com", msg.To)
	assert.Equal(t, "Info", msg.Subject)
	assert.Contains(t, msg.Body, "speak with Alice from Acme")
	assert.Contains(t, msg.Body, "You mentioned: interested in pricing")
	assert.NotContains(t, msg.Body, "overview")
}

func TestConfirmationMessage(t *testing.T) {
	msg := ConfirmationMessage(testProfile, "d@x.com", "Dana", "2025-11-18 12:00")
	assert.Equal(t, "Meeting confirmed: Tuesday, November 18 at 12:00 PM", msg.Subject)
	assert.True(t, strings.HasPrefix(msg.Body, "Hi Dana,"))
	assert.Contains(t, msg.Body, "Jonny AI Company on Tuesday, November 18 at 12:00 PM")

	anon := ConfirmationMessage(testProfile, "d@x.com", "", "2025-11-18 12:00")
	assert.True(t, strings.HasPrefix(anon.Body, "Hi,"))
}

func TestFollowupHooks(t *testing.T) {
	tests := []struct {
		name        string
		event       string
		data        map[string]any
		wantSubject string
	}{
		{
			name:        "send info",
			event:       hooks.EventSendInfo,
			data:        map[string]any{"callId": "CA1", "email": "d@x.com", "notes": "pricing"},
			wantSubject: "Information from Jonny AI Company",
		},
		{
			name:        "booking confirmation",
			event:       hooks.EventBooking,
			data:        map[string]any{"callId": "CA1", "email": "d@x.com", "name": "Dana", "slot": "2025-11-18 12:00"},
			wantSubject: "Meeting confirmed: Tuesday, November 18 at 12:00 PM",
		},
		{
			name:  "send info without email",
			event: hooks.EventSendInfo,
			data:  map[string]any{"callId": "CA1"},
		},
		{
			name:  "booking without email",
			event: hooks.EventBooking,
			data:  map[string]any{"callId": "CA1", "slot": "2025-11-18 12:00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &recordingSender{}
			f := NewFollowup(sender, testProfile, silentLog())
			hm := hooks.NewManager(silentLog())
			f.Register(hm)

			hm.Emit(context.Background(), tt.event, tt.data)
			f.Wait()

			if tt.wantSubject == "" {
				assert.Empty(t, sender.sent)
				return
			}
			require.Len(t, sender.sent, 1)
			assert.Equal(t, "d@x.com", sender.sent[0].To)
			assert.Equal(t, tt.wantSubject, sender.sent[0].Subject)
		})
	}
}

func TestFollowupSendFailureIsLogged(t *testing.T) {
	sender := &recordingSender{err: errors.New("quota exceeded")}
	f := NewFollowup(sender, testProfile, silentLog())
	hm := hooks.NewManager(silentLog())
	f.Register(hm)

	hm.Emit(context.Background(), hooks.EventSendInfo, map[string]any{"email": "d@x.com"})
	f.Wait()
	assert.Len(t, sender.sent, 1)
}
