package telephony

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/soyeahso/meetbot/internal/config"
	"github.com/soyeahso/meetbot/internal/domain"
	"github.com/soyeahso/meetbot/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

// assertOrder checks that each fragment appears after the previous one.
func assertOrder(t *testing.T, doc string, fragments ...string) {
	t.Helper()
	pos := 0
	for _, f := range fragments {
		i := strings.Index(doc[pos:], f)
		if !assert.GreaterOrEqual(t, i, 0, "missing %q after offset %d in %s", f, pos, doc) {
			return
		}
		pos += i + len(f)
	}
}

// --- TwiML ---

func TestRenderGreeting(t *testing.T) {
	r := NewResponder("", "", "https://bot.example.com/voice/turn")

	doc, err := r.RenderGreeting("Hi there, this is Alice calling from Acme.")
	require.NoError(t, err)

	assertOrder(t, doc, "<Response>", "<Pause", "<Gather", "<Say", "Hi there, this is Alice calling from Acme.", "</Gather>")
	assert.Contains(t, doc, `length="1"`)
	assert.Contains(t, doc, `bargeIn="false"`)
	assert.Contains(t, doc, `input="speech"`)
	assert.Contains(t, doc, `action="https://bot.example.com/voice/turn"`)
	assert.Contains(t, doc, `speechModel="experimental_conversations"`)
	assert.Contains(t, doc, `speechTimeout="auto"`)
	assert.Contains(t, doc, `timeout="5"`)
	assert.Contains(t, doc, `voice="alice"`)
	assert.Contains(t, doc, `language="en-US"`)
	assert.NotContains(t, doc, "<Hangup")
}

func TestRenderTurn(t *testing.T) {
	r := NewResponder("Polly.Joanna", "en-GB", "https://bot.example.com/voice/turn")

	tests := []struct {
		name    string
		text    string
		end     bool
		order   []string
		absent  []string
		present []string
	}{
		{
			name:    "continues",
			text:    "Does Tuesday work for you?",
			order:   []string{"<Gather", "Does Tuesday work for you?", "</Gather>"},
			absent:  []string{"<Hangup", GoodbyeText},
			present: []string{`bargeIn="true"`, `voice="Polly.Joanna"`, `language="en-GB"`},
		},
		{
			name:   "empty reply keeps listening",
			text:   "",
			order:  []string{"<Gather", StillHereText},
			absent: []string{"<Hangup"},
		},
		{
			name:   "ends",
			text:   "Talk soon.",
			end:    true,
			order:  []string{"<Say", "Talk soon.", "<Pause", `length="0.5"`, GoodbyeText, "<Hangup"},
			absent: []string{"<Gather"},
		},
		{
			name:   "ends without reply",
			end:    true,
			order:  []string{"<Pause", GoodbyeText, "<Hangup"},
			absent: []string{"<Gather", StillHereText},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := r.RenderTurn(tt.text, tt.end)
			require.NoError(t, err)
			assertOrder(t, doc, tt.order...)
			for _, s := range tt.absent {
				assert.NotContains(t, doc, s)
			}
			for _, s := range tt.present {
				assert.Contains(t, doc, s)
			}
		})
	}
}

// --- Webhook forms ---

func TestParseTurn(t *testing.T) {
	form := url.Values{
		"CallSid":      {"CA123"},
		"AccountSid":   {"AC1"},
		"From":         {"+15550001111"},
		"To":           {"+972500000001"},
		"CallStatus":   {"in-progress"},
		"Direction":    {"outbound-api"},
		"SpeechResult": {"  Tuesday works  "},
		"Confidence":   {"0.87"},
		"RecordingUrl": {"https://api.twilio.com/rec/RE1"},
	}

	turn := ParseTurn(form)
	assert.Equal(t, "CA123", turn.CallID)
	assert.Equal(t, "Tuesday works", turn.SpeechResult)
	require.NotNil(t, turn.Confidence)
	assert.InDelta(t, 0.87, *turn.Confidence, 1e-9)
	assert.Equal(t, "https://api.twilio.com/rec/RE1", turn.RecordingURL)
	assert.Equal(t, domain.CallMeta{
		AccountSID: "AC1",
		From:       "+15550001111",
		To:         "+972500000001",
		CallStatus: "in-progress",
		Direction:  "outbound-api",
	}, turn.Meta)
}

func TestParseTurnDefaults(t *testing.T) {
	turn := ParseTurn(url.Values{"Confidence": {"high"}})
	assert.Equal(t, UnknownCallID, turn.CallID)
	assert.Nil(t, turn.Confidence)
	assert.Empty(t, turn.SpeechResult)
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		status   string
		terminal bool
	}{
		{"initiated", false},
		{"ringing", false},
		{"in-progress", false},
		{"completed", true},
		{"Busy", true},
		{"no-answer", true},
		{"failed", true},
		{"canceled", true},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			ev := ParseStatus(url.Values{"CallSid": {"CA1"}, "CallStatus": {tt.status}, "CallDuration": {"42"}})
			assert.Equal(t, "CA1", ev.CallID)
			assert.Equal(t, strings.ToLower(tt.status), ev.Status)
			assert.Equal(t, 42, ev.Duration)
			assert.Equal(t, tt.terminal, ev.Terminal())
		})
	}
}

// --- Dialer ---

type fakeCalls struct {
	params *twilioApi.CreateCallParams
	sid    string
	err    error
}

func (f *fakeCalls) CreateCall(params *twilioApi.CreateCallParams) (*twilioApi.ApiV2010Call, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	if f.sid == "" {
		return &twilioApi.ApiV2010Call{}, nil
	}
	sid := f.sid
	return &twilioApi.ApiV2010Call{Sid: &sid}, nil
}

func TestDial(t *testing.T) {
	api := &fakeCalls{sid: "CA999"}
	d := NewDialerWithAPI(api, "+15550001111", "https://bot.example.com/voice/status", silentLog())

	sid, err := d.Dial(context.Background(), "+972500000001", "https://bot.example.com/voice")
	require.NoError(t, err)
	assert.Equal(t, "CA999", sid)

	require.NotNil(t, api.params)
	assert.Equal(t, "+972500000001", *api.params.To)
	assert.Equal(t, "+15550001111", *api.params.From)
	assert.Equal(t, "https://bot.example.com/voice", *api.params.Url)
	assert.Equal(t, "POST", *api.params.Method)
	assert.Equal(t, "https://bot.example.com/voice/status", *api.params.StatusCallback)
	assert.Equal(t, []string{"initiated", "ringing", "answered", "completed"}, *api.params.StatusCallbackEvent)
}

func TestDialWithoutStatusCallback(t *testing.T) {
	api := &fakeCalls{sid: "CA1"}
	d := NewDialerWithAPI(api, "+15550001111", "", silentLog())

	_, err := d.Dial(context.Background(), "+972500000001", "https://bot.example.com/voice")
	require.NoError(t, err)
	assert.Nil(t, api.params.StatusCallback)
}

func TestDialErrors(t *testing.T) {
	tests := []struct {
		name    string
		api     *fakeCalls
		to      string
		webhook string
	}{
		{"relative webhook", &fakeCalls{sid: "CA1"}, "+1", "/voice"},
		{"empty number", &fakeCalls{sid: "CA1"}, " ", "https://bot.example.com/voice"},
		{"provider failure", &fakeCalls{err: errors.New("21211 invalid To number")}, "+1", "https://bot.example.com/voice"},
		{"missing sid", &fakeCalls{}, "+1", "https://bot.example.com/voice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDialerWithAPI(tt.api, "+15550001111", "", silentLog())
			_, err := d.Dial(context.Background(), tt.to, tt.webhook)
			var telErr *domain.TelephonyError
			require.ErrorAs(t, err, &telErr)
			assert.Equal(t, "dial", telErr.Op)
		})
	}
}

func TestNewTwilioDialerRequiresCredentials(t *testing.T) {
	_, err := NewTwilioDialer(config.TwilioConfig{AccountSID: "AC1"}, silentLog())
	assert.Error(t, err)

	d, err := NewTwilioDialer(config.TwilioConfig{AccountSID: "AC1", AuthToken: "tok", FromNumber: "+1"}, silentLog())
	require.NoError(t, err)
	assert.NotNil(t, d)
}

// --- Recordings ---

func TestFetchRecording(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC1" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/rec/RE1.mp3" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("ID3audio"))
	}))
	defer srv.Close()

	f := NewRecordingFetcher("AC1", "secret", srv.Client())
	body, name, err := f.FetchRecording(context.Background(), srv.URL+"/rec/RE1")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "ID3audio", string(data))
	assert.Equal(t, "recording.mp3", name)
}

func TestFetchRecordingErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewRecordingFetcher("AC1", "secret", srv.Client())

	_, _, err := f.FetchRecording(context.Background(), srv.URL+"/rec/missing")
	var telErr *domain.TelephonyError
	require.ErrorAs(t, err, &telErr)
	assert.Contains(t, err.Error(), "404")

	_, _, err = f.FetchRecording(context.Background(), "")
	assert.Error(t, err)
}

// --- Signatures ---

func sign(token, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(form.Get(k))
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestSignatureValidator(t *testing.T) {
	const fullURL = "https://bot.example.com/voice/turn"
	form := url.Values{"CallSid": {"CA1"}, "SpeechResult": {"Tuesday works"}}
	v := NewSignatureValidator("secret")

	assert.True(t, v.Valid(fullURL, form, sign("secret", fullURL, form)))
	assert.False(t, v.Valid(fullURL, form, sign("other", fullURL, form)))
	assert.False(t, v.Valid(fullURL, form, ""))

	tampered := url.Values{"CallSid": {"CA1"}, "SpeechResult": {"Friday works"}}
	assert.False(t, v.Valid(fullURL, tampered, sign("secret", fullURL, form)))
}
