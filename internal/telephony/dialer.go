package telephony

import (
	"context"
	"errors"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/soyeahso/meetbot/internal/config"
	"github.com/soyeahso/meetbot/internal/domain"
	"github.com/soyeahso/meetbot/internal/logging"
)

// statusEvents are the call progress callbacks requested for every dial.
var statusEvents = []string{"initiated", "ringing", "answered", "completed"}

// CallCreator is the subset of the provider REST API used to place calls.
type CallCreator interface {
	CreateCall(params *twilioApi.CreateCallParams) (*twilioApi.ApiV2010Call, error)
}

// TwilioDialer places outbound calls.
type TwilioDialer struct {
	api            CallCreator
	from           string
	statusCallback string
	log            *logging.Logger
}

// NewTwilioDialer creates a dialer from the provider credentials.
func NewTwilioDialer(cfg config.TwilioConfig, log *logging.Logger) (*TwilioDialer, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.FromNumber == "" {
		return nil, errors.New("twilio account sid, auth token and from number are required to dial")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return NewDialerWithAPI(client.Api, cfg.FromNumber, cfg.StatusCallback, log), nil
}

// NewDialerWithAPI creates a dialer over an existing API client.
func NewDialerWithAPI(api CallCreator, from, statusCallback string, log *logging.Logger) *TwilioDialer {
	return &TwilioDialer{
		api:            api,
		from:           from,
		statusCallback: statusCallback,
		log:            log.Sub("telephony"),
	}
}

// Dial calls to and points the provider at webhookURL for the call flow. It
// returns the provider call identifier.
func (d *TwilioDialer) Dial(ctx context.Context, to, webhookURL string) (string, error) {
	if !strings.HasPrefix(webhookURL, "http") {
		return "", &domain.TelephonyError{Op: "dial", Err: errors.New("webhook url must be an absolute http(s) url the provider can reach")}
	}
	if strings.TrimSpace(to) == "" {
		return "", &domain.TelephonyError{Op: "dial", Err: errors.New("destination number is empty")}
	}
	if err := ctx.Err(); err != nil {
		return "", &domain.TelephonyError{Op: "dial", Err: err}
	}

	params := &twilioApi.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(d.from)
	params.SetUrl(webhookURL)
	params.SetMethod("POST")
	if d.statusCallback != "" {
		params.SetStatusCallback(d.statusCallback)
		params.SetStatusCallbackEvent(statusEvents)
		params.SetStatusCallbackMethod("POST")
	}

	d.log.Info().Str("to", to).Str("from", d.from).Str("webhook", webhookURL).Msg("dialing")

	resp, err := d.api.CreateCall(params)
	if err != nil {
		d.log.Error().Err(err).Str("to", to).Msg("dial failed")
		return "", &domain.TelephonyError{Op: "dial", Err: err}
	}
	if resp == nil || resp.Sid == nil {
		return "", &domain.TelephonyError{Op: "dial", Err: errors.New("provider returned no call sid")}
	}

	d.log.Info().Str("callId", *resp.Sid).Msg("call created")
	return *resp.Sid, nil
}
