package telephony

import (
	"net/url"

	"github.com/twilio/twilio-go/client"
)

// SignatureHeader carries the provider's request signature.
const SignatureHeader = "X-Twilio-Signature"

// SignatureValidator checks that a webhook was signed with the account's
// auth token.
type SignatureValidator struct {
	v client.RequestValidator
}

// NewSignatureValidator creates a validator for authToken.
func NewSignatureValidator(authToken string) *SignatureValidator {
	return &SignatureValidator{v: client.NewRequestValidator(authToken)}
}

// Valid reports whether signature matches the full public URL of the request
// and its posted form. Multi-valued fields use their first value.
func (s *SignatureValidator) Valid(fullURL string, form url.Values, signature string) bool {
	if signature == "" {
		return false
	}
	params := make(map[string]string, len(form))
	for k := range form {
		params[k] = form.Get(k)
	}
	return s.v.Validate(fullURL, params, signature)
}
