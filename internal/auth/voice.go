package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	twjwt "github.com/twilio/twilio-go/client/jwt"

	"call-router/internal/carrier"
	"call-router/internal/config"
	"call-router/internal/identity"
)

// ErrIdentityMissing means the requesting user has no carrier number, so a
// device token would be unable to place calls.
var ErrIdentityMissing = errors.New("caller_phone_identity_missing")

// VoiceTokenIssuer signs short-lived access tokens for the browser/desktop
// voice client.
type VoiceTokenIssuer struct {
	accountSID     string
	apiKey         string
	apiSecret      string
	applicationSID string
	ttl            time.Duration
}

func NewVoiceTokenIssuer(cfg config.TwilioConfig) (*VoiceTokenIssuer, error) {
	if !cfg.Enabled {
		return nil, &carrier.ConfigurationError{Err: carrier.ErrDisabled}
	}
	if err := cfg.Check(); err != nil {
		return nil, &carrier.ConfigurationError{Err: err}
	}
	ttl := cfg.VoiceTokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &VoiceTokenIssuer{
		accountSID:     cfg.AccountSID,
		apiKey:         cfg.APIKey,
		apiSecret:      cfg.APISecret,
		applicationSID: cfg.ApplicationSID,
		ttl:            ttl,
	}, nil
}

type VoiceToken struct {
	Token     string    `json:"token"`
	Identity  string    `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Issue signs a token that lets the sanitized user identity receive calls
// and place outgoing calls from callerNumber.
func (i *VoiceTokenIssuer) Issue(now time.Time, callerNumber, user string) (VoiceToken, error) {
	if strings.TrimSpace(callerNumber) == "" {
		return VoiceToken{}, ErrIdentityMissing
	}
	ident := identity.Sanitize(user)
	if ident == "" {
		return VoiceToken{}, fmt.Errorf("auth: user %q has no usable voice identity", user)
	}

	exp := now.Add(i.ttl)
	tok := twjwt.CreateAccessToken(twjwt.AccessTokenParams{
		AccountSid:    i.accountSID,
		SigningKeySid: i.apiKey,
		Secret:        i.apiSecret,
		Identity:      ident,
		Nbf:           float64(now.Unix()),
		Ttl:           i.ttl.Seconds(),
		ValidUntil:    float64(exp.Unix()),
	})
	tok.AddGrant(&twjwt.VoiceGrant{
		Incoming: twjwt.Incoming{Allow: true},
		Outgoing: twjwt.Outgoing{
			ApplicationSid:    i.applicationSID,
			ApplicationParams: map[string]interface{}{"CallerNumber": callerNumber},
		},
	})
	signed, err := tok.ToJwt()
	if err != nil {
		return VoiceToken{}, fmt.Errorf("auth: sign voice token: %w", err)
	}
	return VoiceToken{Token: signed, Identity: ident, ExpiresAt: exp}, nil
}
