package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

var errSigningSecretMissing = errors.New("stripe webhook signing secret not configured")

// VerifyEvent checks the Stripe-Signature header against the signing secret
// and decodes the event. The account API version may lag the library, so a
// version mismatch is not treated as a signature failure.
func VerifyEvent(payload []byte, header, secret string) (stripe.Event, error) {
	if secret == "" {
		return stripe.Event{}, errSigningSecretMissing
	}
	return webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
}

// VerifyEvent verifies payload with the client's signing secret.
func (c *Client) VerifyEvent(payload []byte, header string) (stripe.Event, error) {
	return VerifyEvent(payload, header, c.SigningSecret())
}

// SignatureHeader builds a Stripe-Signature header for payload. Local tooling
// and tests use it to replay events against the webhook endpoint.
func SignatureHeader(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}
