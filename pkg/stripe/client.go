package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/cropmarket-backend/pkg/config"
	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	defaultCurrency = "usd"
	appName         = "cropmarket-backend"
)

// keyPrefixes lists the secret and restricted key prefixes each environment accepts.
var keyPrefixes = map[string][2]string{
	testEnv: {"sk_test_", "rk_test_"},
	liveEnv: {"sk_live_", "rk_live_"},
}

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client holds the validated gateway settings. The stripe-go resource
// packages read the package-level key, so NewClient installs it once per process.
type Client struct {
	environment   string
	signingSecret string
	currency      string
	timeout       time.Duration
}

// NewClient refuses a live key in test mode and the reverse, then bounds every
// gateway HTTP call by cfg.Timeout().
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	client, apiKey, err := clientFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	stripe.Key = apiKey
	stripe.SetAppInfo(&stripe.AppInfo{Name: appName})
	stripe.SetHTTPClient(&http.Client{Timeout: client.timeout})

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"stripe_env": client.environment,
			"currency":   client.currency,
			"timeout_ms": client.timeout.Milliseconds(),
		}), "stripe client initialized")
	}
	return client, nil
}

func clientFromConfig(cfg config.StripeConfig) (*Client, string, error) {
	env := strings.ToLower(strings.TrimSpace(cfg.Environment()))
	if env == "" {
		env = testEnv
	}
	prefixes, ok := keyPrefixes[env]
	if !ok {
		return nil, "", errInvalidStripeEnv
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	secret := strings.TrimSpace(cfg.Secret)
	switch {
	case apiKey == "":
		return nil, "", errAPIKeyRequired
	case secret == "":
		return nil, "", errSecretRequired
	case !strings.HasPrefix(apiKey, prefixes[0]) && !strings.HasPrefix(apiKey, prefixes[1]):
		return nil, "", fmt.Errorf("stripe environment %q requires a %s or %s key", env, prefixes[0], prefixes[1])
	}

	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	return &Client{
		environment:   env,
		signingSecret: secret,
		currency:      currency,
		timeout:       cfg.Timeout(),
	}, apiKey, nil
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// Currency is the lower-case ISO code used for new intents.
func (c *Client) Currency() string {
	if c == nil {
		return ""
	}
	return c.currency
}
