package redis

import "strings"

// Every key lives under "cm:<kind>:...".
const (
	keyNamespace = "cm"

	kindIdempotency = "idempotency"
	kindRateLimit   = "rate_limit"
	kindLock        = "lock"
)

func namespaced(kind string, parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	b.WriteByte(':')
	b.WriteString(kind)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}

// IdempotencyKey is the key for a replay guard, e.g. cm:idempotency:stripe_webhook:evt_1.
func (c *Client) IdempotencyKey(scope, id string) string {
	return namespaced(kindIdempotency, scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return namespaced(kindRateLimit, scope)
}

// LockKey names a distributed lease such as the cron-worker lock.
func (c *Client) LockKey(name string) string {
	return namespaced(kindLock, name)
}
