package redis

import "strings"

const keyNamespace = "sf"

// Key families. Every key is sf:<family>:<parts...>.
const (
	familyIdempotency = "idempotency"
	familyRateLimit   = "rate_limit"
	familyCounter     = "counter"
	familySession     = "session"
	familyCart        = "cart"
)

// orderSuffix names the sorted set that remembers hash field insertion order.
const orderSuffix = ":order"

func key(family string, parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	b.WriteByte(':')
	b.WriteString(family)
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			b.WriteByte(':')
			b.WriteString(p)
		}
	}
	return b.String()
}

func (c *Client) IdempotencyKey(scope, id string) string { return key(familyIdempotency, scope, id) }
func (c *Client) RateLimitKey(scope string) string       { return key(familyRateLimit, scope) }
func (c *Client) CounterKey(name string) string          { return key(familyCounter, name) }
func (c *Client) SessionKey(sessionID string) string     { return key(familySession, sessionID) }
func (c *Client) CartKey(sessionID string) string        { return key(familyCart, sessionID) }

func orderKey(hashKey string) string { return hashKey + orderSuffix }
