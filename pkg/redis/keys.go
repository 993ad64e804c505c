package redis

import "strings"

const keyNamespace = "coown"

// Keyspace builds namespaced keys, coown:<kind>:<parts...>. Empty parts are
// dropped.
type Keyspace struct{}

func (Keyspace) IdempotencyKey(scope, id string) string {
	return joinKey("idempotency", scope, id)
}

func (Keyspace) RateLimitKey(scope string) string {
	return joinKey("rate_limit", scope)
}

func (Keyspace) LockKey(scope, id string) string {
	return joinKey("lock", scope, id)
}

func joinKey(kind string, parts ...string) string {
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
