package identity

import (
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// RedisSessionProvider looks up bearer tokens in Redis hashes written by the
// login service: session:<token> -> {user_id, display_name}.
type RedisSessionProvider struct {
	client *redis.Client
}

func NewRedisSessionProvider(client *redis.Client) *RedisSessionProvider {
	if client == nil {
		panic("identity: redis client required")
	}
	return &RedisSessionProvider{client: client}
}

func (p *RedisSessionProvider) Identify(r *http.Request) (Identity, error) {
	token := bearerToken(r)
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}
	fields, err := p.client.HGetAll(r.Context(), sessionKeyPrefix+token).Result()
	if err != nil {
		return Identity{}, fmt.Errorf("identity: session lookup: %w", err)
	}
	userID := fields["user_id"]
	if userID == "" {
		return Identity{}, ErrUnauthenticated
	}
	name := fields["display_name"]
	if name == "" {
		name = userID
	}
	return Identity{UserID: userID, DisplayName: name}, nil
}
