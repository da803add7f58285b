package storage

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisClient connects to the redis instance holding the per-user feed
// timelines. Connection errors surface on first use, not here.
func RedisClient(address string, port int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", address, port),
		DB:   0,
	})
}
