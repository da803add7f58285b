package storage

import (
	"fmt"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemCachedClient connects to the memcached instance backing the login-info
// cache. The idle pool is sized for one connection per concurrent login.
func MemCachedClient(address string, port int) *memcache.Client {
	client := memcache.New(fmt.Sprintf("%s:%d", address, port))
	client.MaxIdleConns = 1000
	return client
}
