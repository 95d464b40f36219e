package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/authware/rbac-core/pkg/logger"
)

// noopCache is an in-memory, process-local fallback that satisfies Valkey
// when the external cache is unavailable. Data is not shared across
// replicas and is lost on restart; entries never expire.
type noopCache struct {
	m  map[string][]byte
	mu sync.RWMutex
}

func NewNoop(log logger.Logger) Valkey {
	log.Warn("Valkey cache unavailable; using in-memory fallback (noop)")
	return &noopCache{m: make(map[string][]byte)}
}

func (n *noopCache) Get(ctx context.Context, key string) ([]byte, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	b, ok := n.m[key]
	if !ok {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	return b, nil
}

func (n *noopCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		jb, err := json.Marshal(v)
		if err != nil {
			return err
		}
		b = jb
	}
	n.mu.Lock()
	n.m[key] = b
	n.mu.Unlock()
	return nil
}

func (n *noopCache) Delete(ctx context.Context, key string) error {
	n.mu.Lock()
	delete(n.m, key)
	n.mu.Unlock()
	return nil
}

func (n *noopCache) DeletePattern(ctx context.Context, pattern string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for k := range n.m {
		if globMatch(pattern, k) {
			delete(n.m, k)
		}
	}
	return nil
}

// globMatch implements the server-side glob semantics where `*` matches
// any run of characters, slashes included. Only `*` is supported; keys
// never carry the other glob metacharacters.
func globMatch(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	for _, part := range parts[1 : len(parts)-1] {
		i := strings.Index(s, part)
		if i < 0 {
			return false
		}
		s = s[i+len(part):]
	}
	return strings.HasSuffix(s, parts[len(parts)-1])
}
