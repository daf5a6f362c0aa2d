package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const nonceTTL = 5 * time.Minute

// NonceStore issues and consumes one-time login nonces per wallet address.
type NonceStore interface {
	Issue(ctx context.Context, address string) (string, error)
	// Consume returns the pending nonce for the address and invalidates it.
	Consume(ctx context.Context, address string) (string, error)
}

var ErrNoNonce = errors.New("no pending nonce for address")

func newNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// RedisNonceStore keeps nonces in redis with a TTL, so login survives
// restarts and works across replicas.
type RedisNonceStore struct {
	client *redis.Client
}

func NewRedisNonceStore(client *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{client: client}
}

func nonceKey(address string) string {
	return "certproof:nonce:" + strings.ToLower(address)
}

func (s *RedisNonceStore) Issue(ctx context.Context, address string) (string, error) {
	nonce, err := newNonce()
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, nonceKey(address), nonce, nonceTTL).Err(); err != nil {
		return "", fmt.Errorf("store nonce: %w", err)
	}
	return nonce, nil
}

func (s *RedisNonceStore) Consume(ctx context.Context, address string) (string, error) {
	nonce, err := s.client.GetDel(ctx, nonceKey(address)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoNonce
	}
	if err != nil {
		return "", fmt.Errorf("consume nonce: %w", err)
	}
	return nonce, nil
}

// MemoryNonceStore is the single-node fallback when redis is not configured.
type MemoryNonceStore struct {
	mu     sync.Mutex
	nonces map[string]memoryNonce
}

type memoryNonce struct {
	value   string
	expires time.Time
}

func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{nonces: make(map[string]memoryNonce)}
}

func (s *MemoryNonceStore) Issue(ctx context.Context, address string) (string, error) {
	nonce, err := newNonce()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.nonces[strings.ToLower(address)] = memoryNonce{value: nonce, expires: time.Now().Add(nonceTTL)}
	s.mu.Unlock()
	return nonce, nil
}

func (s *MemoryNonceStore) Consume(ctx context.Context, address string) (string, error) {
	key := strings.ToLower(address)
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.nonces[key]
	if !ok || time.Now().After(entry.expires) {
		delete(s.nonces, key)
		return "", ErrNoNonce
	}
	delete(s.nonces, key)
	return entry.value, nil
}
