package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"studentfees/internal/domain"
)

// DefaultTransactionCacheTTL bounds how long a resolved transaction is served
// from cache.
const DefaultTransactionCacheTTL = 10 * time.Minute

const transactionCachePrefix = "cache:mpesa:txn:"

// CacheStore caches resolved transactions for client status polling.
type CacheStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCacheStore creates a new CacheStore. A non-positive ttl selects the default.
func NewCacheStore(client *redis.Client, ttl time.Duration) *CacheStore {
	if ttl <= 0 {
		ttl = DefaultTransactionCacheTTL
	}
	return &CacheStore{client: client, ttl: ttl}
}

// GetTransaction retrieves a transaction from cache. It returns nil, nil on a miss.
func (s *CacheStore) GetTransaction(ctx context.Context, checkoutID string) (*domain.PendingTransaction, error) {
	data, err := s.client.Get(ctx, transactionCachePrefix+checkoutID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var txn domain.PendingTransaction
	if err := json.Unmarshal(data, &txn); err != nil {
		return nil, err
	}
	return &txn, nil
}

// SetTransaction stores a transaction in cache. Only resolved transactions
// are cached; an initiated one is still expected to change.
func (s *CacheStore) SetTransaction(ctx context.Context, txn *domain.PendingTransaction) error {
	if !txn.Status.IsTerminal() {
		return nil
	}
	data, err := json.Marshal(txn)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, transactionCachePrefix+txn.CheckoutRequestID, data, s.ttl).Err()
}
