package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const protocolIndexKeyPrefix = "protocol:contract:"

// ProtocolIndex maps lowercased contract addresses to protocol IDs in Redis
// so scan cycles resolve pools without walking the full protocol list.
type ProtocolIndex struct {
	cache *RedisCache
}

// NewProtocolIndex creates a new protocol index
func NewProtocolIndex(cache *RedisCache) *ProtocolIndex {
	return &ProtocolIndex{cache: cache}
}

func protocolIndexKey(contractAddress string) string {
	return protocolIndexKeyPrefix + strings.ToLower(contractAddress)
}

// Set records the protocol ID for a contract address
func (i *ProtocolIndex) Set(ctx context.Context, contractAddress, protocolID string) error {
	if err := i.cache.Client().Set(ctx, protocolIndexKey(contractAddress), protocolID, 0).Err(); err != nil {
		return fmt.Errorf("failed to index protocol contract: %w", err)
	}
	return nil
}

// Get returns the protocol ID for a contract address, or "" on a miss
func (i *ProtocolIndex) Get(ctx context.Context, contractAddress string) (string, error) {
	id, err := i.cache.Client().Get(ctx, protocolIndexKey(contractAddress)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to look up protocol contract: %w", err)
	}
	return id, nil
}

// Delete removes a contract address from the index
func (i *ProtocolIndex) Delete(ctx context.Context, contractAddress string) error {
	if err := i.cache.Client().Del(ctx, protocolIndexKey(contractAddress)).Err(); err != nil {
		return fmt.Errorf("failed to remove protocol contract from index: %w", err)
	}
	return nil
}

// Warm seeds the index from the stored protocol list. Called at startup so
// restarts do not depend on Redis persistence.
func (i *ProtocolIndex) Warm(ctx context.Context, repo *ProtocolRepository) error {
	protocols, err := repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to warm protocol index: %w", err)
	}
	for _, p := range protocols {
		if err := i.Set(ctx, p.ContractAddress, p.ID.String()); err != nil {
			return err
		}
	}
	return nil
}
