package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/IUBLibTech/ipguide/internal/model"
)

const lookupTTL = 24 * time.Hour

// RedisRepository caches per-address lookup results so repeated
// queries skip the trie walk entirely.
type RedisRepository struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisRepository(client *redis.Client, logger *zap.Logger) *RedisRepository {
	return &RedisRepository{
		client: client,
		logger: logger,
	}
}

func (r *RedisRepository) SetLookup(ctx context.Context, ip string, rec *model.NetworkRecord) error {
	value := fmt.Sprintf("%s|%d|%s", rec.Network, rec.ASN, rec.Country)
	err := r.client.Set(ctx, "lookup:"+ip, value, lookupTTL).Err()
	if err != nil {
		r.logger.Error("failed to cache lookup result",
			zap.String("ip", ip),
			zap.Error(err))
	}
	return err
}

// GetLookup returns the cached record for ip, or nil on a miss.
func (r *RedisRepository) GetLookup(ctx context.Context, ip string) (*model.NetworkRecord, error) {
	value, err := r.client.Get(ctx, "lookup:"+ip).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("failed to get lookup result from cache",
			zap.String("ip", ip),
			zap.Error(err))
		return nil, err
	}

	parts := strings.SplitN(value, "|", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid cached lookup format: %q", value)
	}
	asn, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid cached ASN: %q", parts[1])
	}

	return &model.NetworkRecord{
		Network: parts[0],
		ASN:     asn,
		Country: parts[2],
	}, nil
}
