// Package redis implements the provider store on Redis, intended as a
// read-through cache in front of the in-memory registry.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Arashek/ADE-stable-1.0-sub004/models"
	"github.com/Arashek/ADE-stable-1.0-sub004/repositories"
)

const (
	// keyPrefixProvider is the prefix for provider record keys
	keyPrefixProvider = "router:provider:"

	// keyAllProviders is the set of all persisted record ids
	keyAllProviders = "router:providers:all"
)

// providerKey returns the Redis key for a provider record
func providerKey(id uuid.UUID) string {
	return keyPrefixProvider + id.String()
}

// ProviderStore implements repositories.ProviderStore on Redis. Records
// are stored as JSON values with the id set tracking membership.
type ProviderStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewProviderStore creates a Redis-backed provider store
func NewProviderStore(client *redis.Client, logger *zap.Logger) *ProviderStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProviderStore{client: client, logger: logger}
}

// Create stores a record and adds it to the membership set
func (s *ProviderStore) Create(ctx context.Context, record *models.ProviderRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode provider record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, providerKey(record.ID), payload, 0)
	pipe.SAdd(ctx, keyAllProviders, record.ID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store provider record: %w", err)
	}

	s.logger.Debug("provider record cached", zap.String("id", record.ID.String()))
	return nil
}

// GetByID retrieves a record, returning nil without error on miss
func (s *ProviderStore) GetByID(ctx context.Context, id uuid.UUID) (*models.ProviderRecord, error) {
	payload, err := s.client.Get(ctx, providerKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get provider record: %w", err)
	}

	record := &models.ProviderRecord{}
	if err := json.Unmarshal(payload, record); err != nil {
		return nil, fmt.Errorf("failed to decode provider record: %w", err)
	}
	return record, nil
}

// List returns all records matching the filter
func (s *ProviderStore) List(ctx context.Context, filter repositories.ProviderFilter) ([]*models.ProviderRecord, error) {
	ids, err := s.client.SMembers(ctx, keyAllProviders).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list provider ids: %w", err)
	}

	var records []*models.ProviderRecord
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.logger.Warn("skipping malformed provider id in set", zap.String("id", raw))
			continue
		}
		record, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if record == nil {
			continue
		}
		if filter.Type != "" && record.Type != filter.Type {
			continue
		}
		if filter.Capability != "" {
			if _, ok := record.CapabilityScores[filter.Capability]; !ok {
				continue
			}
		}
		records = append(records, record)
	}
	return records, nil
}

// Update replaces an existing record
func (s *ProviderStore) Update(ctx context.Context, id uuid.UUID, record *models.ProviderRecord) error {
	exists, err := s.client.Exists(ctx, providerKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to check provider record: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("provider record not found: %s", id)
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode provider record: %w", err)
	}
	if err := s.client.Set(ctx, providerKey(id), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to update provider record: %w", err)
	}
	return nil
}

// Delete removes a record and its set membership
func (s *ProviderStore) Delete(ctx context.Context, id uuid.UUID) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, providerKey(id))
	pipe.SRem(ctx, keyAllProviders, id.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete provider record: %w", err)
	}
	return nil
}
