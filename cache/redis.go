// Package cache mirrors registration records into Redis so they stay
// readable when the primary store is unreachable. The mirror is best
// effort and never load-bearing for correctness.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/iai-protocole/registration/registration"
	"github.com/redis/go-redis/v9"
)

var _ registration.Cache = &Redis{}

type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func registrationKey(id uuid.UUID) string {
	return fmt.Sprintf("registration:%s", id)
}

func (r *Redis) MirrorRegistration(ctx context.Context, record registration.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode registration %s: %w", record.ID, err)
	}

	if err := r.client.Set(ctx, registrationKey(record.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to mirror registration %s: %w", record.ID, err)
	}

	return nil
}

// GetRegistration reads a mirrored record back. The second return is
// false when the record was never mirrored (or the mirror was lost).
func (r *Redis) GetRegistration(ctx context.Context, id uuid.UUID) (registration.Record, bool, error) {
	data, err := r.client.Get(ctx, registrationKey(id)).Bytes()
	if err == redis.Nil {
		return registration.Record{}, false, nil
	}
	if err != nil {
		return registration.Record{}, false, fmt.Errorf("failed to read mirrored registration %s: %w", id, err)
	}

	var record registration.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return registration.Record{}, false, fmt.Errorf("failed to decode mirrored registration %s: %w", id, err)
	}

	return record, true, nil
}
