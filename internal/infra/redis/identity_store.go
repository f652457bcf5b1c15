package redis

import (
	"context"
	"strconv"
	"time"

	"trivia-client/internal/domain"
	"github.com/redis/go-redis/v9"
)

const identityKey = "player:identity"

// IdentityStore persists the current player identity in Redis as a hash.
// The upstream entry flow writes it; the orchestrator reads it once at
// session start.
type IdentityStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdentityStore(client *redis.Client, ttl time.Duration) *IdentityStore {
	return &IdentityStore{client: client, ttl: ttl}
}

func (s *IdentityStore) Load(ctx context.Context) (domain.Identity, error) {
	fields, err := s.client.HGetAll(ctx, identityKey).Result()
	if err != nil {
		return domain.Identity{}, err
	}
	if len(fields) == 0 {
		return domain.Identity{}, domain.ErrMissingIdentity
	}
	playerID, err := strconv.Atoi(fields["player_id"])
	if err != nil || playerID == 0 {
		return domain.Identity{}, domain.ErrMissingIdentity
	}
	return domain.Identity{
		PlayerID:    playerID,
		DisplayName: fields["display_name"],
		RoomCode:    fields["room_code"],
	}, nil
}

func (s *IdentityStore) Save(ctx context.Context, identity domain.Identity) error {
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, identityKey,
		"player_id", strconv.Itoa(identity.PlayerID),
		"display_name", identity.DisplayName,
		"room_code", identity.RoomCode,
	)
	if s.ttl > 0 {
		pipe.Expire(ctx, identityKey, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *IdentityStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, identityKey).Err()
}
