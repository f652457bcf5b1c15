package memory

import (
	"context"
	"testing"
	"time"

	"trivia-client/internal/domain"
)

type countingSource struct {
	calls   int
	entries []domain.LeaderboardEntry
}

func (s *countingSource) Leaderboard(context.Context) ([]domain.LeaderboardEntry, error) {
	s.calls++
	return s.entries, nil
}

func TestLeaderboardCacheHitsSourceOnce(t *testing.T) {
	source := &countingSource{entries: []domain.LeaderboardEntry{
		{PlayerName: "Alice", HighScore: 90, Rank: 1},
	}}
	cache := NewLeaderboardCache(source, time.Minute)

	entries, err := cache.Leaderboard(context.Background())
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 1 || source.calls != 1 {
		t.Fatalf("expected one fetch, got calls=%d entries=%d", source.calls, len(entries))
	}

	// Second call should hit the cache.
	if _, err := cache.Leaderboard(context.Background()); err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected cache hit, calls=%d", source.calls)
	}
}

func TestLeaderboardCacheExpires(t *testing.T) {
	source := &countingSource{entries: []domain.LeaderboardEntry{{PlayerName: "Alice"}}}
	cache := NewLeaderboardCache(source, time.Minute)

	now := time.Now()
	cache.clock = func() time.Time { return now }

	if _, err := cache.Leaderboard(context.Background()); err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := cache.Leaderboard(context.Background()); err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if source.calls != 2 {
		t.Fatalf("expected refresh after expiry, calls=%d", source.calls)
	}
}
