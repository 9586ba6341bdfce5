package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/progress-ranking/internal/domain/ranking"
	"github.com/alem-hub/progress-ranking/internal/domain/shared"
)

// RankingBoard implements ranking.Board. Each month keeps a sorted set of
// totals and a hash of full breakdowns; both expire together.
type RankingBoard struct {
	cache *Cache
	ttl   time.Duration
}

// NewRankingBoard creates a RankingBoard. A non-positive ttl uses TTLRankingBoard.
func NewRankingBoard(cache *Cache, ttl time.Duration) *RankingBoard {
	if ttl <= 0 {
		ttl = TTLRankingBoard
	}
	return &RankingBoard{cache: cache, ttl: ttl}
}

// Publish implements ranking.Board. A recomputed breakdown replaces the old one.
func (b *RankingBoard) Publish(ctx context.Context, month ranking.Month, studentID string, bd ranking.Breakdown) error {
	data, err := json.Marshal(bd)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	scoresKey := RankingScoresKey(month.String())
	breakdownsKey := RankingBreakdownsKey(month.String())

	_, err = b.cache.Client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, scoresKey, redis.Z{Score: float64(bd.Total), Member: studentID})
		pipe.HSet(ctx, breakdownsKey, studentID, data)
		pipe.Expire(ctx, scoresKey, b.ttl)
		pipe.Expire(ctx, breakdownsKey, b.ttl)
		return nil
	})
	if err != nil {
		return shared.WrapError("redis", "Publish", shared.ErrServiceUnavailable, "publish breakdown", err)
	}
	return nil
}

// Top implements ranking.Board. Equal totals share a position.
func (b *RankingBoard) Top(ctx context.Context, month ranking.Month, limit int) ([]ranking.Standing, error) {
	if limit <= 0 {
		return nil, nil
	}

	client := b.cache.Client()
	entries, err := client.ZRevRangeWithScores(ctx, RankingScoresKey(month.String()), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, shared.WrapError("redis", "Top", shared.ErrServiceUnavailable, "read scores", err)
	}
	if len(entries) == 0 {
		return []ranking.Standing{}, nil
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = memberString(e.Member)
	}

	raw, err := client.HMGet(ctx, RankingBreakdownsKey(month.String()), ids...).Result()
	if err != nil {
		return nil, shared.WrapError("redis", "Top", shared.ErrServiceUnavailable, "read breakdowns", err)
	}

	standings := make([]ranking.Standing, 0, len(entries))
	position := 0
	for i, e := range entries {
		if i == 0 || e.Score != entries[i-1].Score {
			position = i + 1
		}
		bd, err := decodeBreakdown(raw[i])
		if err != nil {
			return nil, err
		}
		standings = append(standings, ranking.Standing{Position: position, StudentID: ids[i], Breakdown: bd})
	}
	return standings, nil
}

// Get implements ranking.Board.
func (b *RankingBoard) Get(ctx context.Context, month ranking.Month, studentID string) (*ranking.Standing, error) {
	client := b.cache.Client()
	scoresKey := RankingScoresKey(month.String())

	data, err := client.HGet(ctx, RankingBreakdownsKey(month.String()), studentID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shared.WrapError("redis", "Get", shared.ErrNotFound,
				fmt.Sprintf("no breakdown for %s in %s", studentID, month), nil)
		}
		return nil, shared.WrapError("redis", "Get", shared.ErrServiceUnavailable, "read breakdown", err)
	}

	bd, err := decodeBreakdown(data)
	if err != nil {
		return nil, err
	}

	// Position is one plus the number of strictly higher totals.
	higher, err := client.ZCount(ctx, scoresKey, fmt.Sprintf("(%d", bd.Total), "+inf").Result()
	if err != nil {
		return nil, shared.WrapError("redis", "Get", shared.ErrServiceUnavailable, "read position", err)
	}

	return &ranking.Standing{Position: int(higher) + 1, StudentID: studentID, Breakdown: bd}, nil
}

// Retain implements ranking.Board. Scores and breakdowns of students outside
// keep are removed together.
func (b *RankingBoard) Retain(ctx context.Context, month ranking.Month, keep []string) (int, error) {
	scoresKey := RankingScoresKey(month.String())
	breakdownsKey := RankingBreakdownsKey(month.String())
	client := b.cache.Client()

	members, err := client.ZRange(ctx, scoresKey, 0, -1).Result()
	if err != nil {
		return 0, shared.WrapError("redis", "Retain", shared.ErrServiceUnavailable, "read members", err)
	}
	fields, err := client.HKeys(ctx, breakdownsKey).Result()
	if err != nil {
		return 0, shared.WrapError("redis", "Retain", shared.ErrServiceUnavailable, "read breakdown fields", err)
	}

	staleScores := staleMembers(members, keep)
	staleBreakdowns := staleMembers(fields, keep)
	if len(staleScores) == 0 && len(staleBreakdowns) == 0 {
		return 0, nil
	}

	_, err = client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(staleScores) > 0 {
			zmembers := make([]interface{}, len(staleScores))
			for i, m := range staleScores {
				zmembers[i] = m
			}
			pipe.ZRem(ctx, scoresKey, zmembers...)
		}
		if len(staleBreakdowns) > 0 {
			pipe.HDel(ctx, breakdownsKey, staleBreakdowns...)
		}
		return nil
	})
	if err != nil {
		return 0, shared.WrapError("redis", "Retain", shared.ErrServiceUnavailable, "remove stale entries", err)
	}
	return max(len(staleScores), len(staleBreakdowns)), nil
}

// staleMembers returns the members not in keep, in their original order.
func staleMembers(members, keep []string) []string {
	kept := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		kept[id] = struct{}{}
	}
	var stale []string
	for _, m := range members {
		if _, ok := kept[m]; !ok {
			stale = append(stale, m)
		}
	}
	return stale
}

func memberString(member interface{}) string {
	switch m := member.(type) {
	case string:
		return m
	case []byte:
		return string(m)
	default:
		return fmt.Sprint(m)
	}
}

func decodeBreakdown(raw interface{}) (ranking.Breakdown, error) {
	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	case nil:
		return ranking.Breakdown{}, shared.WrapError("redis", "decodeBreakdown", shared.ErrNotFound, "breakdown missing", nil)
	default:
		return ranking.Breakdown{}, fmt.Errorf("%w: unexpected %T", ErrCacheSerialization, raw)
	}

	var bd ranking.Breakdown
	if err := json.Unmarshal(data, &bd); err != nil {
		return ranking.Breakdown{}, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return bd, nil
}

var _ ranking.Board = (*RankingBoard)(nil)
