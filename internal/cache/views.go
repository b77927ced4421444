package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

func viewsKey(articleID string) string { return "views:article:" + articleID }

// IncrView увеличивает счётчик просмотров статьи и возвращает новое значение.
func (c *Cache) IncrView(ctx context.Context, articleID string) (int64, error) {
	const op = "cache.IncrView"
	n, err := c.db.Incr(ctx, viewsKey(articleID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// Views возвращает счётчики просмотров; статьи без просмотров получают 0.
func (c *Cache) Views(ctx context.Context, articleIDs ...string) (map[string]int64, error) {
	const op = "cache.Views"
	out := make(map[string]int64, len(articleIDs))
	if len(articleIDs) == 0 {
		return out, nil
	}

	pipe := c.db.Pipeline()
	cmds := make([]*redis.StringCmd, len(articleIDs))
	for i, id := range articleIDs {
		cmds[i] = pipe.Get(ctx, viewsKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for i, cmd := range cmds {
		n, err := cmd.Int64()
		if errors.Is(err, redis.Nil) {
			out[articleIDs[i]] = 0
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out[articleIDs[i]] = n
	}
	return out, nil
}
