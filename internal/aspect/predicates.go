package aspect

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// predicateCache holds tag tests built by workspace-specific taggers, keyed by
// workspace and the tagger's registration index, since tag names may repeat. At most one build per key is in flight; concurrent callers
// wait for it.
type predicateCache struct {
	built *expirable.LRU[string, TagTest]
	group singleflight.Group
}

func newPredicateCache(size int, ttl time.Duration) *predicateCache {
	if size <= 0 {
		size = 256
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &predicateCache{built: expirable.NewLRU[string, TagTest](size, nil, ttl)}
}

func predicateKey(workspaceID string, slot int) string {
	return workspaceID + "\x00" + strconv.Itoa(slot)
}

func (c *predicateCache) get(ctx context.Context, workspaceID string, slot int, tag string, build func(context.Context) (TagTest, error)) (TagTest, error) {
	key := predicateKey(workspaceID, slot)
	if test, ok := c.built.Get(key); ok {
		return test, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		// A build may have completed between the Get above and entering Do.
		if test, ok := c.built.Get(key); ok {
			return test, nil
		}
		test, err := build(ctx)
		if err != nil {
			return nil, err
		}
		if test == nil {
			return nil, fmt.Errorf("tagger %s built a nil test", tag)
		}
		c.built.Add(key, test)
		return test, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(TagTest), nil
}

// invalidate drops every built test for a workspace.
func (c *predicateCache) invalidate(workspaceID string) {
	prefix := workspaceID + "\x00"
	for _, key := range c.built.Keys() {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			c.built.Remove(key)
		}
	}
}
