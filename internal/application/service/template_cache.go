package service

import (
	"context"
	"sync"
	"time"

	"github.com/payhub/approval-engine/internal/domain/entity"
)

// TemplateCache caches the active template set with an explicit TTL. It is
// constructed and owned by the caller that builds the template service; there
// is no package-level cache state. Invalidate must be called after any
// template administration write.
type TemplateCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	templates []*entity.WorkflowTemplate
	fetchedAt time.Time
	now       func() time.Time
}

// NewTemplateCache creates a cache with the given TTL. A zero or negative
// TTL disables caching and every Get hits the loader.
func NewTemplateCache(ttl time.Duration) *TemplateCache {
	return &TemplateCache{
		ttl: ttl,
		now: time.Now,
	}
}

// Get returns the cached active templates, falling back to loader when the
// cache is empty or stale.
func (c *TemplateCache) Get(ctx context.Context, loader func(ctx context.Context) ([]*entity.WorkflowTemplate, error)) ([]*entity.WorkflowTemplate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.templates != nil && c.ttl > 0 && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.templates, nil
	}

	templates, err := loader(ctx)
	if err != nil {
		return nil, err
	}

	c.templates = templates
	c.fetchedAt = c.now()
	return templates, nil
}

// Invalidate drops the cached set; the next Get reloads.
func (c *TemplateCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.templates = nil
}
