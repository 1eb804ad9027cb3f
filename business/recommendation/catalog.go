package recommendation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"toolAdvisor/domain"
)

// MemoryCatalog is an in-process ToolProvider, used when no database is
// configured and in tests.
type MemoryCatalog struct {
	mu    sync.RWMutex
	tools map[string]domain.Tool
}

var _ ToolProvider = (*MemoryCatalog)(nil)

func NewMemoryCatalog(tools ...domain.Tool) *MemoryCatalog {
	c := &MemoryCatalog{tools: make(map[string]domain.Tool, len(tools))}
	for _, t := range tools {
		c.tools[t.ID] = t
	}
	return c
}

func (c *MemoryCatalog) GetTool(ctx context.Context, id string) (*domain.Tool, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tools[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, id)
	}
	return &t, nil
}

// ListTools returns the catalog ordered by id.
func (c *MemoryCatalog) ListTools(ctx context.Context) ([]domain.Tool, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Tool, 0, len(c.tools))
	for _, t := range c.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *MemoryCatalog) Upsert(t domain.Tool) {
	c.mu.Lock()
	c.tools[t.ID] = t
	c.mu.Unlock()
}
