// Package inmemcache keeps cache slots in process memory. Nothing survives a restart.
package inmemcache

import (
	"context"
	"sync"

	"github.com/tobias-barakaa/newschool-sub008/core/timetable"
)

type Cache struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

var _ timetable.Cache = (*Cache)(nil)

func New() *Cache {
	return &Cache{slots: make(map[string][]byte)}
}

func (c *Cache) Get(_ context.Context, slot string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, ok := c.slots[slot]
	if !ok {
		return nil, timetable.ErrCacheMiss
	}
	return append([]byte(nil), data...), nil
}

func (c *Cache) Put(_ context.Context, slot string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots[slot] = append([]byte(nil), data...)
	return nil
}

func (c *Cache) Delete(_ context.Context, slot string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.slots, slot)
	return nil
}
