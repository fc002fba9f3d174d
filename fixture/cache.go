package fixture

import (
	"sync"
)

// memoCache memoizes downloaded payloads keyed by file name
type memoCache[T any] struct {
	data sync.Map
}

func (c *memoCache[T]) Load(key string) (T, bool) {
	value, ok := c.data.Load(key)
	if !ok {
		var zero T
		return zero, false
	}
	return value.(T), true
}

func (c *memoCache[T]) Store(key string, value T) {
	c.data.Store(key, value)
}

func (c *memoCache[T]) Clear() {
	c.data.Range(func(key, _ any) bool {
		c.data.Delete(key)
		return true
	})
}
