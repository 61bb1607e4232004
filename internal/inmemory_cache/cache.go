// шардированный in-memory кэш с TTL
// держит горячие результаты поиска и усреднённые ресейл-цены,
// чтобы не ходить в хранилище на каждый цикл мониторинга
package inmemorycache

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"
)

// cacheItem - запись кэша со временем протухания
type cacheItem struct {
	value   interface{}
	expTime time.Time
}

// shard - один шард кэша со своим мьютексом
type shard struct {
	mu    sync.RWMutex
	items map[string]cacheItem
}

// ShardedCache - кэш, разбитый на шарды по хэшу ключа (меньше контенции на мьютексах)
type ShardedCache struct {
	shards    []*shard
	numShards int
	stopChan  chan struct{}
	stopOnce  sync.Once
}

// NewShardedCache создаёт кэш с указанным количеством шардов и интервалом очистки
func NewShardedCache(numShards int, cleanUpInterval time.Duration) (*ShardedCache, error) {
	if numShards <= 0 {
		return nil, fmt.Errorf("numShards must be positive, got %d", numShards)
	}
	if numShards > 1024 {
		return nil, fmt.Errorf("numShards is too large: %d", numShards)
	}
	if cleanUpInterval < 0 {
		return nil, fmt.Errorf("cleanUpInterval must be non-negative, got %v", cleanUpInterval)
	}

	cache := &ShardedCache{
		shards:    make([]*shard, numShards),
		numShards: numShards,
		stopChan:  make(chan struct{}),
	}

	for i := 0; i < numShards; i++ {
		cache.shards[i] = &shard{items: map[string]cacheItem{}}
	}

	// фоновая очистка протухших записей; при нулевом интервале не запускаем
	if cleanUpInterval > 0 {
		go cache.cleanUp(cleanUpInterval)
	}

	return cache, nil
}

// getShard находит шард по хэшу ключа
func (c *ShardedCache) getShard(key string) *shard {
	hashf := fnv.New32a()
	_, _ = hashf.Write([]byte(key))
	return c.shards[int(hashf.Sum32())%c.numShards]
}

// GetItem возвращает значение по ключу; протухшая запись считается отсутствующей
func (c *ShardedCache) GetItem(key string) (interface{}, bool) {
	s := c.getShard(key)
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.items[key]
	if !ok || now.After(val.expTime) {
		return nil, false
	}
	return val.value, true
}

// AddItemWithTTL записывает значение с заданным временем жизни
func (c *ShardedCache) AddItemWithTTL(key string, value interface{}, ttl time.Duration) {
	s := c.getShard(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = cacheItem{
		value:   value,
		expTime: time.Now().Add(ttl),
	}
}

// DeleteItem удаляет запись по ключу
func (c *ShardedCache) DeleteItem(key string) {
	s := c.getShard(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
}

// cleanUp периодически выкидывает протухшие записи из всех шардов
func (c *ShardedCache) cleanUp(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			for _, s := range c.shards {
				s.mu.Lock()
				for key, item := range s.items {
					if now.After(item.expTime) {
						delete(s.items, key)
					}
				}
				s.mu.Unlock()
			}
		case <-c.stopChan:
			return
		}
	}
}

// Stop останавливает фоновую очистку; повторный вызов безопасен
func (c *ShardedCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}
