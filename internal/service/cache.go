// Пакет service — бизнес-логика фотоальбома.
// PhotoCache — LRU-кэш записей фотографий с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/photoalbum/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pa_photo_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш фотографий.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pa_photo_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша фотографий.",
	})
)

// PhotoCache — кэш записей фотографий по ID.
// Записи неизменяемы, поэтому инвалидация нужна только по TTL.
type PhotoCache struct {
	cache *expirable.LRU[int64, *model.Photo]
}

// NewPhotoCache создаёт кэш на maxSize записей с временем жизни ttl.
func NewPhotoCache(maxSize int, ttl time.Duration) *PhotoCache {
	return &PhotoCache{
		cache: expirable.NewLRU[int64, *model.Photo](maxSize, nil, ttl),
	}
}

// Get возвращает копию записи из кэша.
func (c *PhotoCache) Get(id int64) (*model.Photo, bool) {
	p, ok := c.cache.Get(id)
	if !ok {
		cacheMissesTotal.Inc()
		return nil, false
	}
	cacheHitsTotal.Inc()
	cp := *p
	return &cp, true
}

// Set кладёт запись в кэш.
func (c *PhotoCache) Set(p *model.Photo) {
	cp := *p
	c.cache.Add(p.ID, &cp)
}

// Len — текущее количество записей.
func (c *PhotoCache) Len() int {
	return c.cache.Len()
}
