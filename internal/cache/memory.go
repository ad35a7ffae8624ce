package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type memory struct {
	prefix string
	c      *gocache.Cache
}

// NewMemory devuelve un Client en proceso sobre go-cache; purga las
// entradas vencidas cada minuto.
func NewMemory(cfg Config) Client {
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &memory{prefix: cfg.Prefix, c: gocache.New(ttl, time.Minute)}
}

func (m *memory) key(k string) string { return m.prefix + k }

func (m *memory) Get(_ context.Context, key string) (string, error) {
	v, ok := m.c.Get(m.key(key))
	if !ok {
		return "", ErrNotFound
	}
	s, _ := v.(string)
	return s, nil
}

func (m *memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	m.c.Set(m.key(key), value, ttl)
	return nil
}

func (m *memory) Delete(_ context.Context, key string) error {
	m.c.Delete(m.key(key))
	return nil
}

func (m *memory) Len() int { return m.c.ItemCount() }
