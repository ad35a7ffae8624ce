// Package cache guarda valores efímeros con TTL. El servidor del protocolo
// recuerda ahí cómo terminó cada cambio (committed / rolled back) para que
// un commit o rollback repetido conteste lo mismo.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound: la key no existe o ya venció.
var ErrNotFound = errors.New("cache: key not found")

// Client es un cache string → string. Los métodos reciben ctx aunque la
// implementación en memoria no lo use.
type Client interface {
	Get(ctx context.Context, key string) (string, error)
	// Set con ttl <= 0 usa el TTL por defecto del cliente.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Len cuenta las entradas, incluidas las vencidas aún no purgadas.
	Len() int
}

type Config struct {
	Prefix     string
	DefaultTTL time.Duration // 0: sin vencimiento
}
