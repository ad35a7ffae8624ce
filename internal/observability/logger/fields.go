package logger

import (
	"time"

	"go.uber.org/zap"
)

// ─── Protocolo / topología ───

// ChangeID es el UUID de un cambio del protocolo.
func ChangeID(v string) zap.Field { return zap.String("change_id", v) }

// Version es la versión de configuración (posición en el historial).
func Version(v uint64) zap.Field { return zap.Uint64("config_version", v) }

func NodeName(v string) zap.Field { return zap.String("node_name", v) }

// StripeID y NodeID son los índices 1-based de las direcciones.
func StripeID(v int) zap.Field { return zap.Int("stripe_id", v) }
func NodeID(v int) zap.Field   { return zap.Int("node_id", v) }

// ─── HTTP ───

func RequestID(v string) zap.Field       { return zap.String("request_id", v) }
func Method(v string) zap.Field          { return zap.String("method", v) }
func Path(v string) zap.Field            { return zap.String("path", v) }
func Status(v int) zap.Field             { return zap.Int("status", v) }
func Bytes(v int) zap.Field              { return zap.Int("bytes", v) }
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }
func DurationMs(v int64) zap.Field       { return zap.Int64("duration_ms", v) }

// ─── Genéricos ───

func Op(v string) zap.Field           { return zap.String("op", v) }
func Err(err error) zap.Field         { return zap.Error(err) }
func Count(v int) zap.Field           { return zap.Int("count", v) }
func String(k, v string) zap.Field    { return zap.String(k, v) }
func Int(k string, v int) zap.Field   { return zap.Int(k, v) }
func Bool(k string, v bool) zap.Field { return zap.Bool(k, v) }
func Any(k string, v any) zap.Field   { return zap.Any(k, v) }
