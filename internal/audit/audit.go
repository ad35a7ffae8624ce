// Package audit registra quién cambió la configuración del cluster y cuándo.
// Los eventos salen por el logger "audit" en JSON estructurado; un sink
// aparte (archivo, SIEM) se engancha desde la config de zap.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/clusterconf/internal/observability/logger"
)

// Eventos del protocolo.
const (
	EventChangeCommitted  = "change.committed"
	EventChangeRolledBack = "change.rolled_back"
	EventHistorySynced    = "history.synced"
)

// Event es un registro de auditoría.
type Event struct {
	Name    string
	Change  string
	Summary string
	User    string
	Host    string
	Version uint64
}

// Sink recibe los eventos. El default escribe en el logger "audit".
type Sink interface {
	Write(ctx context.Context, e Event)
}

type SinkFunc func(ctx context.Context, e Event)

func (f SinkFunc) Write(ctx context.Context, e Event) { f(ctx, e) }

// LogSink escribe cada evento como una línea de log. Sin Logger usa el del
// contexto (con el request id que dejó el middleware) o el global.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Write(ctx context.Context, e Event) {
	l := s.Logger
	if l == nil {
		l = logger.From(ctx).Named("audit")
	}
	fields := []zap.Field{
		zap.String("event", e.Name),
		logger.ChangeID(e.Change),
		zap.String("ts", time.Now().UTC().Format(time.RFC3339Nano)),
	}
	if e.Summary != "" {
		fields = append(fields, zap.String("summary", e.Summary))
	}
	if e.User != "" {
		fields = append(fields, zap.String("user", e.User), zap.String("host", e.Host))
	}
	if e.Version > 0 {
		fields = append(fields, logger.Version(e.Version))
	}
	l.Info("audit", fields...)
}
