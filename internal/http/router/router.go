// Package router arma el router chi de la API de un nodo.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	healthctrl "github.com/dropDatabas3/clusterconf/internal/http/controllers/health"
	lifectrl "github.com/dropDatabas3/clusterconf/internal/http/controllers/lifecycle"
	protoctrl "github.com/dropDatabas3/clusterconf/internal/http/controllers/protocol"
	topoctrl "github.com/dropDatabas3/clusterconf/internal/http/controllers/topology"
	httperrors "github.com/dropDatabas3/clusterconf/internal/http/errors"
	mw "github.com/dropDatabas3/clusterconf/internal/http/middlewares"
)

// Deps agrupa los controllers. Metrics es opcional (promhttp).
type Deps struct {
	Protocol  *protoctrl.Controller
	Topology  *topoctrl.Controller
	Lifecycle *lifectrl.Controller
	Health    *healthctrl.Controller
	Metrics   http.Handler
	Logger    *zap.Logger

	// RequestTimeout corta el contexto de cada request de /v1 (0 = sin límite).
	RequestTimeout time.Duration
}

// New registra todas las rutas:
//
//	GET  /healthz
//	GET  /metrics
//	GET  /v1/discover
//	GET  /v1/changes
//	POST /v1/protocol/{prepare,commit,rollback,sync}
//	GET  /v1/topology/{runtime|upcoming}
//	GET  /v1/license
//	POST /v1/restart, /v1/stop
func New(d Deps) chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httperrors.WriteError(w, req, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httperrors.WriteError(w, req, httperrors.New(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Método no permitido."))
	})

	// infra básica, sin logging (muy frecuentes)
	r.Group(func(r chi.Router) {
		r.Use(mw.WithRecover(), mw.WithRequestID())
		r.Get("/healthz", d.Health.Healthz)
		if d.Metrics != nil {
			r.Method(http.MethodGet, "/metrics", d.Metrics)
		}
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.WithRecover(), mw.WithRequestID(), mw.WithLogging(d.Logger), mw.WithMetrics())
		if d.RequestTimeout > 0 {
			r.Use(middleware.Timeout(d.RequestTimeout))
		}

		r.Get("/discover", d.Protocol.Discover)
		r.Route("/protocol", func(r chi.Router) {
			r.Post("/prepare", d.Protocol.Prepare)
			r.Post("/commit", d.Protocol.Commit)
			r.Post("/rollback", d.Protocol.Rollback)
			r.Post("/sync", d.Protocol.Sync)
		})
		r.Get("/changes", d.Protocol.History)
		r.Get("/topology/{view}", d.Topology.NodeContext)
		r.Get("/license", d.Topology.License)
		r.Post("/restart", d.Lifecycle.Restart)
		r.Post("/stop", d.Lifecycle.Stop)
	})
	return r
}
