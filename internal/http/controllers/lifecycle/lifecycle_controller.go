// Package lifecycle programa restart y stop diferidos del nodo.
package lifecycle

import (
	"net/http"
	"time"

	httperrors "github.com/dropDatabas3/clusterconf/internal/http/errors"
	"github.com/dropDatabas3/clusterconf/internal/http/helpers"
	"github.com/dropDatabas3/clusterconf/internal/observability/logger"
	"github.com/dropDatabas3/clusterconf/internal/protocol"
)

type Scheduler interface {
	Restart(delay time.Duration) error
	Stop(delay time.Duration) error
}

type Controller struct {
	scheduler Scheduler
}

func NewController(s Scheduler) *Controller { return &Controller{scheduler: s} }

// Restart maneja POST /v1/restart
func (c *Controller) Restart(w http.ResponseWriter, r *http.Request) {
	c.schedule(w, r, "restart", c.scheduler.Restart)
}

// Stop maneja POST /v1/stop
func (c *Controller) Stop(w http.ResponseWriter, r *http.Request) {
	c.schedule(w, r, "stop", c.scheduler.Stop)
}

func (c *Controller) schedule(w http.ResponseWriter, r *http.Request, action string, fn func(time.Duration) error) {
	var req protocol.ScheduleRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	delay := time.Duration(req.DelayMs) * time.Millisecond
	if err := fn(delay); err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	logger.From(r.Context()).Info("action scheduled", logger.Op(action), logger.Duration(delay))
	helpers.WriteJSON(w, http.StatusAccepted, map[string]any{"action": action, "delayMs": req.DelayMs})
}
