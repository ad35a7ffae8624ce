// Package health contiene el handler de /healthz.
package health

import (
	"net/http"

	"github.com/dropDatabas3/clusterconf/internal/http/helpers"
	"github.com/dropDatabas3/clusterconf/internal/topology"
)

type StateReader interface {
	State() topology.ClusterState
	RestartRequired() bool
}

type Response struct {
	Status          string `json:"status"`
	State           string `json:"state"`
	RestartRequired bool   `json:"restartRequired"`
	Version         string `json:"version,omitempty"`
}

type Controller struct {
	state   StateReader
	version string
}

func NewController(s StateReader, version string) *Controller {
	return &Controller{state: s, version: version}
}

// Healthz maneja GET /healthz. Un nodo sin activar también está sano.
func (c *Controller) Healthz(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, Response{
		Status:          "ok",
		State:           c.state.State().String(),
		RestartRequired: c.state.RestartRequired(),
		Version:         c.version,
	})
}
