// Package topology expone las vistas runtime/upcoming y la licencia del nodo.
package topology

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	httperrors "github.com/dropDatabas3/clusterconf/internal/http/errors"
	"github.com/dropDatabas3/clusterconf/internal/http/helpers"
	"github.com/dropDatabas3/clusterconf/internal/manager"
	"github.com/dropDatabas3/clusterconf/internal/topology"
)

type Reader interface {
	RuntimeNodeContext() topology.NodeContext
	UpcomingNodeContext() topology.NodeContext
}

type LicenseReader interface {
	License() (manager.License, bool)
}

type Controller struct {
	topology Reader
	license  LicenseReader
}

func NewController(t Reader, l LicenseReader) *Controller {
	return &Controller{topology: t, license: l}
}

// NodeContext maneja GET /v1/topology/{view} con view runtime|upcoming.
func (c *Controller) NodeContext(w http.ResponseWriter, r *http.Request) {
	var nc topology.NodeContext
	switch view := chi.URLParam(r, "view"); view {
	case "runtime":
		nc = c.topology.RuntimeNodeContext()
	case "upcoming":
		nc = c.topology.UpcomingNodeContext()
	default:
		httperrors.WriteError(w, r, httperrors.ErrInvalidParameter.WithDetail("view must be runtime or upcoming, got: "+view))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, nc)
}

// License maneja GET /v1/license
func (c *Controller) License(w http.ResponseWriter, r *http.Request) {
	lic, ok := c.license.License()
	if !ok {
		httperrors.WriteError(w, r, httperrors.ErrNotFound.WithDetail("no license installed"))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, lic)
}
