// Package protocol contiene los handlers HTTP de las fases del protocolo de
// cambio: discover, prepare, commit, rollback y la sincronización de
// historial de un nodo nuevo.
package protocol

import (
	"context"
	"net/http"

	httperrors "github.com/dropDatabas3/clusterconf/internal/http/errors"
	"github.com/dropDatabas3/clusterconf/internal/http/helpers"
	"github.com/dropDatabas3/clusterconf/internal/observability/logger"
	"github.com/dropDatabas3/clusterconf/internal/protocol"
)

// Service es lo que el controller necesita del lado nodo del protocolo.
type Service interface {
	Discover(ctx context.Context) (protocol.DiscoverResponse, error)
	Prepare(ctx context.Context, req protocol.PrepareRequest) protocol.PrepareResponse
	Commit(ctx context.Context, req protocol.CommitRequest) protocol.Ack
	Rollback(ctx context.Context, req protocol.RollbackRequest) protocol.Ack
	History(ctx context.Context) (protocol.History, error)
	Sync(ctx context.Context, h protocol.History) protocol.Ack
}

type Controller struct {
	service Service
}

func NewController(s Service) *Controller { return &Controller{service: s} }

// Discover maneja GET /v1/discover
func (c *Controller) Discover(w http.ResponseWriter, r *http.Request) {
	resp, err := c.service.Discover(r.Context())
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, resp)
}

// Prepare maneja POST /v1/protocol/prepare. Un rechazo es una respuesta
// normal (200, accepted=false), no un error HTTP.
func (c *Controller) Prepare(w http.ResponseWriter, r *http.Request) {
	var req protocol.PrepareRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.ChangeUUID == "" {
		httperrors.WriteError(w, r, httperrors.ErrBadRequest.WithDetail("changeUuid is required"))
		return
	}
	resp := c.service.Prepare(r.Context(), req)
	logger.From(r.Context()).Debug("prepare handled",
		logger.ChangeID(req.ChangeUUID),
		logger.Bool("accepted", resp.Accepted))
	helpers.WriteJSON(w, http.StatusOK, resp)
}

// Commit maneja POST /v1/protocol/commit
func (c *Controller) Commit(w http.ResponseWriter, r *http.Request) {
	var req protocol.CommitRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.ChangeUUID == "" {
		httperrors.WriteError(w, r, httperrors.ErrBadRequest.WithDetail("changeUuid is required"))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, c.service.Commit(r.Context(), req))
}

// Rollback maneja POST /v1/protocol/rollback
func (c *Controller) Rollback(w http.ResponseWriter, r *http.Request) {
	var req protocol.RollbackRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.ChangeUUID == "" {
		httperrors.WriteError(w, r, httperrors.ErrBadRequest.WithDetail("changeUuid is required"))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, c.service.Rollback(r.Context(), req))
}

// History maneja GET /v1/changes
func (c *Controller) History(w http.ResponseWriter, r *http.Request) {
	h, err := c.service.History(r.Context())
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, h)
}

// Sync maneja POST /v1/protocol/sync
func (c *Controller) Sync(w http.ResponseWriter, r *http.Request) {
	var h protocol.History
	if !helpers.ReadJSON(w, r, &h) {
		return
	}
	ack := c.service.Sync(r.Context(), h)
	logger.From(r.Context()).Debug("sync handled",
		logger.Count(len(h.Records)),
		logger.Bool("accepted", ack.Accepted))
	helpers.WriteJSON(w, http.StatusOK, ack)
}
