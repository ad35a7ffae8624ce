// Package errors define el formato de error de la API HTTP de un nodo.
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/dropDatabas3/clusterconf/internal/observability/logger"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// WriteError escribe err como JSON. Los 5xx se loguean con su causa usando
// el logger del request.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := FromError(err)
	if appErr.HTTPStatus >= 500 && r != nil {
		logger.From(r.Context()).Error("request failed",
			logger.Status(appErr.HTTPStatus),
			logger.Err(appErr.Err))
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
	})
}
