package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/dropDatabas3/clusterconf/internal/configuration"
	"github.com/dropDatabas3/clusterconf/internal/manager"
	"github.com/dropDatabas3/clusterconf/internal/protocol"
	"github.com/dropDatabas3/clusterconf/internal/setting"
	"github.com/dropDatabas3/clusterconf/internal/validator"
)

// AppError es el error estándar que devuelve la API de un nodo.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // causa, sólo para logs
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func New(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

// WithDetail devuelve una COPIA con el detalle dado.
func (e *AppError) WithDetail(detail string) *AppError {
	out := *e
	out.Detail = detail
	return &out
}

// WithCause devuelve una COPIA con la causa dada.
func (e *AppError) WithCause(err error) *AppError {
	out := *e
	out.Err = err
	return &out
}

// FromError traduce errores de las otras capas. Lo desconocido es un 500
// que conserva la causa.
func FromError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	switch {
	case stderrors.Is(err, configuration.ErrMalformedAddress),
		stderrors.Is(err, setting.ErrInvalidValue),
		stderrors.Is(err, setting.ErrUnknownSetting):
		return ErrInvalidInput.WithDetail(err.Error()).WithCause(err)
	case stderrors.Is(err, setting.ErrOperationNotPermitted):
		return ErrOperationNotPermitted.WithDetail(err.Error()).WithCause(err)
	case stderrors.Is(err, validator.ErrMalformedCluster):
		return ErrMalformedCluster.WithDetail(err.Error()).WithCause(err)
	case stderrors.Is(err, manager.ErrDelayTooShort):
		return ErrBadRequest.WithDetail(err.Error()).WithCause(err)
	case stderrors.Is(err, manager.ErrSchedulerStopped):
		return ErrServiceUnavailable.WithCause(err)
	case stderrors.Is(err, protocol.ErrRejected), stderrors.Is(err, protocol.ErrInconsistent):
		return ErrConflict.WithDetail(err.Error()).WithCause(err)
	}
	return ErrInternalServerError.WithCause(err)
}

// ─── 400 ───

var (
	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "La solicitud contiene sintaxis inválida o parámetros faltantes.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidJSON = &AppError{
		Code:       "INVALID_JSON",
		Message:    "El cuerpo de la solicitud no es un JSON válido.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidParameter = &AppError{
		Code:       "INVALID_PARAMETER",
		Message:    "Uno de los parámetros de la URL es inválido.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrBodyTooLarge = &AppError{
		Code:       "BODY_TOO_LARGE",
		Message:    "El cuerpo de la solicitud excede el tamaño máximo permitido.",
		HTTPStatus: http.StatusRequestEntityTooLarge,
	}

	ErrInvalidInput = &AppError{
		Code:       "INVALID_INPUT",
		Message:    "La dirección de configuración es inválida.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrOperationNotPermitted = &AppError{
		Code:       "OPERATION_NOT_PERMITTED",
		Message:    "La operación no está permitida para ese setting.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrMalformedCluster = &AppError{
		Code:       "MALFORMED_CLUSTER",
		Message:    "La topología resultante no es válida.",
		HTTPStatus: http.StatusBadRequest,
	}
)

// ─── 404 / 409 ───

var (
	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "El recurso solicitado no existe.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrConflict = &AppError{
		Code:       "CONFLICT",
		Message:    "El cambio fue rechazado por el cluster.",
		HTTPStatus: http.StatusConflict,
	}
)

// ─── 5xx ───

var (
	ErrInternalServerError = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Ocurrió un error inesperado en el servidor.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrServiceUnavailable = &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    "El nodo se está deteniendo.",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)
