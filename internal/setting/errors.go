package setting

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidValue: el valor no pasa el validador del setting.
	ErrInvalidValue = errors.New("setting: invalid value")
	// ErrOperationNotPermitted: dirección bien formada pero operación prohibida en ese scope.
	ErrOperationNotPermitted = errors.New("setting: operation not permitted")
	// ErrUnresolvedPlaceholder: un default requerido sigue teniendo placeholders sin resolver.
	ErrUnresolvedPlaceholder = errors.New("setting: unresolved placeholder")
	// ErrUnknownSetting: nombre fuera del catálogo.
	ErrUnknownSetting = errors.New("setting: unknown setting")
)

// ValueError describe un valor inválido. Si Key no está vacío el fallo es
// de una entrada de mapa o de una sub-parte (medida) y el mensaje queda
// "<setting>.<key> is invalid: <razón>".
type ValueError struct {
	Setting string
	Key     string
	Reason  string
}

func (e *ValueError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s.%s is invalid: %s", e.Setting, e.Key, e.Reason)
	}
	return fmt.Sprintf("%s is invalid: %s", e.Setting, e.Reason)
}

func (e *ValueError) Is(target error) bool { return target == ErrInvalidValue }

// OperationError: el setting no permite la operación en el scope indicado.
type OperationError struct {
	Setting   string
	Operation Operation
	Scope     Scope
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("Setting '%s' does not allow operation '%s' at %s level", e.Setting, e.Operation, e.Scope)
}

func (e *OperationError) Is(target error) bool { return target == ErrOperationNotPermitted }
