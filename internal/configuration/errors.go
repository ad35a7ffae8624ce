package configuration

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedAddress agrupa errores de gramática y forma de una dirección.
	ErrMalformedAddress = errors.New("configuration: malformed address")
	// ErrIncompatibleConfigurations: dos direcciones sobre el mismo setting y
	// coordenadas con formas que no se pueden reconciliar (mapa completo vs clave).
	ErrIncompatibleConfigurations = errors.New("configuration: incompatible configurations")
)

// InvalidInputError envuelve cualquier fallo al parsear, validar o aplicar una
// dirección. El texto original se conserva tal cual para reportarlo.
type InvalidInputError struct {
	Input string
	Err   error
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("Invalid input: '%s'. Reason: %s", e.Input, e.Err)
}

func (e *InvalidInputError) Unwrap() error { return e.Err }

func invalid(input string, format string, args ...any) error {
	return &InvalidInputError{Input: input, Err: &shapeError{msg: fmt.Sprintf(format, args...)}}
}

func wrap(input string, err error) error {
	return &InvalidInputError{Input: input, Err: err}
}

type shapeError struct{ msg string }

func (e *shapeError) Error() string        { return e.msg }
func (e *shapeError) Is(target error) bool { return target == ErrMalformedAddress }

// IncompatibleError es el error de Duplicates cuando las formas chocan.
type IncompatibleError struct {
	A, B string
}

func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("Incompatible or duplicate configurations: '%s' and '%s'", e.A, e.B)
}

func (e *IncompatibleError) Is(target error) bool { return target == ErrIncompatibleConfigurations }
