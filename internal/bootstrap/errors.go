package bootstrap

import "errors"

// ErrMalformedShape: los IDs de stripe/nodo no empiezan en 1 o tienen huecos.
var ErrMalformedShape = errors.New("bootstrap: malformed cluster shape")

type shapeError struct{ msg string }

func (e *shapeError) Error() string        { return e.msg }
func (e *shapeError) Is(target error) bool { return target == ErrMalformedShape }
