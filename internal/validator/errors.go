package validator

import "errors"

// ErrMalformedCluster: la topología viola un invariante.
var ErrMalformedCluster = errors.New("validator: malformed cluster")

// MalformedClusterError lleva un mensaje accionable (nombres, conteos).
type MalformedClusterError struct {
	Msg string
}

func (e *MalformedClusterError) Error() string        { return e.Msg }
func (e *MalformedClusterError) Is(target error) bool { return target == ErrMalformedCluster }
