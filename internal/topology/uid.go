package topology

import (
	"fmt"

	"github.com/google/uuid"
)

// UID identifica de forma global un cluster, stripe o nodo.
type UID string

// NewUID genera un UID aleatorio (UUID v4).
func NewUID() UID { return UID(uuid.NewString()) }

func (u UID) String() string { return string(u) }

func (u UID) IsZero() bool { return u == "" }

// ParseUID valida el formato UUID.
func ParseUID(s string) (UID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid UID: '%s'", s)
	}
	return UID(id.String()), nil
}
