// Package change define los cambios de topología que viajan por el
// protocolo de cambio distribuido. Cada cambio es serializable dentro de un
// sobre {type, payload}.
package change

import (
	"encoding/json"
	"fmt"

	"github.com/dropDatabas3/clusterconf/internal/topology"
)

// Type define el catálogo de cambios.
type Type string

const (
	TypeSetting           Type = "setting"
	TypeNodeAddition      Type = "node-addition"
	TypeNodeRemoval       Type = "node-removal"
	TypeStripeAddition    Type = "stripe-addition"
	TypeStripeRemoval     Type = "stripe-removal"
	TypeClusterActivation Type = "cluster-activation"
)

// Change es una mutación tipada de la topología.
type Change interface {
	Type() Type
	// Summary es una descripción corta para logs y discover.
	Summary() string
	// Apply devuelve una copia de c con el cambio aplicado. No muta c.
	Apply(c *topology.Cluster) (*topology.Cluster, error)
	// CanUpdateRuntimeTopology indica si el cambio puede aplicarse en
	// caliente en el nodo dado, además de quedar en la topología upcoming.
	CanUpdateRuntimeTopology(nc topology.NodeContext) bool
}

// Mutation es el sobre serializado de un Change.
type Mutation struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Wrap serializa un cambio dentro de su sobre.
func Wrap(c Change) (Mutation, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return Mutation{}, err
	}
	return Mutation{Type: c.Type(), Payload: b}, nil
}

// Unwrap decodifica el cambio según su tipo.
func (m Mutation) Unwrap() (Change, error) {
	var c Change
	switch m.Type {
	case TypeSetting:
		c = &SettingChange{}
	case TypeNodeAddition:
		c = &NodeAddition{}
	case TypeNodeRemoval:
		c = &NodeRemoval{}
	case TypeStripeAddition:
		c = &StripeAddition{}
	case TypeStripeRemoval:
		c = &StripeRemoval{}
	case TypeClusterActivation:
		c = &ClusterActivation{}
	default:
		return nil, fmt.Errorf("unknown change type: '%s'", m.Type)
	}
	if err := json.Unmarshal(m.Payload, c); err != nil {
		return nil, fmt.Errorf("decode %s change: %w", m.Type, err)
	}
	return c, nil
}
