package topology

import (
	"encoding/json"
	"fmt"
)

// NodeContext es la vista de un nodo sobre el cluster completo más sus coordenadas.
// Se trata como valor inmutable: ante un cambio de topología se crea uno nuevo.
type NodeContext struct {
	cluster  *Cluster
	stripeID int
	nodeID   int
	nodeUID  UID
}

// NewNodeContext ubica el nodo por coordenadas.
func NewNodeContext(c *Cluster, stripeID, nodeID int) (NodeContext, error) {
	n, ok := c.Node(stripeID, nodeID)
	if !ok {
		return NodeContext{}, fmt.Errorf("%w: node %d in stripe %d", ErrNotFound, nodeID, stripeID)
	}
	return NodeContext{cluster: c, stripeID: stripeID, nodeID: nodeID, nodeUID: n.UID}, nil
}

// NewNodeContextByUID ubica el nodo por UID.
func NewNodeContextByUID(c *Cluster, uid UID) (NodeContext, error) {
	stripeID, nodeID, ok := c.Coordinates(uid)
	if !ok {
		return NodeContext{}, fmt.Errorf("%w: node with UID %s", ErrNotFound, uid)
	}
	return NewNodeContext(c, stripeID, nodeID)
}

func (nc NodeContext) IsZero() bool { return nc.cluster == nil }

func (nc NodeContext) Cluster() *Cluster { return nc.cluster }
func (nc NodeContext) StripeID() int     { return nc.stripeID }
func (nc NodeContext) NodeID() int       { return nc.nodeID }
func (nc NodeContext) NodeUID() UID      { return nc.nodeUID }

func (nc NodeContext) Stripe() *Stripe {
	s, _ := nc.cluster.Stripe(nc.stripeID)
	return s
}

func (nc NodeContext) Node() *Node {
	n, _ := nc.cluster.Node(nc.stripeID, nc.nodeID)
	return n
}

// Clone copia profunda: el llamador puede mutar el resultado sin afectar al original.
func (nc NodeContext) Clone() NodeContext {
	if nc.cluster == nil {
		return nc
	}
	return NodeContext{cluster: nc.cluster.Clone(), stripeID: nc.stripeID, nodeID: nc.nodeID, nodeUID: nc.nodeUID}
}

// WithCluster crea el contexto de este nodo dentro de otro cluster.
// Si el nodo ya no existe en c (fue removido por un detach) queda aislado en
// un cluster de un solo nodo que lo contiene sólo a él.
func (nc NodeContext) WithCluster(c *Cluster) NodeContext {
	if stripeID, nodeID, ok := c.Coordinates(nc.nodeUID); ok && nc.nodeUID != "" {
		return NodeContext{cluster: c, stripeID: stripeID, nodeID: nodeID, nodeUID: nc.nodeUID}
	}
	return nc.isolated(c)
}

func (nc NodeContext) isolated(from *Cluster) NodeContext {
	alone := from.Clone()
	stripe := nc.Stripe().Clone()
	stripe.Nodes = []*Node{nc.Node().Clone()}
	alone.Stripes = []*Stripe{stripe}
	return NodeContext{cluster: alone, stripeID: 1, nodeID: 1, nodeUID: nc.nodeUID}
}

type nodeContextJSON struct {
	Cluster  *Cluster `json:"cluster"`
	StripeID int      `json:"stripeId"`
	NodeID   int      `json:"nodeId"`
}

func (nc NodeContext) MarshalJSON() ([]byte, error) {
	return json.Marshal(nodeContextJSON{Cluster: nc.cluster, StripeID: nc.stripeID, NodeID: nc.nodeID})
}

func (nc *NodeContext) UnmarshalJSON(b []byte) error {
	var raw nodeContextJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Cluster == nil {
		*nc = NodeContext{}
		return nil
	}
	v, err := NewNodeContext(raw.Cluster, raw.StripeID, raw.NodeID)
	if err != nil {
		return err
	}
	*nc = v
	return nil
}
