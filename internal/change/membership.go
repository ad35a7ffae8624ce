package change

import (
	"fmt"

	"github.com/dropDatabas3/clusterconf/internal/topology"
)

// NodeAddition agrega un nodo a un stripe existente (attach).
type NodeAddition struct {
	StripeUID topology.UID   `json:"stripeUid"`
	Node      *topology.Node `json:"node"`
}

func (a *NodeAddition) Type() Type { return TypeNodeAddition }

func (a *NodeAddition) Summary() string {
	return fmt.Sprintf("Attaching node: %s to stripe: %s", a.Node.InternalEndpoint(), a.StripeUID)
}

func (a *NodeAddition) Apply(c *topology.Cluster) (*topology.Cluster, error) {
	if a.Node == nil {
		return nil, fmt.Errorf("node addition without node")
	}
	out := c.Clone()
	if err := out.AddNode(a.StripeUID, a.Node.Clone()); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *NodeAddition) CanUpdateRuntimeTopology(topology.NodeContext) bool { return true }

// NodeRemoval quita un nodo (detach).
type NodeRemoval struct {
	NodeUID topology.UID `json:"nodeUid"`
}

func (r *NodeRemoval) Type() Type { return TypeNodeRemoval }

func (r *NodeRemoval) Summary() string { return fmt.Sprintf("Detaching node: %s", r.NodeUID) }

func (r *NodeRemoval) Apply(c *topology.Cluster) (*topology.Cluster, error) {
	out := c.Clone()
	if !out.RemoveNode(r.NodeUID) {
		return nil, fmt.Errorf("%w: node with UID %s", topology.ErrNotFound, r.NodeUID)
	}
	return out, nil
}

func (r *NodeRemoval) CanUpdateRuntimeTopology(topology.NodeContext) bool { return true }

// StripeAddition agrega un stripe completo.
type StripeAddition struct {
	Stripe *topology.Stripe `json:"stripe"`
}

func (a *StripeAddition) Type() Type { return TypeStripeAddition }

func (a *StripeAddition) Summary() string {
	return fmt.Sprintf("Attaching stripe: %s (%d node(s))", a.Stripe.Name, a.Stripe.NodeCount())
}

func (a *StripeAddition) Apply(c *topology.Cluster) (*topology.Cluster, error) {
	if a.Stripe == nil {
		return nil, fmt.Errorf("stripe addition without stripe")
	}
	out := c.Clone()
	if err := out.AddStripe(a.Stripe.Clone()); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *StripeAddition) CanUpdateRuntimeTopology(topology.NodeContext) bool { return true }

// StripeRemoval quita un stripe completo.
type StripeRemoval struct {
	StripeUID topology.UID `json:"stripeUid"`
}

func (r *StripeRemoval) Type() Type { return TypeStripeRemoval }

func (r *StripeRemoval) Summary() string { return fmt.Sprintf("Detaching stripe: %s", r.StripeUID) }

func (r *StripeRemoval) Apply(c *topology.Cluster) (*topology.Cluster, error) {
	out := c.Clone()
	if !out.RemoveStripe(r.StripeUID) {
		return nil, fmt.Errorf("%w: stripe with UID %s", topology.ErrNotFound, r.StripeUID)
	}
	return out, nil
}

func (r *StripeRemoval) CanUpdateRuntimeTopology(topology.NodeContext) bool { return true }

// ClusterActivation instala la topología definitiva y la licencia. Es el
// único cambio aceptado por un nodo no activado.
type ClusterActivation struct {
	Cluster *topology.Cluster `json:"cluster"`
	License string            `json:"license,omitempty"`
}

func (a *ClusterActivation) Type() Type { return TypeClusterActivation }

func (a *ClusterActivation) Summary() string {
	name := a.Cluster.Name
	if name == "" {
		name = "<unnamed>"
	}
	return fmt.Sprintf("Activating cluster: %s", name)
}

func (a *ClusterActivation) Apply(*topology.Cluster) (*topology.Cluster, error) {
	if a.Cluster == nil {
		return nil, fmt.Errorf("cluster activation without cluster")
	}
	return a.Cluster.Clone(), nil
}

func (a *ClusterActivation) CanUpdateRuntimeTopology(topology.NodeContext) bool { return true }
