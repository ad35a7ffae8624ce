package topology

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("topology: not found")
	ErrDuplicate = errors.New("topology: duplicate")
)

// Cluster es la colección ordenada de stripes más los settings de scope cluster.
type Cluster struct {
	UID                   UID                `json:"uid,omitempty"`
	Name                  string             `json:"name,omitempty"`
	Stripes               []*Stripe          `json:"stripes"`
	ClientReconnectWindow *Measure           `json:"clientReconnectWindow,omitempty"`
	ClientLeaseDuration   *Measure           `json:"clientLeaseDuration,omitempty"`
	FailoverPriority      *FailoverPriority  `json:"failoverPriority,omitempty"`
	OffheapResources      map[string]Measure `json:"offheapResources,omitempty"`
	SecurityAuthc         string             `json:"securityAuthc,omitempty"`
	SecuritySSLTLS        *bool              `json:"securitySslTls,omitempty"`
	SecurityWhitelist     *bool              `json:"securityWhitelist,omitempty"`
}

func NewCluster(stripes ...*Stripe) *Cluster {
	return &Cluster{Stripes: append([]*Stripe{}, stripes...)}
}

func (c *Cluster) Clone() *Cluster {
	if c == nil {
		return nil
	}
	out := *c
	out.Stripes = make([]*Stripe, 0, len(c.Stripes))
	for _, s := range c.Stripes {
		out.Stripes = append(out.Stripes, s.Clone())
	}
	if c.ClientReconnectWindow != nil {
		m := *c.ClientReconnectWindow
		out.ClientReconnectWindow = &m
	}
	if c.ClientLeaseDuration != nil {
		m := *c.ClientLeaseDuration
		out.ClientLeaseDuration = &m
	}
	if c.FailoverPriority != nil {
		f := *c.FailoverPriority
		out.FailoverPriority = &f
	}
	if c.OffheapResources != nil {
		out.OffheapResources = make(map[string]Measure, len(c.OffheapResources))
		for k, v := range c.OffheapResources {
			out.OffheapResources[k] = v
		}
	}
	if c.SecuritySSLTLS != nil {
		b := *c.SecuritySSLTLS
		out.SecuritySSLTLS = &b
	}
	if c.SecurityWhitelist != nil {
		b := *c.SecurityWhitelist
		out.SecurityWhitelist = &b
	}
	return &out
}

func (c *Cluster) StripeCount() int { return len(c.Stripes) }

func (c *Cluster) NodeCount() int {
	n := 0
	for _, s := range c.Stripes {
		n += len(s.Nodes)
	}
	return n
}

// Nodes devuelve todos los nodos en orden stripe/nodo.
func (c *Cluster) Nodes() []*Node {
	out := make([]*Node, 0, c.NodeCount())
	for _, s := range c.Stripes {
		out = append(out, s.Nodes...)
	}
	return out
}

// Stripe devuelve el stripe con ID 1-indexado.
func (c *Cluster) Stripe(id int) (*Stripe, bool) {
	if id < 1 || id > len(c.Stripes) {
		return nil, false
	}
	return c.Stripes[id-1], true
}

func (c *Cluster) Node(stripeID, nodeID int) (*Node, bool) {
	s, ok := c.Stripe(stripeID)
	if !ok {
		return nil, false
	}
	return s.Node(nodeID)
}

func (c *Cluster) StripeByUID(uid UID) (*Stripe, int, bool) {
	for i, s := range c.Stripes {
		if s.UID == uid {
			return s, i + 1, true
		}
	}
	return nil, 0, false
}

func (c *Cluster) StripeByName(name string) (*Stripe, int, bool) {
	for i, s := range c.Stripes {
		if s.Name == name {
			return s, i + 1, true
		}
	}
	return nil, 0, false
}

// Coordinates devuelve (stripeID, nodeID) del nodo con el UID dado.
func (c *Cluster) Coordinates(uid UID) (int, int, bool) {
	for i, s := range c.Stripes {
		if _, nodeID, ok := s.NodeByUID(uid); ok {
			return i + 1, nodeID, true
		}
	}
	return 0, 0, false
}

func (c *Cluster) NodeByUID(uid UID) (*Node, bool) {
	for _, s := range c.Stripes {
		if n, _, ok := s.NodeByUID(uid); ok {
			return n, true
		}
	}
	return nil, false
}

func (c *Cluster) NodeByName(name string) (*Node, bool) {
	for _, s := range c.Stripes {
		if n, _, ok := s.NodeByName(name); ok {
			return n, true
		}
	}
	return nil, false
}

// NodeByEndpoint busca por dirección interna o pública.
// Devuelve también las coordenadas.
func (c *Cluster) NodeByEndpoint(ep Endpoint) (*Node, int, int, bool) {
	for i, s := range c.Stripes {
		if n, nodeID, ok := s.NodeByEndpoint(ep); ok {
			return n, i + 1, nodeID, true
		}
	}
	return nil, 0, 0, false
}

func (c *Cluster) ContainsEndpoint(ep Endpoint) bool {
	_, _, _, ok := c.NodeByEndpoint(ep)
	return ok
}

// AddStripe agrega un stripe completo. Es atómico: si algún nodo ya existe
// (por dirección interna) el cluster no se modifica.
func (c *Cluster) AddStripe(s *Stripe) error {
	seen := make(map[string]struct{}, len(s.Nodes))
	for _, n := range s.Nodes {
		ep := n.InternalEndpoint()
		if c.ContainsEndpoint(ep) {
			return fmt.Errorf("%w: node with address %s already exists in the cluster", ErrDuplicate, ep)
		}
		if _, dup := seen[ep.String()]; dup {
			return fmt.Errorf("%w: node with address %s is declared twice in the stripe", ErrDuplicate, ep)
		}
		seen[ep.String()] = struct{}{}
	}
	if s.UID != "" {
		if _, _, ok := c.StripeByUID(s.UID); ok {
			return fmt.Errorf("%w: stripe with UID %s already exists in the cluster", ErrDuplicate, s.UID)
		}
	}
	c.Stripes = append(c.Stripes, s)
	return nil
}

// AddNode agrega un nodo al stripe identificado por UID.
func (c *Cluster) AddNode(stripeUID UID, n *Node) error {
	s, _, ok := c.StripeByUID(stripeUID)
	if !ok {
		return fmt.Errorf("%w: stripe with UID %s", ErrNotFound, stripeUID)
	}
	if c.ContainsEndpoint(n.InternalEndpoint()) {
		return fmt.Errorf("%w: node with address %s already exists in the cluster", ErrDuplicate, n.InternalEndpoint())
	}
	return s.AddNode(n)
}

// RemoveStripe quita el stripe. Si era el último, Stripes queda vacío (no nil).
func (c *Cluster) RemoveStripe(uid UID) bool {
	for i, s := range c.Stripes {
		if s.UID == uid {
			c.Stripes = append(c.Stripes[:i:i], c.Stripes[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Cluster) RemoveNode(uid UID) bool {
	for _, s := range c.Stripes {
		if s.RemoveNode(uid) {
			return true
		}
	}
	return false
}
