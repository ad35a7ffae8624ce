package topology

import "fmt"

// Stripe es un grupo ordenado de nodos (unidad de failover).
// El ID de cada nodo es su posición + 1.
type Stripe struct {
	UID   UID     `json:"uid,omitempty"`
	Name  string  `json:"name,omitempty"`
	Nodes []*Node `json:"nodes"`
}

func NewStripe(nodes ...*Node) *Stripe {
	return &Stripe{Nodes: append([]*Node{}, nodes...)}
}

func (s *Stripe) Clone() *Stripe {
	if s == nil {
		return nil
	}
	c := &Stripe{UID: s.UID, Name: s.Name, Nodes: make([]*Node, 0, len(s.Nodes))}
	for _, n := range s.Nodes {
		c.Nodes = append(c.Nodes, n.Clone())
	}
	return c
}

func (s *Stripe) NodeCount() int { return len(s.Nodes) }

// Node devuelve el nodo con ID 1-indexado.
func (s *Stripe) Node(id int) (*Node, bool) {
	if id < 1 || id > len(s.Nodes) {
		return nil, false
	}
	return s.Nodes[id-1], true
}

func (s *Stripe) NodeByUID(uid UID) (*Node, int, bool) {
	for i, n := range s.Nodes {
		if n.UID == uid {
			return n, i + 1, true
		}
	}
	return nil, 0, false
}

func (s *Stripe) NodeByName(name string) (*Node, int, bool) {
	for i, n := range s.Nodes {
		if n.Name == name {
			return n, i + 1, true
		}
	}
	return nil, 0, false
}

func (s *Stripe) NodeByEndpoint(ep Endpoint) (*Node, int, bool) {
	for i, n := range s.Nodes {
		if n.HasEndpoint(ep) {
			return n, i + 1, true
		}
	}
	return nil, 0, false
}

// AddNode agrega al final; falla si la dirección interna ya existe en el stripe.
func (s *Stripe) AddNode(n *Node) error {
	if _, _, ok := s.NodeByEndpoint(n.InternalEndpoint()); ok {
		return fmt.Errorf("%w: node with address %s already exists in stripe %s", ErrDuplicate, n.InternalEndpoint(), s.Name)
	}
	s.Nodes = append(s.Nodes, n)
	return nil
}

// RemoveNode quita el nodo. Si era el último, Nodes queda vacío (no nil).
func (s *Stripe) RemoveNode(uid UID) bool {
	for i, n := range s.Nodes {
		if n.UID == uid {
			s.Nodes = append(s.Nodes[:i:i], s.Nodes[i+1:]...)
			return true
		}
	}
	return false
}
