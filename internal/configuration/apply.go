package configuration

import (
	"github.com/dropDatabas3/clusterconf/internal/setting"
	"github.com/dropDatabas3/clusterconf/internal/topology"
)

// target es un holder concreto con sus coordenadas.
type target struct {
	holder   setting.Holder
	stripeID int
	nodeID   int
}

// targets resuelve las coordenadas de la dirección contra el cluster. Un
// setting de nodo direccionado a nivel cluster o stripe alcanza a todos los
// nodos de ese scope.
func (c Configuration) targets(cl *topology.Cluster) ([]target, error) {
	if c.stripeID > 0 && c.stripeID > cl.StripeCount() {
		return nil, invalid(c.raw, "Specified stripe ID: %d, but cluster contains: %d stripe(s) only", c.stripeID, cl.StripeCount())
	}
	if c.nodeID > 0 {
		s, _ := cl.Stripe(c.stripeID)
		if c.nodeID > s.NodeCount() {
			return nil, invalid(c.raw, "Specified node ID: %d, but stripe ID: %d contains: %d node(s) only", c.nodeID, c.stripeID, s.NodeCount())
		}
	}

	var out []target
	switch c.setting.Scope() {
	case setting.ScopeCluster:
		out = append(out, target{holder: setting.Holder{Cluster: cl}})
	case setting.ScopeStripe:
		for i, s := range cl.Stripes {
			if c.stripeID > 0 && c.stripeID != i+1 {
				continue
			}
			out = append(out, target{holder: setting.Holder{Cluster: cl, Stripe: s}, stripeID: i + 1})
		}
	case setting.ScopeNode:
		for i, s := range cl.Stripes {
			if c.stripeID > 0 && c.stripeID != i+1 {
				continue
			}
			for j, n := range s.Nodes {
				if c.nodeID > 0 && c.nodeID != j+1 {
					continue
				}
				out = append(out, target{
					holder:   setting.Holder{Cluster: cl, Stripe: s, Node: n},
					stripeID: i + 1,
					nodeID:   j + 1,
				})
			}
		}
	}
	return out, nil
}

// Apply muta el cluster. Sin valor (o con valor vacío) limpia el setting o la
// clave del mapa.
func (c Configuration) Apply(cl *topology.Cluster) error {
	ts, err := c.targets(cl)
	if err != nil {
		return err
	}
	var v *string
	if c.hasValue {
		v = &c.value
	}
	for _, t := range ts {
		if err := c.setting.SetProperty(t.holder, c.key, v); err != nil {
			return wrap(c.raw, err)
		}
	}
	return nil
}

// Get resuelve una dirección sin valor en registros con valor, uno por holder.
// Los mapas se devuelven completos salvo que la dirección traiga clave.
// Un setting sin configurar se devuelve con valor vacío.
func (c Configuration) Get(cl *topology.Cluster) ([]Configuration, error) {
	ts, err := c.targets(cl)
	if err != nil {
		return nil, err
	}
	out := make([]Configuration, 0, len(ts))
	for _, t := range ts {
		rec := New(c.setting, t.stripeID, t.nodeID, c.key)
		var v string
		if c.key != "" {
			v, _ = c.setting.GetPropertyKey(t.holder, c.key)
		} else {
			v, _ = c.setting.GetProperty(t.holder)
		}
		out = append(out, rec.WithValue(v))
	}
	return out, nil
}
