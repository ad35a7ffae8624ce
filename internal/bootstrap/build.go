package bootstrap

import (
	"fmt"
	"sort"

	"github.com/dropDatabas3/clusterconf/internal/configuration"
	"github.com/dropDatabas3/clusterconf/internal/setting"
	"github.com/dropDatabas3/clusterconf/internal/topology"
)

// coord ubica un holder: (0,0) cluster, (s,0) stripe, (s,n) nodo.
type coord struct{ stripeID, nodeID int }

// skeleton crea stripes y nodos en orden de ID, resolviendo los settings
// eager de cada nivel al crearlo.
func skeleton(sh shape, cs []configuration.Configuration, opts Options) (*topology.Cluster, error) {
	cluster := topology.NewCluster()
	for si, count := range sh {
		stripeID := si + 1
		stripe := topology.NewStripe()
		if err := resolveEager(setting.ScopeStripe, setting.Holder{Cluster: cluster, Stripe: stripe}, coord{stripeID, 0}, cs, opts); err != nil {
			return nil, err
		}
		for ni := 0; ni < count; ni++ {
			node := &topology.Node{}
			h := setting.Holder{Cluster: cluster, Stripe: stripe, Node: node}
			if err := resolveEager(setting.ScopeNode, h, coord{stripeID, ni + 1}, cs, opts); err != nil {
				return nil, err
			}
			stripe.Nodes = append(stripe.Nodes, node)
		}
		cluster.Stripes = append(cluster.Stripes, stripe)
	}
	return cluster, nil
}

func resolveEager(scope setting.Scope, h setting.Holder, at coord, cs []configuration.Configuration, opts Options) error {
	for _, s := range setting.All() {
		if !s.RequiresEagerResolution() || s.Scope() != scope {
			continue
		}
		v, supplied := lookup(s, at, cs)
		if !supplied || v == "" {
			v = s.DefaultValue()
		}
		if setting.ContainsPlaceholders(v) && opts.Substitutor != nil {
			v = opts.Substitutor.Substitute(v)
		}
		if setting.ContainsPlaceholders(v) {
			return fmt.Errorf("%w: %s=%s (stripe %d, node %d)", setting.ErrUnresolvedPlaceholder, s.Name(), v, at.stripeID, at.nodeID)
		}
		if err := s.SetProperty(h, "", &v); err != nil {
			return err
		}
	}
	return nil
}

// lookup busca el valor más específico provisto para s en las coordenadas.
func lookup(s *setting.Setting, at coord, cs []configuration.Configuration) (string, bool) {
	best, found := -1, ""
	for _, c := range cs {
		if c.Setting() != s || c.Key() != "" {
			continue
		}
		covers := c.StripeID() == 0 ||
			(c.StripeID() == at.stripeID && (c.NodeID() == 0 || c.NodeID() == at.nodeID))
		if !covers || int(c.Scope()) <= best {
			continue
		}
		v, _ := c.Value()
		best, found = int(c.Scope()), v
	}
	return found, best >= 0
}

// fillDefaults asigna el default de cada setting no eager en su scope.
// Los settings generados (UIDs) reciben un valor distinto por holder.
func fillDefaults(cluster *topology.Cluster) error {
	for _, s := range setting.All() {
		if !s.HasDefault() || s.RequiresEagerResolution() {
			continue
		}
		for _, h := range holders(cluster, s.Scope()) {
			def := s.DefaultValue()
			if err := s.SetProperty(h, "", &def); err != nil {
				return fmt.Errorf("default of %s: %w", s.Name(), err)
			}
		}
	}
	return nil
}

func holders(cluster *topology.Cluster, scope setting.Scope) []setting.Holder {
	switch scope {
	case setting.ScopeCluster:
		return []setting.Holder{{Cluster: cluster}}
	case setting.ScopeStripe:
		out := make([]setting.Holder, 0, len(cluster.Stripes))
		for _, s := range cluster.Stripes {
			out = append(out, setting.Holder{Cluster: cluster, Stripe: s})
		}
		return out
	default:
		var out []setting.Holder
		for _, s := range cluster.Stripes {
			for _, n := range s.Nodes {
				out = append(out, setting.Holder{Cluster: cluster, Stripe: s, Node: n})
			}
		}
		return out
	}
}

// applyAll aplica las direcciones restantes en orden cluster, stripe, nodo.
// Un mapa se vacía una sola vez por holder antes de su primera clave, así un
// archivo que enumera el mapa completo no hereda el default.
func applyAll(cluster *topology.Cluster, cs []configuration.Configuration) error {
	ordered := append([]configuration.Configuration(nil), cs...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Scope() < ordered[j].Scope() })

	type clearKey struct {
		s  *setting.Setting
		at coord
	}
	cleared := map[clearKey]bool{}

	for _, c := range ordered {
		s := c.Setting()
		if s.RequiresEagerResolution() && c.Key() == "" {
			continue
		}
		if s.IsMap() {
			for _, at := range coords(cluster, c) {
				k := clearKey{s, at}
				if cleared[k] {
					continue
				}
				cleared[k] = true
				if c.Key() == "" {
					continue
				}
				if err := configuration.New(s, at.stripeID, at.nodeID, "").Apply(cluster); err != nil {
					return err
				}
			}
		}
		if err := c.Apply(cluster); err != nil {
			return err
		}
	}
	return nil
}

// coords expande una dirección a las coordenadas de los holders que toca.
func coords(cluster *topology.Cluster, c configuration.Configuration) []coord {
	s := c.Setting()
	if s.Scope() == setting.ScopeCluster {
		return []coord{{}}
	}
	var out []coord
	for si, stripe := range cluster.Stripes {
		if c.StripeID() > 0 && c.StripeID() != si+1 {
			continue
		}
		if s.Scope() == setting.ScopeStripe {
			out = append(out, coord{si + 1, 0})
			continue
		}
		for ni := range stripe.Nodes {
			if c.NodeID() > 0 && c.NodeID() != ni+1 {
				continue
			}
			out = append(out, coord{si + 1, ni + 1})
		}
	}
	return out
}
