package configuration

import (
	"sort"

	"github.com/dropDatabas3/clusterconf/internal/setting"
	"github.com/dropDatabas3/clusterconf/internal/topology"
)

// Export lista todas las propiedades configuradas del cluster en forma
// canónica: cluster, luego cada stripe, luego cada nodo. Los mapas se
// expanden por clave. Sólo se incluyen settings importables, de modo que
// el resultado puede volver a cargarse con el bootstrap.
func Export(cl *topology.Cluster) []Configuration {
	var out []Configuration
	for _, s := range setting.All() {
		probe := New(s, 0, 0, "")
		ts, _ := probe.targets(cl)
		for _, t := range ts {
			if !s.AllowsOperationAtScope(setting.OpImport, s.Scope()) {
				continue
			}
			if s.IsMap() {
				m := s.GetMap(t.holder)
				for _, k := range s.MapKeys(t.holder) {
					out = append(out, New(s, t.stripeID, t.nodeID, k).WithValue(m[k]))
				}
				continue
			}
			if v, ok := s.GetProperty(t.holder); ok {
				out = append(out, New(s, t.stripeID, t.nodeID, "").WithValue(v))
			}
		}
	}
	Sort(out)
	return out
}

// Sort ordena por coordenadas, nombre de setting y clave.
func Sort(cs []Configuration) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.stripeID != b.stripeID {
			return a.stripeID < b.stripeID
		}
		if a.nodeID != b.nodeID {
			return a.nodeID < b.nodeID
		}
		if a.setting.Name() != b.setting.Name() {
			return a.setting.Name() < b.setting.Name()
		}
		return a.key < b.key
	})
}
