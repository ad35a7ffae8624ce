package setting

import (
	"strconv"

	"github.com/dropDatabas3/clusterconf/internal/topology"
)

func clusterString(f func(c *topology.Cluster) *string) scalarAccess {
	return scalarAccess{
		get: func(h Holder) string { return *f(h.Cluster) },
		set: func(h Holder, v string) error { *f(h.Cluster) = v; return nil },
	}
}

func stripeString(f func(s *topology.Stripe) *string) scalarAccess {
	return scalarAccess{
		get: func(h Holder) string { return *f(h.Stripe) },
		set: func(h Holder, v string) error { *f(h.Stripe) = v; return nil },
	}
}

func nodeString(f func(n *topology.Node) *string) scalarAccess {
	return scalarAccess{
		get: func(h Holder) string { return *f(h.Node) },
		set: func(h Holder, v string) error { *f(h.Node) = v; return nil },
	}
}

func nodeInt(f func(n *topology.Node) *int) scalarAccess {
	return scalarAccess{
		get: func(h Holder) string {
			if p := *f(h.Node); p != 0 {
				return strconv.Itoa(p)
			}
			return ""
		},
		set: func(h Holder, v string) error {
			if v == "" {
				*f(h.Node) = 0
				return nil
			}
			p, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			*f(h.Node) = p
			return nil
		},
	}
}

func uidAccess(f func(h Holder) *topology.UID) scalarAccess {
	return scalarAccess{
		get: func(h Holder) string { return string(*f(h)) },
		set: func(h Holder, v string) error {
			if v == "" {
				*f(h) = ""
				return nil
			}
			id, err := topology.ParseUID(v)
			if err != nil {
				return err
			}
			*f(h) = id
			return nil
		},
	}
}

func clusterMeasure(f func(c *topology.Cluster) **topology.Measure, units []string) scalarAccess {
	return scalarAccess{
		get: func(h Holder) string {
			if m := *f(h.Cluster); m != nil {
				return m.String()
			}
			return ""
		},
		set: func(h Holder, v string) error {
			if v == "" {
				*f(h.Cluster) = nil
				return nil
			}
			m, err := topology.ParseMeasure(v, units)
			if err != nil {
				return err
			}
			*f(h.Cluster) = &m
			return nil
		},
	}
}

func clusterBool(f func(c *topology.Cluster) **bool) scalarAccess {
	return scalarAccess{
		get: func(h Holder) string {
			if b := *f(h.Cluster); b != nil {
				return strconv.FormatBool(*b)
			}
			return ""
		},
		set: func(h Holder, v string) error {
			if v == "" {
				*f(h.Cluster) = nil
				return nil
			}
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			*f(h.Cluster) = &b
			return nil
		},
	}
}

func failoverAccess() scalarAccess {
	return scalarAccess{
		get: func(h Holder) string {
			if fp := h.Cluster.FailoverPriority; fp != nil {
				return fp.String()
			}
			return ""
		},
		set: func(h Holder, v string) error {
			if v == "" {
				h.Cluster.FailoverPriority = nil
				return nil
			}
			fp, err := topology.ParseFailoverPriority(v)
			if err != nil {
				return err
			}
			h.Cluster.FailoverPriority = &fp
			return nil
		},
	}
}

func nodeMap(f func(n *topology.Node) *map[string]string) mapAccess {
	return mapAccess{
		get: func(h Holder) map[string]string {
			m := *f(h.Node)
			if m == nil {
				return nil
			}
			out := make(map[string]string, len(m))
			for k, v := range m {
				out[k] = v
			}
			return out
		},
		put: func(h Holder, key, value string) error {
			p := f(h.Node)
			if *p == nil {
				*p = map[string]string{}
			}
			(*p)[key] = value
			return nil
		},
		remove: func(h Holder, key string) {
			p := f(h.Node)
			delete(*p, key)
			if len(*p) == 0 {
				*p = nil
			}
		},
		clear: func(h Holder) { *f(h.Node) = nil },
	}
}

func offheapAccess() mapAccess {
	return mapAccess{
		get: func(h Holder) map[string]string {
			if h.Cluster.OffheapResources == nil {
				return nil
			}
			out := make(map[string]string, len(h.Cluster.OffheapResources))
			for k, v := range h.Cluster.OffheapResources {
				out[k] = v.String()
			}
			return out
		},
		put: func(h Holder, key, value string) error {
			m, err := topology.ParseMeasure(value, topology.MemoryUnits)
			if err != nil {
				return err
			}
			if h.Cluster.OffheapResources == nil {
				h.Cluster.OffheapResources = map[string]topology.Measure{}
			}
			h.Cluster.OffheapResources[key] = m
			return nil
		},
		remove: func(h Holder, key string) {
			delete(h.Cluster.OffheapResources, key)
			if len(h.Cluster.OffheapResources) == 0 {
				h.Cluster.OffheapResources = nil
			}
		},
		clear: func(h Holder) { h.Cluster.OffheapResources = nil },
	}
}
