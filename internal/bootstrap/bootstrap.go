// Package bootstrap construye un cluster a partir de un conjunto plano de
// propiedades (archivo) o de los parámetros de línea de comandos de un nodo.
package bootstrap

import (
	"fmt"
	"sort"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dropDatabas3/clusterconf/internal/configuration"
	"github.com/dropDatabas3/clusterconf/internal/observability/logger"
	"github.com/dropDatabas3/clusterconf/internal/setting"
	"github.com/dropDatabas3/clusterconf/internal/topology"
	"github.com/dropDatabas3/clusterconf/internal/validator"
)

// Options controla el bootstrap.
type Options struct {
	// Operation con la que se valida cada dirección: OpConfig (default) u
	// OpImport (permite UIDs, usado al reimportar un export).
	Operation setting.Operation
	// Substitutor resuelve placeholders de los settings eager. Sin él, un
	// default eager con placeholders es un error.
	Substitutor setting.Substitutor
	// Version de esquema con la que se valida el resultado.
	Version topology.Version
	Logger  *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Operation != setting.OpImport {
		o.Operation = setting.OpConfig
	}
	if o.Version == 0 {
		o.Version = topology.CurrentVersion
	}
	if o.Logger == nil {
		o.Logger = logger.Named("bootstrap")
	}
	return o
}

// FromProperties construye un cluster desde un mapa "dirección → valor".
// El cluster devuelto ya pasó el validador en estado CONFIGURING.
func FromProperties(props map[string]string, opts Options) (*topology.Cluster, error) {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	cs, err := configuration.FromProperties(props, keys)
	if err != nil {
		return nil, err
	}
	return build(cs, opts.withDefaults())
}

// FromCLI construye el cluster de un nodo a partir de sus parámetros. Los
// settings de nodo se ubican en stripe 1 / node 1. Los valores pasan por el
// Substitutor y sólo se registran las sustituciones efectivamente hechas.
func FromCLI(params map[*setting.Setting]string, opts Options) (*topology.Cluster, error) {
	opts = opts.withDefaults()
	if opts.Substitutor != nil {
		opts.Substitutor = &setting.LoggingSubstitutor{Delegate: opts.Substitutor, Log: opts.Logger}
	}
	cs := make([]configuration.Configuration, 0, len(params))
	for s, v := range params {
		if opts.Substitutor != nil {
			v = opts.Substitutor.Substitute(v)
		}
		stripeID, nodeID := 0, 0
		switch s.Scope() {
		case setting.ScopeStripe:
			stripeID = 1
		case setting.ScopeNode:
			stripeID, nodeID = 1, 1
		}
		c, err := configuration.ValueOf(configuration.New(s, stripeID, nodeID, "").WithValue(v).String())
		if err != nil {
			return nil, err
		}
		cs = append(cs, c)
	}
	configuration.Sort(cs)
	return build(cs, opts)
}

func build(cs []configuration.Configuration, opts Options) (*topology.Cluster, error) {
	cs, err := dedupe(cs)
	if err != nil {
		return nil, err
	}
	for _, c := range cs {
		if err := c.Validate(opts.Operation); err != nil {
			return nil, err
		}
	}

	shape, err := discoverShape(cs)
	if err != nil {
		return nil, err
	}

	cluster, err := skeleton(shape, cs, opts)
	if err != nil {
		return nil, err
	}
	if err := fillDefaults(cluster); err != nil {
		return nil, err
	}
	if err := applyAll(cluster, cs); err != nil {
		return nil, err
	}

	v := validator.New(cluster, validator.WithVersion(opts.Version), validator.WithLogger(opts.Logger))
	if err := v.Validate(topology.Configuring); err != nil {
		return nil, err
	}
	opts.Logger.Info("cluster bootstrapped",
		logger.Int("stripes", cluster.StripeCount()),
		logger.Int("nodes", cluster.NodeCount()),
		logger.Count(len(cs)))
	return cluster, nil
}

// dedupe descarta direcciones equivalentes (gana la última) y falla si una
// dirección de mapa completo choca con una por clave.
func dedupe(cs []configuration.Configuration) ([]configuration.Configuration, error) {
	out := make([]configuration.Configuration, 0, len(cs))
	for _, c := range cs {
		replaced := false
		for i, prev := range out {
			dup, err := prev.Duplicates(c)
			if err != nil {
				return nil, err
			}
			if dup {
				out[i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, c)
		}
	}
	return out, nil
}

// shape: cantidad de nodos por stripe, en orden.
type shape []int

func discoverShape(cs []configuration.Configuration) (shape, error) {
	stripes := map[int]map[int]bool{}
	for _, c := range cs {
		if c.StripeID() == 0 {
			continue
		}
		if stripes[c.StripeID()] == nil {
			stripes[c.StripeID()] = map[int]bool{}
		}
		if c.NodeID() > 0 {
			stripes[c.StripeID()][c.NodeID()] = true
		}
	}
	if len(stripes) == 0 {
		return shape{1}, nil
	}

	stripeIDs := sortedIDs(stripes)
	if stripeIDs[0] != 1 {
		return nil, &shapeError{msg: "Stripe ID must start at 1"}
	}
	if last := stripeIDs[len(stripeIDs)-1]; last != len(stripeIDs) {
		return nil, &shapeError{msg: fmt.Sprintf("Stripe ID must end at %d", len(stripeIDs))}
	}

	var errs error
	out := make(shape, len(stripeIDs))
	for i, sid := range stripeIDs {
		nodes := stripes[sid]
		if len(nodes) == 0 {
			out[i] = 1
			continue
		}
		nodeIDs := sortedIDs(nodes)
		switch {
		case nodeIDs[0] != 1:
			errs = multierr.Append(errs, &shapeError{msg: fmt.Sprintf("Node ID must start at 1 in stripe %d", sid)})
		case nodeIDs[len(nodeIDs)-1] != len(nodeIDs):
			errs = multierr.Append(errs, &shapeError{msg: fmt.Sprintf("Node ID must end at %d in stripe %d", len(nodeIDs), sid)})
		}
		out[i] = len(nodeIDs)
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}

func sortedIDs[V any](m map[int]V) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
