package setting

import (
	"fmt"
	"strings"
)

// Scope es la granularidad de un valor: CLUSTER < STRIPE < NODE.
type Scope int

const (
	ScopeCluster Scope = iota
	ScopeStripe
	ScopeNode
)

var allScopes = []Scope{ScopeCluster, ScopeStripe, ScopeNode}

func (s Scope) String() string {
	switch s {
	case ScopeCluster:
		return "cluster"
	case ScopeStripe:
		return "stripe"
	case ScopeNode:
		return "node"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

func ParseScope(s string) (Scope, error) {
	for _, sc := range allScopes {
		if strings.EqualFold(sc.String(), s) {
			return sc, nil
		}
	}
	return 0, fmt.Errorf("unknown scope: '%s'", s)
}

// Operation es lo que se intenta hacer con una dirección de configuración.
// CONFIG e IMPORT sólo aplican al bootstrap de un cluster completo.
type Operation int

const (
	OpGet Operation = iota
	OpSet
	OpUnset
	OpConfig
	OpImport
)

var allOperations = []Operation{OpGet, OpSet, OpUnset, OpConfig, OpImport}

func (o Operation) String() string {
	switch o {
	case OpGet:
		return "get"
	case OpSet:
		return "set"
	case OpUnset:
		return "unset"
	case OpConfig:
		return "config"
	case OpImport:
		return "import"
	default:
		return fmt.Sprintf("operation(%d)", int(o))
	}
}

func ParseOperation(s string) (Operation, error) {
	for _, op := range allOperations {
		if strings.EqualFold(op.String(), s) {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown operation: '%s'", s)
}

// scopeSet es una máscara de bits de scopes.
type scopeSet uint8

func scopes(ss ...Scope) scopeSet {
	var m scopeSet
	for _, s := range ss {
		m |= 1 << uint(s)
	}
	return m
}

func (m scopeSet) has(s Scope) bool { return m&(1<<uint(s)) != 0 }

var (
	clusterOnly = scopes(ScopeCluster)
	stripeOnly  = scopes(ScopeStripe)
	nodeOnly    = scopes(ScopeNode)
	anyScope    = scopes(ScopeCluster, ScopeStripe, ScopeNode)
)

// permissions es la matriz Operation → scopes permitidos.
type permissions map[Operation]scopeSet

func (o Operation) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Operation) UnmarshalText(b []byte) error {
	v, err := ParseOperation(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}
