package configuration

import (
	"strconv"
	"strings"

	"github.com/dropDatabas3/clusterconf/internal/setting"
)

// Configuration es una dirección parseada, con o sin valor.
// StripeID > 0 sii Scope >= STRIPE; NodeID > 0 sii Scope == NODE.
type Configuration struct {
	raw      string
	setting  *setting.Setting
	scope    setting.Scope
	stripeID int
	nodeID   int
	key      string
	value    string
	hasValue bool
}

// New construye una dirección sin valor. El scope se deriva de las
// coordenadas: stripeID 0 → cluster, nodeID 0 → stripe.
func New(s *setting.Setting, stripeID, nodeID int, key string) Configuration {
	c := Configuration{setting: s, stripeID: stripeID, nodeID: nodeID, key: key}
	switch {
	case stripeID == 0:
		c.scope, c.nodeID = setting.ScopeCluster, 0
	case nodeID == 0:
		c.scope = setting.ScopeStripe
	default:
		c.scope = setting.ScopeNode
	}
	c.raw = c.String()
	return c
}

// WithValue devuelve una copia con valor.
func (c Configuration) WithValue(v string) Configuration {
	c.value, c.hasValue = v, true
	c.raw = c.String()
	return c
}

// WithoutValue devuelve una copia sin valor.
func (c Configuration) WithoutValue() Configuration {
	c.value, c.hasValue = "", false
	c.raw = c.String()
	return c
}

func (c Configuration) Setting() *setting.Setting { return c.setting }
func (c Configuration) Scope() setting.Scope      { return c.scope }
func (c Configuration) StripeID() int             { return c.stripeID }
func (c Configuration) NodeID() int               { return c.nodeID }
func (c Configuration) Key() string               { return c.key }
func (c Configuration) HasValue() bool            { return c.hasValue }
func (c Configuration) Raw() string               { return c.raw }

// Value devuelve el valor y si la dirección lo trae ("x=" trae valor vacío).
func (c Configuration) Value() (string, bool) { return c.value, c.hasValue }

// IsZero indica un Configuration sin setting (no parseado).
func (c Configuration) IsZero() bool { return c.setting == nil }

// Address es la forma canónica sin el valor.
func (c Configuration) Address() string {
	var b strings.Builder
	if c.stripeID > 0 {
		b.WriteString("stripe.")
		b.WriteString(strconv.Itoa(c.stripeID))
		b.WriteByte('.')
		if c.nodeID > 0 {
			b.WriteString("node.")
			b.WriteString(strconv.Itoa(c.nodeID))
			b.WriteByte('.')
		}
	}
	if c.setting != nil {
		b.WriteString(c.setting.Name())
	}
	if c.key != "" {
		b.WriteByte('.')
		b.WriteString(c.key)
	}
	return b.String()
}

// String es la forma canónica. ValueOf(c.String()) == c.
func (c Configuration) String() string {
	if !c.hasValue {
		return c.Address()
	}
	return c.Address() + "=" + c.value
}

// Equal compara todo salvo el texto original.
func (c Configuration) Equal(o Configuration) bool {
	return c.MatchConfigPropertyKey(o) && c.hasValue == o.hasValue && c.value == o.value
}

// MatchConfigPropertyKey indica si ambas direcciones son exactamente la misma
// (setting, scope, coordenadas y clave), sin mirar el valor.
func (c Configuration) MatchConfigPropertyKey(o Configuration) bool {
	return c.setting == o.setting &&
		c.scope == o.scope &&
		c.stripeID == o.stripeID &&
		c.nodeID == o.nodeID &&
		c.key == o.key
}

// Duplicates indica si o nombra lo mismo que c. Si nombran el mismo setting
// y coordenadas pero una es el mapa completo y la otra una clave, devuelve
// un IncompatibleError.
func (c Configuration) Duplicates(o Configuration) (bool, error) {
	if c.setting != o.setting || c.scope != o.scope || c.stripeID != o.stripeID || c.nodeID != o.nodeID {
		return false, nil
	}
	if c.key == o.key {
		return true, nil
	}
	if c.key == "" || o.key == "" {
		return false, &IncompatibleError{A: c.raw, B: o.raw}
	}
	return false, nil
}

// Validate chequea la operación contra la matriz de permisos del setting y
// la presencia de valor que la operación exige.
func (c Configuration) Validate(op setting.Operation) error {
	if !c.setting.AllowsOperationAtScope(op, c.scope) {
		return wrap(c.raw, &setting.OperationError{Setting: c.setting.Name(), Operation: op, Scope: c.scope})
	}
	switch op {
	case setting.OpGet, setting.OpUnset:
		if c.hasValue {
			return invalid(c.raw, "Operation %s must not have a value", op)
		}
	case setting.OpSet:
		if !c.hasValue || c.value == "" {
			return invalid(c.raw, "Operation %s requires a value", op)
		}
	case setting.OpConfig, setting.OpImport:
		if !c.hasValue {
			return invalid(c.raw, "Operation %s requires a value", op)
		}
		if c.value == "" && !c.setting.AllowsEmpty() {
			return invalid(c.raw, "Operation %s requires a value", op)
		}
	}
	return nil
}
