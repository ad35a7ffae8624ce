package setting

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dropDatabas3/clusterconf/internal/topology"
)

// Holder apunta a los objetos del modelo sobre los que actúa un setting.
// Según el scope propio del setting se usa Cluster, Stripe o Node.
type Holder struct {
	Cluster *topology.Cluster
	Stripe  *topology.Stripe
	Node    *topology.Node
}

// scalarAccess lee/escribe un valor escalar. "" significa no configurado.
type scalarAccess struct {
	get func(h Holder) string
	set func(h Holder, v string) error
}

// mapAccess lee/escribe un setting de tipo mapa.
type mapAccess struct {
	get    func(h Holder) map[string]string
	put    func(h Holder, key, value string) error
	remove func(h Holder, key string)
	clear  func(h Holder)
}

// Setting es un registro fijo del catálogo.
type Setting struct {
	name        string
	scope       Scope
	isMap       bool
	eager       bool
	hot         bool
	def         string
	generate    func() string
	perms       permissions
	validate    valueValidator
	validateKey valueValidator
	scalar      scalarAccess
	mapped      mapAccess
}

func (s *Setting) Name() string   { return s.name }
func (s *Setting) String() string { return s.name }

// Scope es el scope donde se almacena el valor.
func (s *Setting) Scope() Scope { return s.scope }

// IsScope indica si el setting pertenece al scope dado.
func (s *Setting) IsScope(sc Scope) bool { return s.scope == sc }

func (s *Setting) IsMap() bool { return s.isMap }

// RequiresEagerResolution: settings que definen la identidad del nodo y
// deben resolverse antes de construir el modelo.
func (s *Setting) RequiresEagerResolution() bool { return s.eager }

// HotApplicable indica si un cambio puede aplicarse en caliente (runtime)
// sin reiniciar el nodo.
func (s *Setting) HotApplicable() bool { return s.hot }

// HasDefault indica si el setting tiene un default (fijo o generado).
func (s *Setting) HasDefault() bool { return s.def != "" || s.generate != nil }

// DefaultValue devuelve el default. Para settings generados (UIDs, nombres)
// cada llamada produce un valor nuevo.
func (s *Setting) DefaultValue() string {
	if s.generate != nil {
		return s.generate()
	}
	return s.def
}

// AllowsEmpty: un valor vacío en CONFIG/IMPORT es aceptable (sin default).
func (s *Setting) AllowsEmpty() bool { return !s.HasDefault() }

func (s *Setting) AllowsOperation(op Operation) bool { return s.perms[op] != 0 }

func (s *Setting) AllowsOperationAtScope(op Operation, sc Scope) bool {
	return s.perms[op].has(sc)
}

// AllowsAnyOperationAtScope indica si alguna operación es válida en sc.
func (s *Setting) AllowsAnyOperationAtScope(sc Scope) bool {
	for _, m := range s.perms {
		if m.has(sc) {
			return true
		}
	}
	return false
}

// Validate valida un valor completo (para mapas: "k:v,k:v").
func (s *Setting) Validate(value string) error {
	if !s.isMap {
		if err := s.validate(value); err != nil {
			return &ValueError{Setting: s.name, Reason: err.Error()}
		}
		return nil
	}
	m, order, err := parseMap(value)
	if err != nil {
		return &ValueError{Setting: s.name, Reason: err.Error()}
	}
	for _, k := range order {
		if err := s.ValidateKV(k, m[k]); err != nil {
			return err
		}
	}
	return nil
}

// ValidateKV valida una entrada de un setting de tipo mapa.
func (s *Setting) ValidateKV(key, value string) error {
	if !s.isMap {
		return &ValueError{Setting: s.name, Reason: "is not a map and must not have a key"}
	}
	if s.validateKey != nil {
		if err := s.validateKey(key); err != nil {
			return &ValueError{Setting: s.name, Key: key, Reason: "key " + err.Error()}
		}
	}
	if err := s.validate(value); err != nil {
		return &ValueError{Setting: s.name, Key: key, Reason: err.Error()}
	}
	return nil
}

// SetProperty muta el modelo. value nil (o vacío) limpia el escalar, el mapa
// completo (key vacío) o una entrada del mapa.
func (s *Setting) SetProperty(h Holder, key string, value *string) error {
	if err := s.checkHolder(h); err != nil {
		return err
	}
	clear := value == nil || *value == ""
	if !s.isMap {
		if key != "" {
			return &ValueError{Setting: s.name, Reason: "is not a map and must not have a key"}
		}
		if clear {
			return s.scalar.set(h, "")
		}
		if err := s.Validate(*value); err != nil {
			return err
		}
		return s.scalar.set(h, *value)
	}
	if key == "" {
		if clear {
			s.mapped.clear(h)
			return nil
		}
		// validar todo antes de tocar el mapa vivo
		if err := s.Validate(*value); err != nil {
			return err
		}
		m, order, _ := parseMap(*value)
		prev := s.mapped.get(h)
		s.mapped.clear(h)
		for _, k := range order {
			if err := s.mapped.put(h, k, m[k]); err != nil {
				s.restoreMap(h, prev)
				return &ValueError{Setting: s.name, Key: k, Reason: err.Error()}
			}
		}
		return nil
	}
	if clear {
		s.mapped.remove(h, key)
		return nil
	}
	if err := s.ValidateKV(key, *value); err != nil {
		return err
	}
	return s.mapped.put(h, key, *value)
}

// restoreMap vuelve a dejar el mapa como estaba; prev viene de get, en forma
// canónica, así que put no falla.
func (s *Setting) restoreMap(h Holder, prev map[string]string) {
	s.mapped.clear(h)
	for k, v := range prev {
		_ = s.mapped.put(h, k, v)
	}
}

// GetProperty devuelve el valor completo. Para mapas la forma canónica "k:v,k:v".
func (s *Setting) GetProperty(h Holder) (string, bool) {
	if s.checkHolder(h) != nil {
		return "", false
	}
	if !s.isMap {
		v := s.scalar.get(h)
		return v, v != ""
	}
	m := s.mapped.get(h)
	if len(m) == 0 {
		return "", false
	}
	return formatMap(m), true
}

// GetMap devuelve una copia del mapa (nil si no está configurado).
func (s *Setting) GetMap(h Holder) map[string]string {
	if !s.isMap || s.checkHolder(h) != nil {
		return nil
	}
	return s.mapped.get(h)
}

// GetPropertyKey devuelve una entrada de un setting de tipo mapa.
func (s *Setting) GetPropertyKey(h Holder, key string) (string, bool) {
	m := s.GetMap(h)
	v, ok := m[key]
	return v, ok
}

// MapKeys devuelve las claves ordenadas.
func (s *Setting) MapKeys(h Holder) []string {
	m := s.GetMap(h)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseMapValue expone el parser de mapas "k:v,k:v" para quien lo necesite
// expandir por clave (bootstrap).
func ParseMapValue(value string) (map[string]string, []string, error) {
	return parseMap(value)
}

func (s *Setting) checkHolder(h Holder) error {
	switch s.scope {
	case ScopeCluster:
		if h.Cluster == nil {
			return fmt.Errorf("setting %s requires a cluster", s.name)
		}
	case ScopeStripe:
		if h.Stripe == nil {
			return fmt.Errorf("setting %s requires a stripe", s.name)
		}
	case ScopeNode:
		if h.Node == nil {
			return fmt.Errorf("setting %s requires a node", s.name)
		}
	}
	return nil
}

// ─── Registro ───

var byName = map[string]*Setting{}

func register(s *Setting) *Setting {
	if _, dup := byName[s.name]; dup {
		panic("duplicate setting " + s.name)
	}
	byName[s.name] = s
	return s
}

// Get busca un setting por nombre.
func Get(name string) (*Setting, bool) {
	s, ok := byName[strings.TrimSpace(name)]
	return s, ok
}

// MustGet es para tests y tablas estáticas.
func MustGet(name string) *Setting {
	s, ok := Get(name)
	if !ok {
		panic(fmt.Errorf("%w: %s", ErrUnknownSetting, name))
	}
	return s
}

// All devuelve todos los settings ordenados por scope y nombre.
func All() []*Setting {
	out := make([]*Setting, 0, len(byName))
	for _, s := range byName {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].scope != out[j].scope {
			return out[i].scope < out[j].scope
		}
		return out[i].name < out[j].name
	})
	return out
}

// Names devuelve los nombres ordenados por longitud descendente, para que el
// parser de direcciones encuentre primero el nombre más largo.
func Names() []string {
	out := make([]string, 0, len(byName))
	for n := range byName {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}

// CLISettings son los settings configurables por nodo desde la línea de comandos.
func CLISettings() []*Setting {
	var out []*Setting
	for _, s := range All() {
		if s.AllowsOperationAtScope(OpConfig, ScopeNode) || s.AllowsOperationAtScope(OpConfig, ScopeCluster) {
			out = append(out, s)
		}
	}
	return out
}
