package configuration

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dropDatabas3/clusterconf/internal/setting"
)

// ValueOf parsea una dirección con valor opcional. El valor se separa en el
// primer '='; sin '=' la dirección no tiene valor, "x=" tiene valor vacío.
// El valor se toma tal cual (ParseProperties ya recorta los de archivo), así
// ValueOf(c.String()) devuelve c.
func ValueOf(input string) (Configuration, error) {
	addr, value, hasValue := strings.Cut(input, "=")
	addr = strings.TrimSpace(addr)

	p := &parser{input: input, lex: lexer{src: addr}}
	c, err := p.parseAddress()
	if err != nil {
		return Configuration{}, err
	}
	c.raw = input
	c.value, c.hasValue = value, hasValue

	if err := p.checkShape(c); err != nil {
		return Configuration{}, err
	}
	if hasValue && value != "" {
		var verr error
		if c.key != "" {
			verr = c.setting.ValidateKV(c.key, value)
		} else {
			verr = c.setting.Validate(value)
		}
		if verr != nil {
			return Configuration{}, wrap(input, verr)
		}
	}
	return c, nil
}

// MustValueOf es para tablas estáticas y tests.
func MustValueOf(input string) Configuration {
	c, err := ValueOf(input)
	if err != nil {
		panic(err)
	}
	return c
}

// lexer parte el prefijo de la dirección en segmentos. '.' y ':' son el
// mismo separador; esta es la única normalización del parser.
type lexer struct {
	src string
	pos int
}

func isSep(b byte) bool { return b == '.' || b == ':' }

func (l *lexer) done() bool { return l.pos >= len(l.src) }

// next devuelve el siguiente segmento y consume el separador que lo sigue.
// sep indica si había separador (quedan más segmentos).
func (l *lexer) next() (seg string, sep bool) {
	start := l.pos
	for l.pos < len(l.src) && !isSep(l.src[l.pos]) {
		l.pos++
	}
	seg = l.src[start:l.pos]
	if l.pos < len(l.src) {
		l.pos++
		sep = true
	}
	return seg, sep
}

// rest devuelve lo que queda sin tokenizar (la clave de un mapa).
func (l *lexer) rest() string {
	r := l.src[l.pos:]
	l.pos = len(l.src)
	return r
}

type parser struct {
	input string
	lex   lexer
}

// parseAddress: address := [ "stripe" SEP id SEP [ "node" SEP id SEP ] ] name [ SEP key ]
func (p *parser) parseAddress() (Configuration, error) {
	var c Configuration
	if p.lex.done() {
		return c, invalid(p.input, "Setting name is missing")
	}
	seg, sep := p.lex.next()
	if seg == "stripe" && sep {
		id, err := p.parseID("stripe")
		if err != nil {
			return c, err
		}
		c.stripeID = id
		c.scope = setting.ScopeStripe

		seg, sep = p.lex.next()
		if seg == "node" && sep {
			id, err := p.parseID("node")
			if err != nil {
				return c, err
			}
			c.nodeID = id
			c.scope = setting.ScopeNode
			seg, sep = p.lex.next()
		}
	} else if seg == "node" && sep {
		return c, invalid(p.input, "Expected 'stripe.<id>' before 'node.<id>'")
	}
	if seg == "" {
		return c, invalid(p.input, "Setting name is missing")
	}
	s, ok := setting.Get(seg)
	if !ok {
		return c, wrap(p.input, fmt.Errorf("%w: '%s'", setting.ErrUnknownSetting, seg))
	}
	c.setting = s
	if sep {
		c.key = p.lex.rest()
		if c.key == "" {
			return c, invalid(p.input, "Key of setting '%s' is missing after the separator", s.Name())
		}
	}
	return c, nil
}

func (p *parser) parseID(kind string) (int, error) {
	seg, sep := p.lex.next()
	if seg == "" {
		return 0, invalid(p.input, "Expected %s ID after '%s'", kind, kind)
	}
	id, err := strconv.Atoi(seg)
	if err != nil {
		return 0, invalid(p.input, "Expected %s ID to be a number, but found: '%s'", kind, seg)
	}
	if id <= 0 {
		return 0, invalid(p.input, "%s ID must be greater than 0", kind)
	}
	if !sep {
		return 0, invalid(p.input, "Setting name is missing after %s ID", kind)
	}
	return id, nil
}

// checkShape valida la forma frente al setting: scope legal y clave sólo en mapas.
func (p *parser) checkShape(c Configuration) error {
	name := c.setting.Name()
	if !c.setting.AllowsAnyOperationAtScope(c.scope) {
		return invalid(p.input, "Setting '%s' does not allow any operation at %s level", name, c.scope)
	}
	if c.key != "" && !c.setting.IsMap() {
		return invalid(p.input, "Setting '%s' is not a map and must not have a key", name)
	}
	return nil
}
